package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/memoir/internal/docstore"
)

var docstoreCmd = &cobra.Command{
	Use:   "docstore",
	Short: "Manage the DefraDB document store container",
	Long: `Manage the DefraDB container that holds chapters and saved assets.

The container keeps its data in ~/.memoir/defradb/. "memoir serve" starts
and stops it automatically when docstore.managed is set.

Examples:
  memoir docstore start   # Start the container and load schemas
  memoir docstore stop    # Stop the container (data preserved)
  memoir docstore status  # Check container status`,
}

var docstoreStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the DefraDB container",
	Long: `Start the DefraDB container and load the Chapter and Asset schemas.

If the container doesn't exist, it will be created and started.
If it's already running, only the schemas are (re)applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting DefraDB...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start DefraDB: %w", err)
		}
		if err := docstore.Initialize(ctx, docstore.NewClient(mgr.URL()), nil); err != nil {
			return fmt.Errorf("failed to load schemas: %w", err)
		}

		fmt.Printf("DefraDB is running at %s\n", mgr.URL())
		return nil
	},
}

var docstoreStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the DefraDB container",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping DefraDB...")
		if err := mgr.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop DefraDB: %w", err)
		}

		fmt.Println("DefraDB stopped")
		return nil
	},
}

var docstoreStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show DefraDB container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case docstore.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("URL: %s\n", mgr.URL())

			client := docstore.NewClient(mgr.URL())
			if err := client.HealthCheck(ctx); err != nil {
				fmt.Printf("Health: unhealthy (%v)\n", err)
			} else {
				fmt.Println("Health: healthy")
			}
		case docstore.StatusStopped:
			fmt.Printf("Status: %s (use 'memoir docstore start' to start)\n", status)
		case docstore.StatusNotFound:
			fmt.Printf("Status: %s (use 'memoir docstore start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

func init() {
	docstoreCmd.AddCommand(docstoreStartCmd)
	docstoreCmd.AddCommand(docstoreStopCmd)
	docstoreCmd.AddCommand(docstoreStatusCmd)

	rootCmd.AddCommand(docstoreCmd)
}

// getDockerManager creates a DockerManager from the loaded config.
func getDockerManager() (*docstore.DockerManager, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	cm, err := loadConfig(h)
	if err != nil {
		return nil, err
	}

	dataPath := h.DocstorePath()
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return docstore.NewDockerManager(cm.Get().DockerConfig(dataPath))
}
