package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/memoir/internal/api"
	"github.com/jackzampolin/memoir/internal/config"
	"github.com/jackzampolin/memoir/internal/home"
	"github.com/jackzampolin/memoir/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "memoir",
	Short: "Turn memoir chapters into social posts, images and short videos",
	Long: `Memoir sends chapters of a memoir to a workflow engine that produces
social posts, illustrative images and short videos.

It keeps:
  - A working text, tone and structured context per chapter
  - The latest post, image and video result
  - A capped history of dispatches that can be retried unchanged
  - Background video jobs that survive switching chapters`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.memoir/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "memoir home directory (default: ~/.memoir)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml, json or text",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// getHome returns the home directory, creating it if needed.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// loadConfig resolves the config file (--config, then the home directory,
// then the default search path) and loads it.
func loadConfig(h *home.Dir) (*config.Manager, error) {
	file := cfgFile
	if file == "" && h.ConfigExists() {
		file = h.ConfigPath()
	}
	return config.NewManager(file)
}
