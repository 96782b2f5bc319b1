package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/memoir/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the memoir server",
	Long: `Start the memoir HTTP server.

The server restores the working state from ~/.memoir/state and, when
docstore.managed is set, starts DefraDB in Docker for the duration of
the process. Config file edits to the webhook and history settings are
applied without a restart.

The server provides:
  - /health - Basic server health check
  - /ready  - Readiness check (includes document store status)
  - /status - Webhook, content service, docstore and job summary

Examples:
  memoir serve                    # Start on default port 8080
  memoir serve --port 3000        # Start on custom port
  memoir serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		cm, err := loadConfig(h)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(cm.Get().LogLevel),
		}))
		if f := cm.ConfigFile(); f != "" {
			logger.Info("using config file", "path", f)
			cm.WatchConfig()
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			Home:          h,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
