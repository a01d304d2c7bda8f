// Satty quest web server.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	rootCmd := &cobra.Command{
		Use:           "satty",
		Short:         "Satty quest web server",
		Long:          "satty serves the Satty quest pages, the identity provider login flow and the session API.",
		SilenceUsage:  true,
		SilenceErrors: false,
		// Running without a subcommand starts the server.
		RunE: serve.RunE,
	}

	rootCmd.AddCommand(
		serve,
		newPruneCmd(),
	)

	return rootCmd
}
