// Command server runs the shelfscan web application and its companion
// commands for exporting the product backlog and scanning from a terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/shelfscan/internal/config"
	"github.com/JonMunkholm/shelfscan/internal/core"
	"github.com/JonMunkholm/shelfscan/internal/store"
)

var (
	flagEnvFile string
	cfg         *config.Config
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentPreRunE = loadConfig

	exportCmd.Flags().StringVar(&flagExportFormat, "format", "", "export format: csv or json (default EXPORT_DEFAULT_FORMAT)")
	exportCmd.Flags().StringVarP(&flagExportOut, "out", "o", "", "output file (default stdout)")

	scanCmd.Flags().StringVar(&flagScanDevice, "device", "", "serial device glob (default CAPTURE_SERIAL_GLOB)")
	scanCmd.Flags().BoolVar(&flagScanManual, "manual", false, "skip the scanner and type the barcode")

	rootCmd.AddCommand(serveCmd, exportCmd, scanCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("shelfscan failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "shelfscan",
	Short:         "Barcode capture and product backlog server",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runServe,
}

// loadConfig reads the dotenv file (overwriting existing variables) and the
// environment into cfg.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Overload(flagEnvFile); err != nil {
		slog.Debug("no env file loaded, using environment variables", "path", flagEnvFile)
	}

	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg = c
	return nil
}

// openService connects the configured store and wraps it in a Service.
func openService(ctx context.Context, logger *slog.Logger) (*core.Service, func(), error) {
	db, err := store.Open(ctx, store.Options{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	logger.Info("store opened", "driver", cfg.Database.Driver)

	closeStore := func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}
	return core.NewService(db, logger), closeStore, nil
}
