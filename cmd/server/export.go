package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/shelfscan/internal/core"
	"github.com/JonMunkholm/shelfscan/internal/logging"
)

var (
	flagExportFormat string
	flagExportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the product backlog as CSV or JSON",
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, _ []string) error {
	logger := logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	name := flagExportFormat
	if name == "" {
		name = cfg.Export.DefaultFormat
	}
	format, err := core.ParseFormat(name)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Export.Timeout)
	defer cancel()

	service, closeStore, err := openService(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Buffer so an empty backlog leaves no output file behind.
	var buf bytes.Buffer
	count, err := service.Export(ctx, &buf, format)
	if err != nil {
		return err
	}

	if flagExportOut == "" {
		_, err := buf.WriteTo(cmd.OutOrStdout())
		return err
	}
	if err := os.WriteFile(flagExportOut, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", flagExportOut, err)
	}
	logger.Info("export written", "path", flagExportOut, "records", count)
	return nil
}
