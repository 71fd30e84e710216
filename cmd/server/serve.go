package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/shelfscan/internal/capture"
	"github.com/JonMunkholm/shelfscan/internal/capture/remote"
	"github.com/JonMunkholm/shelfscan/internal/capture/serial"
	"github.com/JonMunkholm/shelfscan/internal/logging"
	"github.com/JonMunkholm/shelfscan/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"capture_max_sessions", cfg.Capture.MaxSessions,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, closeStore, err := openService(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	captures := capture.NewManager(capture.ManagerConfig{
		MaxSessions:   cfg.Capture.MaxSessions,
		MaxWait:       cfg.Capture.MaxWait,
		OpenTimeout:   cfg.Capture.OpenTimeout,
		IdleTimeout:   cfg.Capture.IdleTimeout,
		SweepInterval: cfg.Capture.SweepInterval,
		Logger:        logger,
	})
	captures.RegisterSource("remote", remote.Factory)
	captures.RegisterSource("serial", serial.Factory(serial.New(cfg.Capture.SerialGlob, logger)))

	server := web.NewServer(service, captures, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return captures.StartSweeper(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Close sessions first so open event streams end before the
		// server waits for in-flight requests.
		status := captures.Status()
		if status.Active > 0 {
			logger.Info("closing capture sessions", "active", status.Active)
		}
		if err := captures.CloseAll(shutdownCtx); err != nil {
			logger.Warn("capture sessions did not close in time", "error", err)
		}

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
