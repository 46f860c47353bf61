package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and event stream",
	Long: `Start the UnlockX API server.

The server exposes the login session, the enrollment sequence, the gallery
and (when DATABASE_URL is set) the verification audit log over HTTP, plus a
WebSocket stream of match and enrollment updates at /v1/ws.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	logger := cliLogger(cfg)
	logger.Info("starting UnlockX API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("camera", cfg.CameraDevice),
		slog.String("gallery", cfg.GalleryDir),
	)

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, appOptions{withMatcher: true, withDatabase: true})
	if err != nil {
		return err
	}
	defer a.close()

	deps := &api.Dependencies{
		Session:     a.session,
		Enrollment:  a.enrollment,
		Gallery:     a.store,
		ReadyChecks: a.readyChecks(),
	}
	if a.repo != nil {
		deps.Verifications = a.repo
	}

	router := api.NewRouter(logger, deps)
	router.Setup()

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	done := make(chan error, 1)
	go func() { done <- router.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out")
	}

	logger.Info("server stopped")
	return nil
}
