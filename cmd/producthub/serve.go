package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/producthub/producthub/internal/auth"
	"github.com/producthub/producthub/internal/hubapi"
	"github.com/producthub/producthub/internal/storage"
	"github.com/producthub/producthub/internal/upload"
	"github.com/producthub/producthub/internal/web"
	"github.com/producthub/producthub/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("Starting Product Hub...")

	logger.WithField("path", cfg.Pending.DBPath).Info("initializing pending submission store")
	db, err := storage.InitDB(cfg.Pending.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	pending := storage.NewPendingStore(db, cfg.Pending.TTL)

	api, err := hubapi.NewClient(cfg.API.BaseURL, cfg.API.Timeout, logger)
	if err != nil {
		return err
	}
	logger.WithField("api", cfg.API.BaseURL).Info("upload API client initialized")

	sessionManager := auth.InitSessions(cfg.Session.Secret, cfg.Session.MaxAge, cfg.CookieSecure(), cfg.CookieSameSite())
	gate := auth.NewGate(api, logger)
	flow := upload.NewFlow(api, pending, logger)

	h, err := handlers.New(gate, flow, sessionManager, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize handlers: %w", err)
	}

	srv := web.NewServer(cfg, web.NewRouter(cfg, h, sessionManager, logger))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go storage.NewJanitor(pending, cfg.Pending.PruneInterval, logger).Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on %s", cfg.GetBaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited successfully")
	return nil
}
