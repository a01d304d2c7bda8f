package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/satty/internal/actor"
	"github.com/ashureev/satty/internal/authclient"
	"github.com/ashureev/satty/internal/config"
	"github.com/ashureev/satty/internal/devidp"
	"github.com/ashureev/satty/internal/live"
	"github.com/ashureev/satty/internal/session"
	"github.com/ashureev/satty/internal/store"
	"github.com/ashureev/satty/internal/telemetry"
	"github.com/ashureev/satty/internal/web"
	static "github.com/ashureev/satty/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryCfg := telemetry.Config{Enabled: cfg.Telemetry.Enabled, Endpoint: cfg.Telemetry.Endpoint}
	shutdownTracing, err := telemetry.Setup(ctx, "satty", telemetryCfg)
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		return err
	}
	slog.Info("Database connected")

	client, err := authclient.NewProviderClient(authclient.ProviderConfig{
		ProviderURL: cfg.Identity.ProviderURL,
		CanisterID:  cfg.Identity.CanisterID,
		ProviderKey: []byte(cfg.Identity.ProviderKey),
		StateSecret: []byte(cfg.Identity.StateSecret),
		StateTTL:    cfg.Identity.StateTTL,
	}, repo)
	if err != nil {
		slog.Error("Failed to initialize identity client", "error", err)
		return err
	}

	var provider http.Handler
	if cfg.Identity.DevProvider {
		idp, err := devidp.New(devidp.Config{
			Key:            []byte(cfg.Identity.ProviderKey),
			Issuer:         cfg.Identity.CanisterID,
			DelegationTTL:  cfg.Identity.DelegationTTL,
			RedirectPrefix: cfg.BaseURL() + "/",
		})
		if err != nil {
			slog.Error("Failed to initialize development identity provider", "error", err)
			return err
		}
		provider = idp.Routes()
		slog.Warn("Development identity provider enabled", "url", cfg.Identity.ProviderURL)
	}

	actors := actor.NewFactory(cfg.BackendAddr, cfg.BackendCanisterID, slog.Default())
	sessions := session.NewStore()
	mgr := session.NewManager(client, actors, sessions, cfg.BaseURL()+"/auth/callback", slog.Default())
	hub := live.NewHub()

	session.StartSweeper(ctx, mgr, repo, session.SweepConfig{
		Interval:   cfg.Session.SweepInterval,
		PendingTTL: cfg.Identity.StateTTL,
		IdleTTL:    cfg.Session.IdleTTL,
	})

	router := web.NewRouter(web.RouterConfig{
		Manager:     mgr,
		Repo:        repo,
		Hub:         hub,
		Static:      static.StaticHandler(),
		Provider:    provider,
		FrontendURL: cfg.BaseURL(),
		IsDev:       cfg.IsDevelopment(),
		Tracing:     telemetryCfg.Active(),
	})

	// WriteTimeout stays 0 so /ws/session streams are not cut off.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			slog.Error("Server failed", "error", err)
			return fmt.Errorf("listen: %w", err)
		}
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server stopped successfully")
	return nil
}
