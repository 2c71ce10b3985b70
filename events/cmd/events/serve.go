package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eventhawk-systems/eventhawk-stack/events/internal/handlers"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/identity"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/server"
)

var (
	serveMigrationsPath string
	serveWithWorkers    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the events HTTP API",
	Long: `Run the subscription and publishing API.

Migrations are applied before the server starts when the postgres backend is
configured. With --with-workers the outbound and validation workers run in the
same process.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveMigrationsPath, "migrations", "file://migrations", "migration source URL")
	serveCmd.Flags().BoolVar(&serveWithWorkers, "with-workers", false, "also run the queue workers")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required (set EVENTS_AUTH_JWT_SECRET)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Backend == "postgres" {
		logger.Info("running database migrations")
		if err := runMigrations(cfg, serveMigrationsPath, logger); err != nil {
			return err
		}
	}

	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close(context.Background())

	if serveWithWorkers {
		runner, err := startWorkers(ctx, c, cfg, logger)
		if err != nil {
			return err
		}
		defer runner.Stop()
	}

	h := handlers.NewHandler(c.registry, c.distributor, c.dispatcher, c.repo, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(h, identity.NewParser(cfg.Auth.JWTSecret, cfg.Auth.Issuer)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("events service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
