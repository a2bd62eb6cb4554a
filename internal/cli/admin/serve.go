package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/tutorai/internal/api/handlers"
	"github.com/cloo-solutions/tutorai/internal/app"
	"github.com/cloo-solutions/tutorai/internal/database"
	"github.com/cloo-solutions/tutorai/internal/server"
	"github.com/cloo-solutions/tutorai/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the tutor API server and, with a database, the enrichment worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides TUTOR_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsDir, "Migrations directory")
	cmd.Flags().Bool("push-snapshot", false, "Push an index snapshot to S3 on shutdown")
	cmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origins")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}
	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	}, logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
	} else {
		defer shutdownTelemetry()
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if cfg.HasDatabase() && !noMigrate {
		dir, _ := cmd.Flags().GetString("migrations")
		if err := database.Migrate(cfg.DatabaseURL, dir, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := deps.BuildServices(); err != nil {
		return err
	}
	if deps.StartWorker(ctx) {
		logger.Info("enrichment worker started")
	}

	// A nil *EnrichmentJobRepository must reach the handler as a nil interface.
	var jobStore handlers.EnrichmentJobStore
	if deps.Jobs != nil {
		jobStore = deps.Jobs
	}

	origins, _ := cmd.Flags().GetStringSlice("cors-origin")
	router := server.NewRouter(server.RouterConfig{
		Logger:         logger.Named("http"),
		APIToken:       cfg.APIToken,
		AllowedOrigins: origins,
		AskHandler:     handlers.NewAskHandler(deps.Controller),
		EnrichHandler:  handlers.NewEnrichHandler(deps.Enricher, jobStore),
		IndexHandler:   handlers.NewIndexHandler(deps.Index),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.Int("chunks", deps.Index.Count()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if push, _ := cmd.Flags().GetBool("push-snapshot"); push {
		if deps.Snapshots == nil {
			logger.Warn("snapshot push skipped: S3 is not configured")
		} else if _, err := deps.Snapshots.Push(shutdownCtx, deps.Index.Snapshot()); err != nil {
			logger.Error("snapshot push failed", zap.Error(err))
		}
	}

	logger.Info("server exited")
	return nil
}
