package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"log/slog"

	"github.com/creatorpulse/creatorpulse/internal/api"
	"github.com/creatorpulse/creatorpulse/internal/auth"
	"github.com/creatorpulse/creatorpulse/internal/cloudsql"
	"github.com/creatorpulse/creatorpulse/internal/config"
	"github.com/creatorpulse/creatorpulse/internal/database"
	"github.com/creatorpulse/creatorpulse/internal/logging"
	"github.com/creatorpulse/creatorpulse/internal/metrics"
	"github.com/creatorpulse/creatorpulse/internal/notify"
	"github.com/creatorpulse/creatorpulse/internal/platform"
	"github.com/creatorpulse/creatorpulse/internal/scheduler"
	"github.com/creatorpulse/creatorpulse/internal/server"
	"github.com/creatorpulse/creatorpulse/internal/sync"
)

func main() {
	// Load .env for local development; in production the environment is set
	// by the platform.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting creatorpulse")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database (supports both local DATABASE_URL and Cloud SQL)
	dbURL, err := cloudsql.BuildDatabaseURL()
	if err != nil {
		logger.Error("failed to build database URL", "error", err)
		os.Exit(1)
	}
	logger.Info("connecting to database", "config", cloudsql.GetConnectionConfig())

	dbCfg := database.DefaultConfig()
	dbCfg.URL = dbURL
	dbCfg.MaxConnections = cfg.Database.MaxConnections
	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	// Run pending migrations (non-fatal to allow app to start even if migrations fail)
	if err := database.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Warn("failed to run migrations, continuing anyway", "error", err)
	}

	// Create repositories
	accountRepo := database.NewPostgresAccountRepository(db)
	contentRepo := database.NewPostgresContentRepository(db)
	quotaRepo := database.NewPostgresQuotaRepository(db, cfg.Sync.OrgContentLimit)
	jobRepo := database.NewPostgresJobRepository(db)
	sessionRepo := database.NewPostgresSessionRepository(db)

	// Platform adapters share one provider client
	if cfg.Sync.ProviderBaseURL == "" {
		logger.Error("PROVIDER_BASE_URL is required")
		os.Exit(1)
	}
	providerClient := platform.NewHTTPProviderClient(cfg.Sync.ProviderBaseURL, os.Getenv("PROVIDER_API_KEY"), 30*time.Second)
	adapters := platform.NewRegistry(providerClient, logger)

	// Collaborators
	reporter := notify.NewLogReporter(logger)
	notifier := notify.NewLogNotifier(logger)
	uploader := notify.NoopUploader{}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	// Sync engine
	locks := sync.NewLockService(accountRepo, cfg.Sync.LockMaxAge, logger)
	writer := sync.NewStorageWriter(contentRepo, quotaRepo, uploader, logger, cfg.Sync.WriteBatchSize)
	aggregator := sync.NewSessionAggregator(sessionRepo, notifier, logger)
	orchestrator := sync.NewOrchestrator(accountRepo, contentRepo, jobRepo, adapters, locks, writer, aggregator, reporter, logger)

	queue := sync.NewQueueManager(jobRepo, orchestrator, sync.QueueConfig{
		SweepInterval:     cfg.Sync.SweepInterval,
		ClaimBatch:        cfg.Sync.ClaimBatch,
		StaleRunningAfter: cfg.Sync.StaleRunningAfter,
		ConcurrentJobs:    cfg.Sync.ConcurrentJobs,
	}, logger)

	orchestrator.SetObserver(collector)
	orchestrator.SetDiscoveryQuota(cfg.Sync.DiscoveryQuota)
	aggregator.SetObserver(collector)
	queue.SetObserver(collector)

	logger.Info("starting sync queue")
	go queue.Start(ctx)

	// Start the refresh scheduler
	logger.Info("starting sync scheduler")
	syncScheduler := scheduler.NewSyncScheduler(accountRepo, queue, aggregator, cfg.Sync.SchedulerInterval, logger)
	go syncScheduler.Start(ctx)

	// Setup HTTP routes
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.HealthCheck(r.Context(), db); err != nil {
			logger.Error("health check failed", "error", err)
			http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Service info endpoint
	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"creatorpulse","status":"ready","version":"0.1.0"}`))
	})

	mux.Handle("/metrics", collector.Handler())

	// Auth configuration
	if cfg.Auth.JWTSecret == "" || cfg.Auth.AdminPassword == "" {
		logger.Error("JWT_SECRET and ADMIN_PASSWORD are required")
		os.Exit(1)
	}
	authConfig := auth.Config{
		JWTSecret:       cfg.Auth.JWTSecret,
		AdminPassword:   cfg.Auth.AdminPassword,
		SchedulerSecret: cfg.Auth.SchedulerSecret,
		TokenDuration:   auth.DefaultTokenDuration,
	}

	// Add REST API routes
	logger.Info("setting up REST API")
	api.SetupRoutes(mux, accountRepo, contentRepo, jobRepo, sessionRepo, queue, aggregator, authConfig, logger)

	// Start server
	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("creatorpulse started successfully")
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	syncScheduler.Stop()
	cancel()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
