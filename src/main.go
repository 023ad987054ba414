package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/aopopov01/TailTracker-sub005/src/advisor"
	"github.com/aopopov01/TailTracker-sub005/src/api"
	"github.com/aopopov01/TailTracker-sub005/src/config"
	"github.com/aopopov01/TailTracker-sub005/src/db"
	"github.com/aopopov01/TailTracker-sub005/src/metrics"
	"github.com/aopopov01/TailTracker-sub005/src/orchestrator"
	"github.com/aopopov01/TailTracker-sub005/src/predictor"
	"github.com/aopopov01/TailTracker-sub005/src/storage"
	"github.com/aopopov01/TailTracker-sub005/src/telemetry"
	"github.com/aopopov01/TailTracker-sub005/src/tiers"
)

func main() {
	// Initialize logger
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	log.Info("Starting cache performance engine...")

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = ""
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level and format
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err == nil {
		log.SetLevel(level)
	}
	if cfg.Logging.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize persistent store
	var store storage.Store
	switch cfg.Storage.Backend {
	case "redis":
		redisStore, err := storage.NewRedisStore(storage.RedisConfig{
			Addr:     cfg.Storage.Addr,
			Password: cfg.Storage.Password,
			DB:       cfg.Storage.DB,
			Prefix:   cfg.Storage.Prefix,
			TTL:      cfg.Storage.TTL,
		})
		if err != nil {
			log.Fatalf("Failed to connect to redis at %s: %v", cfg.Storage.Addr, err)
		}
		store = redisStore
		log.Infof("Connected to redis store at %s", cfg.Storage.Addr)
	default:
		store = storage.NewMemoryStore()
	}

	// Initialize metrics sink
	var sink metrics.Sink = metrics.NewLogSink(log)
	registry := prometheus.NewRegistry()
	if cfg.Diag.Enabled && cfg.Diag.Prometheus {
		promSink, err := metrics.NewPrometheusSink(registry)
		if err != nil {
			log.Fatalf("Failed to register prometheus metrics: %v", err)
		}
		sink = promSink
		log.Info("Prometheus metrics sink enabled")
	}

	// Initialize telemetry monitor
	monitor := telemetry.NewMonitor(telemetry.Options{
		Interval:         cfg.Monitor.Interval,
		MaxEvents:        cfg.Monitor.MaxEventsHistory,
		PersistEvery:     cfg.Monitor.PersistEvery,
		AlertMinRequests: cfg.Monitor.AlertMinRequests,
	}, store, sink, log)
	monitor.LoadState(ctx)

	// Initialize predictor
	pred := predictor.NewPredictor(predictor.Options{
		MaxPatterns:    cfg.Predictor.MaxPatterns,
		TuningInterval: cfg.Predictor.TuningInterval,
	}, store, log)
	pred.LoadPatterns(ctx)

	// Initialize query advisor against the configured database, or a stub
	// executor when no database is reachable
	var executor db.Executor
	if cfg.Database.Enabled {
		pgx, err := db.NewPgxExecutor(ctx, db.ConnectionConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		}, log)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pgx.Close()
		executor = pgx
		log.Infof("Connected to database %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	} else {
		executor = db.NewStubExecutor()
		log.Warn("No database configured, query advisor runs against a stub executor")
	}

	adviser := advisor.NewAdvisor(advisor.Options{
		CacheEnabled:        cfg.Advisor.CacheEnabled,
		CacheTTL:            cfg.Advisor.CacheTTL,
		MaxResultSetSize:    cfg.Advisor.MaxResultSetSize,
		BatchSize:           cfg.Advisor.BatchSize,
		BatchDebounce:       cfg.Advisor.BatchDebounce,
		MaintenanceInterval: cfg.Advisor.MaintenanceInterval,
		MaxPatterns:         cfg.Advisor.MaxPatterns,
		MaxMetrics:          cfg.Advisor.MaxMetrics,
	}, executor, log)

	// Assemble the orchestrator
	engine := orchestrator.New(orchestrator.Options{
		HealthInterval:       cfg.Orchestrator.HealthInterval,
		BaselineRefreshEvery: cfg.Orchestrator.BaselineRefreshEvery,
	}, orchestrator.Components{
		Memory:    tiers.NewMemoryTier(cfg.Orchestrator.MemoryTierEntries),
		Advisor:   adviser,
		Predictor: pred,
		Monitor:   monitor,
	}, log)

	// Start background loops
	monitor.Start(ctx)
	pred.Start(ctx)
	adviser.Start(ctx)
	engine.Start(ctx)

	log.Info("Cache performance engine started")

	// Optional diagnostics HTTP server
	var server *http.Server
	if cfg.Diag.Enabled {
		handler := api.NewHandler(engine, monitor, adviser, log)

		router := mux.NewRouter()
		handler.RegisterRoutes(router)
		if cfg.Diag.Prometheus {
			router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		}

		serverAddr := fmt.Sprintf("%s:%d", cfg.Diag.Host, cfg.Diag.Port)
		server = &http.Server{
			Addr:         serverAddr,
			Handler:      router,
			ReadTimeout:  cfg.Diag.ReadTimeout,
			WriteTimeout: cfg.Diag.WriteTimeout,
		}

		go func() {
			log.Infof("Starting diagnostics server on %s", serverAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start diagnostics server: %v", err)
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down gracefully...")

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Server shutdown error: %v", err)
		}
		shutdownCancel()
	}

	engine.Close()
	cancel()

	log.Info("Cache performance engine stopped")
}
