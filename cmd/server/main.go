package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudbill/backend/internal/application/collect"
	reportapp "github.com/cloudbill/backend/internal/application/report"
	domainmetering "github.com/cloudbill/backend/internal/domain/metering"
	"github.com/cloudbill/backend/internal/infrastructure/config"
	"github.com/cloudbill/backend/internal/infrastructure/lock"
	"github.com/cloudbill/backend/internal/infrastructure/logger"
	"github.com/cloudbill/backend/internal/infrastructure/metering"
	"github.com/cloudbill/backend/internal/infrastructure/persistence"
	"github.com/cloudbill/backend/internal/infrastructure/scheduler"
	"github.com/cloudbill/backend/internal/infrastructure/transform"
	"github.com/cloudbill/backend/internal/interfaces/http/handler"
	"github.com/cloudbill/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting CloudBill Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize Redis for the distributed collection locks
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing redis client", zap.Error(err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	log.Info("Redis connected successfully")

	// Initialize repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	usageRowRepo := persistence.NewGormUsageRowRepository(db.DB)
	serviceRepo := persistence.NewGormServiceRepository(db.DB)

	// Metering source
	source, err := metering.NewHTTPSource(&metering.SourceConfig{
		BaseURL:        cfg.Metering.BaseURL,
		Token:          cfg.Metering.Token,
		TimeoutSeconds: cfg.Metering.TimeoutSeconds,
	}, log)
	if err != nil {
		log.Fatal("Failed to create metering source", zap.Error(err))
	}

	// Transformer strategies
	registry := transform.NewRegistry(serviceRepo, transform.DefaultOptions(), log)

	// Collector with its transactional scope and lock store
	lockStore := lock.NewRedisStore(redisClient, "")
	collectScope := persistence.NewGormCollectScope(db.DB)
	collectorConfig := collect.DefaultConfig()
	collectorConfig.Meters = buildMeters(cfg.Collector.Meters)
	collectorConfig.FetchMargin = cfg.Collector.FetchMargin
	collectorConfig.FetchLimit = cfg.Collector.FetchLimit
	collectorConfig.LockTTL = cfg.Collector.LockTTL
	collectorConfig.BusyRetakeTTL = cfg.Collector.BusyRetakeTTL
	collectorConfig.IdleRetakeTTL = cfg.Collector.IdleRetakeTTL
	collector := collect.NewCollector(
		tenantRepo, serviceRepo, source, registry, collectScope, lockStore, collectorConfig, log,
	)

	// Report aggregation
	aggregator := reportapp.NewAggregator(tenantRepo, usageRowRepo, serviceRepo, log)

	// Collection scheduler
	collectionScheduler, err := scheduler.NewCollectionScheduler(collector, log, scheduler.CollectionSchedulerConfig{
		Enabled:      cfg.Scheduler.Enabled,
		Interval:     cfg.Scheduler.Interval,
		RunOnStart:   cfg.Scheduler.RunOnStart,
		CycleTimeout: 30 * time.Minute,
	})
	if err != nil {
		log.Fatal("Failed to create collection scheduler", zap.Error(err))
	}
	if err := collectionScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start collection scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := collectionScheduler.Stop(stopCtx); err != nil {
			log.Error("Error stopping collection scheduler", zap.Error(err))
		}
	}()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	healthHandler := handler.NewHealthHandler(
		db.Ping,
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	)
	adminHandler := handler.NewAdminHandler(collectionScheduler, aggregator)

	router.Setup(engine, router.Config{
		Logger: log,
		Health: healthHandler,
		Admin:  adminHandler,
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// buildMeters converts configured meter bindings into collector meters
func buildMeters(configured []config.MeterConfig) []transform.Meter {
	meters := make([]transform.Meter, 0, len(configured))
	for _, m := range configured {
		meters = append(meters, transform.Meter{
			Name:      m.Name,
			Kind:      transform.Kind(m.Kind),
			ServiceID: domainmetering.ServiceID(m.ServiceID),
			Unit:      m.Unit,
		})
	}
	return meters
}
