package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"storesync-api/internal/cache"
	"storesync-api/internal/config"
	"storesync-api/internal/handler"
	"storesync-api/internal/lock"
	"storesync-api/internal/logging"
	"storesync-api/internal/marketplace/depop"
	"storesync-api/internal/marketplace/ebay"
	"storesync-api/internal/repository"
	"storesync-api/internal/router"
	"storesync-api/internal/service"
	"storesync-api/internal/syncer"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	logger := logging.New(cfg.App.Environment, cfg.App.LogLevel)
	log := logging.Component(logger, "main")
	log.WithField("environment", cfg.App.Environment).Infof("Starting %s %s...", cfg.App.Name, cfg.App.Version)

	gw, err := openGateway(&cfg.StoreDB, logging.Component(logger, "repository"))
	if err != nil {
		log.WithError(err).Fatalf("Failed to initialize %s store", cfg.StoreDB.Type)
	}
	defer gw.Close()
	log.WithField("type", cfg.StoreDB.Type).Info("Store gateway initialized")

	// Redis backs the item cache and run locks; without it both stay in process.
	var (
		redisClient *redis.Client
		itemCache   cache.Cache
		locker      lock.Locker
		cacheType   = "memory"
	)
	if cfg.Cache.Type == "redis" {
		redisClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		if err != nil {
			log.WithError(err).Warn("Redis connection failed, using in-process cache and locks")
		} else {
			defer redisClient.Close()
			itemCache = cache.NewRedisCache(redisClient, cfg.Cache.KeyPrefix, logging.Component(logger, "cache"))
			locker = lock.NewRedisLocker(redisClient, cfg.Cache.KeyPrefix, logging.Component(logger, "lock"))
			cacheType = "redis"
		}
	}

	if itemCache == nil {
		itemCache = cache.NewMemoryCache()
		locker = lock.NewLocalLocker()
	}
	defer itemCache.Close()

	limits, err := config.LoadLimits(cfg.Sync.LimitsFile)
	if err != nil {
		log.WithError(err).Fatal("Failed to load plan limits")
	}

	ebayClient := ebay.NewClient(ebay.Config{
		Endpoint:           cfg.Ebay.Endpoint,
		AppID:              cfg.Ebay.AppID,
		DevID:              cfg.Ebay.DevID,
		CertID:             cfg.Ebay.CertID,
		SiteID:             cfg.Ebay.SiteID,
		CompatibilityLevel: cfg.Ebay.CompatibilityLevel,
		Timeout:            cfg.Ebay.Timeout,
		RequestsPerSecond:  cfg.Ebay.RequestsPerSecond,
	}, logging.Component(logger, "ebay"))

	depopClient := depop.NewClient(depop.Config{
		BaseURL:           cfg.Depop.BaseURL,
		Timeout:           cfg.Depop.Timeout,
		RequestsPerSecond: cfg.Depop.RequestsPerSecond,
		ChromeTLS:         cfg.Depop.ChromeTLS,
	}, logging.Component(logger, "depop"))

	engine := syncer.New(gw, locker, itemCache, ebayClient, depopClient, limits, syncer.Options{
		MaxDepth:       cfg.Sync.MaxLoopDepth,
		ListingPageCap: cfg.Sync.ListingPageCap,
		OrderPageCap:   cfg.Sync.OrderPageCap,
		LockTTL:        cfg.Sync.LockTTL,
		CacheTTL:       cfg.Cache.TTL,
		StoreActive:    cfg.App.StoreActive,
	}, logging.Component(logger, "syncer"))

	// Initialize services
	syncService := service.NewSyncService(engine, service.SyncConfig{
		Workers:    cfg.Sync.Workers,
		QueueSize:  cfg.Sync.QueueSize,
		RunTimeout: cfg.Sync.RunTimeout,
	}, logging.Component(logger, "sync"))
	syncService.Start()

	var scheduler *service.AutoSyncScheduler
	if cfg.Sync.AutoSyncInterval > 0 {
		scheduler = service.NewAutoSyncScheduler(gw, syncService, service.SchedulerConfig{
			Interval:    cfg.Sync.AutoSyncInterval,
			StoreActive: cfg.App.StoreActive,
		}, logging.Component(logger, "scheduler"))
		scheduler.Start()
	}

	// Initialize handlers
	checks := map[string]handler.CheckFunc{
		"database": func(ctx context.Context) error {
			_, err := gw.GetStats(ctx)
			return err
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	healthHandler := handler.New(handler.Info{
		Name:        cfg.App.Name,
		Version:     cfg.App.Version,
		StoreStatus: cfg.App.StoreStatus,
	}, checks)
	syncHandler := handler.NewSyncHandler(syncService, logging.Component(logger, "http"))
	adminHandler := handler.NewAdminHandler(gw, cfg.StoreDB.Type, cacheType, syncService.Pending)

	r := router.New(router.Config{
		Handler:      healthHandler,
		SyncHandler:  syncHandler,
		AdminHandler: adminHandler,
		Log:          logging.Component(logger, "http"),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown error")
	}

	// Drain queued syncs before the store closes
	if err := syncService.Stop(ctx); err != nil {
		log.WithError(err).Warn("Sync workers did not finish in time")
	}

	log.Info("Server stopped")
	fmt.Println("Goodbye!")
}

func openGateway(cfg *config.StoreDBConfig, log *logrus.Entry) (repository.Gateway, error) {
	switch cfg.Type {
	case "mongodb", "mongo":
		return repository.NewMongoStore(cfg.MongoURI, cfg.MongoDatabase, log)
	case "postgres", "postgresql":
		return repository.NewPostgresStore(cfg.PostgresDSN(), log)
	case "mysql":
		return repository.NewMySQLStore(cfg.MySQLDSN(), log)
	case "memory":
		return repository.NewMemoryStore(), nil
	case "sqlite", "":
		return repository.NewSQLiteStore(cfg.Path, log)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
