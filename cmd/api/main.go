package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/studyabroad-backend/api/controllers"
	"github.com/angelmondragon/studyabroad-backend/api/routes"
	"github.com/angelmondragon/studyabroad-backend/internal/cleanup"
	"github.com/angelmondragon/studyabroad-backend/internal/collections"
	"github.com/angelmondragon/studyabroad-backend/internal/docstore"
	"github.com/angelmondragon/studyabroad-backend/internal/media"
	"github.com/angelmondragon/studyabroad-backend/internal/records"
	"github.com/angelmondragon/studyabroad-backend/pkg/config"
	"github.com/angelmondragon/studyabroad-backend/pkg/db"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
	"github.com/angelmondragon/studyabroad-backend/pkg/metrics"
	"github.com/angelmondragon/studyabroad-backend/pkg/migrate"
	"github.com/angelmondragon/studyabroad-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	health := map[string]controllers.Pinger{"db": dbClient}
	deps := routes.Deps{Config: cfg, Logger: logg, Health: health}

	// redis only backs idempotent replay; the api runs without it
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		health["redis"] = redisClient
		deps.Idempotency = redisClient
	} else {
		logg.Warn(context.Background(), "redis not configured, idempotent replay disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mediaMetrics := metrics.NewMediaMetrics(registry)
	deps.HTTPMetrics = metrics.NewHTTPMetrics(registry)
	deps.Gatherer = registry

	catalog := collections.New()
	logg.Info(logg.WithFields(context.Background(), map[string]any{"collections": catalog.Names()}), "catalog loaded")

	mediaStores, err := media.Open(context.Background(), cfg, logg, media.OpenOptions{
		CachePreviews: true,
		Metrics:       mediaMetrics,
		Buckets:       catalog.Buckets(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap media store", err)
		os.Exit(1)
	}
	health["media"] = mediaStores.Store
	deps.LocalMedia = mediaStores.Local

	codec := records.NewCodec()
	manager, err := records.NewManager(records.ManagerParams{
		Documents:      docstore.NewRepository(dbClient.DB()),
		Media:          mediaStores.Store,
		Codec:          codec,
		Orphans:        cleanup.NewRepository(dbClient.DB()),
		Logger:         logg,
		Metrics:        mediaMetrics,
		MaxUploadBytes: cfg.Media.MaxUploadBytes(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create record manager", err)
		os.Exit(1)
	}
	projector, err := records.NewProjector(records.ProjectorParams{
		Store:       mediaStores.Store,
		Codec:       codec,
		URLTTL:      cfg.Media.PreviewTTL,
		Concurrency: cfg.Media.ProjectionConcurrency,
		Logger:      logg,
		Metrics:     mediaMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create projector", err)
		os.Exit(1)
	}
	deps.Resources = controllers.Resources{
		Catalog:        catalog,
		Manager:        manager,
		Projector:      projector,
		Logger:         logg,
		MaxUploadBytes: cfg.Media.MaxUploadBytes(),
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"dbDriver":    dbClient.Dialect(),
		"mediaDriver": cfg.Media.Driver,
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      routes.NewRouter(deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
