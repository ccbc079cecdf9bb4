package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/studyabroad-backend/internal/cleanup"
	"github.com/angelmondragon/studyabroad-backend/internal/cron"
	"github.com/angelmondragon/studyabroad-backend/internal/docstore"
	"github.com/angelmondragon/studyabroad-backend/internal/media"
	"github.com/angelmondragon/studyabroad-backend/pkg/config"
	"github.com/angelmondragon/studyabroad-backend/pkg/db"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
	"github.com/angelmondragon/studyabroad-backend/pkg/metrics"
	"github.com/angelmondragon/studyabroad-backend/pkg/migrate"
	"github.com/angelmondragon/studyabroad-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"serviceKind": cfg.Service.Kind, "mediaDriver": cfg.Media.Driver})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down gracefully")
}

// run wires the sweep job and blocks until ctx is canceled. Redis is required
// here because the lock keeps replicas from sweeping the same rows.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer redisClient.Close()

	// preview caching is irrelevant to deletes
	stores, err := media.Open(ctx, cfg, logg, media.OpenOptions{})
	if err != nil {
		return fmt.Errorf("bootstrap media store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cronMetrics := metrics.NewCronJobMetrics(registry)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cfg.Service.Kind, cfg.App.Env), 0)
	if err != nil {
		return err
	}
	sweep, err := cron.NewOrphanMediaSweepJob(cron.OrphanMediaSweepJobParams{
		Logger:      logg,
		Repo:        cleanup.NewRepository(dbClient.DB()),
		Documents:   docstore.NewRepository(dbClient.DB()),
		Media:       stores.Store,
		Metrics:     cronMetrics,
		BatchSize:   cfg.Cleanup.BatchSize,
		MaxAttempts: cfg.Cleanup.MaxAttempts,
	})
	if err != nil {
		return err
	}
	jobs, err := cron.NewRegistry(sweep)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cleanup.Interval,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.App.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logg.Info(ctx, "starting cron worker")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := service.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
