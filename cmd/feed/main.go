package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"feed_service/internal/archive"
	"feed_service/internal/cache"
	"feed_service/internal/config"
	"feed_service/internal/feed"
	"feed_service/internal/httpserver"
	"feed_service/internal/ingest"
	"feed_service/internal/resilience"
	"feed_service/internal/scheduler"
	"feed_service/internal/storage"
	"feed_service/internal/upstream"
	"feed_service/internal/worker"
)

const shutdownTimeout = 15 * time.Second

type options struct {
	Config string `short:"c" long:"config" env:"FEED_CONFIG" default:"config.yaml" description:"path to config file"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	logger := setupLogger("info")

	cfg, err := config.Load(opts.Config)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("feed service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	version, err := storage.Migrate(db)
	if err != nil {
		return err
	}
	logger.Info("database schema up to date", "version", version)

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer rdb.Close()

	if cfg.Cache.IsEnabled() {
		pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis not reachable, feed cache will degrade until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
		cancel()
	}

	registry := resilience.NewRegistry(logger)
	pool := worker.NewPool(cfg.Workers.Count, cfg.Workers.QueueSize, cfg.Workers.TaskTimeout, logger.With("component", "worker"))

	feedCache := cache.NewRedisCache(rdb, cache.Config{
		Enabled:    cfg.Cache.IsEnabled(),
		Key:        cfg.Cache.Key,
		MaxEntries: cfg.Cache.MaxEntries,
		Timeout:    cfg.Cache.Timeout,
		Bulkhead:   cfg.Cache.Bulkhead,
		Breaker:    breakerSettings(cfg.Cache.Breaker),
	}, registry, pool, logger.With("component", "cache"))

	archiveService := archive.NewService(
		storage.NewArchiveStore(db),
		storage.NewTransactionManager(db),
		logger.With("component", "archive"),
		cfg.Archive,
	)

	postClient := upstream.New(upstream.Config{
		BaseURL:           cfg.Upstream.BaseURL,
		CorrelationHeader: cfg.HTTP.CorrelationHeader,
	}, logger)

	feedService := feed.NewService(feedCache, archiveService, postClient, pool, registry, logger.With("component", "feed"), feed.Config{
		Timeout: cfg.Upstream.Timeout,
		Retry:   cfg.Upstream.Retry,
		Breaker: breakerSettings(cfg.Upstream.Breaker),
	})

	handler := ingest.NewHandler(archiveService, feedCache, pool, logger.With("component", "ingest"), ingest.HandlerConfig{
		CorrelationKey: cfg.RabbitMQ.CorrelationKey,
		CacheOnIngest:  cfg.RabbitMQ.ShouldCacheOnIngest(),
	})

	consumer, err := ingest.NewConsumer(ingest.ConsumerConfig{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
		Prefetch:   cfg.RabbitMQ.Prefetch,
	}, handler, logger.With("component", "consumer"))
	if err != nil {
		return err
	}
	defer consumer.Close()

	router := httpserver.NewRouter(
		httpserver.NewHandler(feedService, cfg.Feed.ItemsPerPage, cfg.HTTP.CorrelationHeader, logger.With("component", "http")),
		logger.With("component", "access"),
	)
	server := httpserver.NewServer(cfg.HTTP, router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.Run(gctx)
	})

	if cfg.Cache.IsEnabled() && cfg.Cache.TrimInterval > 0 {
		trim := scheduler.NewScheduler("cache-trim", scheduler.JobFunc(feedCache.Trim),
			cfg.Cache.TrimInterval, cfg.Cache.Timeout, logger.With("component", "scheduler"))
		g.Go(func() error {
			if err := trim.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("starting feed service", "addr", server.Addr, "items_per_page", cfg.Feed.ItemsPerPage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer drainCancel()
	if closeErr := pool.Close(drainCtx); closeErr != nil {
		logger.Warn("worker pool did not drain", "error", closeErr)
	}

	logger.Info("feed service stopped")
	return err
}

func breakerSettings(b config.BreakerConfig) resilience.BreakerSettings {
	return resilience.BreakerSettings{
		VolumeThreshold: b.VolumeThreshold,
		FailureRatio:    b.FailureRatio,
		Delay:           b.Delay,
		Window:          b.Window,
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
