// Command quiverd runs the index engine as a long-lived service: an HTTP
// API for ingest and queries, an optional Kafka consumer for streaming
// ingestion, an optional Redis query cache, Prometheus metrics, and
// health probes.
//
// Usage:
//
//	go run ./cmd/quiverd [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/quiverdb/quiver/internal/analytics"
	"github.com/quiverdb/quiver/internal/engine"
	"github.com/quiverdb/quiver/internal/server"
	"github.com/quiverdb/quiver/internal/server/cache"
	"github.com/quiverdb/quiver/internal/server/consumer"
	"github.com/quiverdb/quiver/pkg/config"
	"github.com/quiverdb/quiver/pkg/health"
	"github.com/quiverdb/quiver/pkg/kafka"
	"github.com/quiverdb/quiver/pkg/logger"
	"github.com/quiverdb/quiver/pkg/metrics"
	"github.com/quiverdb/quiver/pkg/middleware"
	"github.com/quiverdb/quiver/pkg/postgres"
	pkgredis "github.com/quiverdb/quiver/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting quiverd",
		"index_path", cfg.Index.IndexPath,
		"docstore_path", cfg.Index.DocstorePath,
	)

	eng, err := engine.Open(engine.Config{
		IndexPath:        cfg.Index.IndexPath,
		DocstorePath:     cfg.Index.DocstorePath,
		StopwordsPath:    cfg.Index.StopwordsPath,
		MemoryLimitBytes: cfg.Index.MemoryLimitBytes,
	})
	if err != nil {
		slog.Error("failed to open engine", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	checker := health.NewChecker()
	checker.Register("engine", func(ctx context.Context) health.ComponentHealth {
		if _, err := eng.DiskTerms(); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis not available, running without query cache", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis)
			checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
				if err := redisClient.Ping(ctx); err != nil {
					return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
				}
				return health.ComponentHealth{Status: health.StatusUp}
			})
			slog.Info("query cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var agg *analytics.Aggregator
	if cfg.Analytics.Enabled {
		agg = analytics.NewAggregator()
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres not available, analytics snapshots disabled", "error", err)
		} else {
			defer db.Close()
			store := analytics.NewStore(db)
			store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
			checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
				if err := db.DB.PingContext(ctx); err != nil {
					return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
				}
				return health.ComponentHealth{Status: health.StatusUp}
			})
		}
	}

	srv := server.New(eng, queryCache, agg, m)

	mux := srv.Routes()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var handler http.Handler = mux
	handler = middleware.Timeout(cfg.Server.RequestTimeout)(handler)
	handler = middleware.Metrics(m)(handler)
	handler = middleware.RequestID(handler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("http server listening", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metricsMux,
		}
		group.Go(func() error {
			slog.Info("metrics server listening", "port", cfg.Metrics.Port)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	if cfg.Kafka.Enabled {
		kafkaConsumer := kafka.NewConsumer(
			cfg.Kafka,
			cfg.Kafka.Topics.DocumentIngest,
			consumer.HandleMessage(srv),
		)
		ingest := consumer.New(kafkaConsumer)
		group.Go(func() error {
			return ingest.Start(groupCtx)
		})
		slog.Info("streaming ingestion enabled",
			"topic", cfg.Kafka.Topics.DocumentIngest,
			"group", cfg.Kafka.ConsumerGroup,
		)
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown failed", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", "error", err)
			}
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		slog.Error("service error", "error", err)
	}

	slog.Info("flushing index before shutdown")
	if err := srv.Close(); err != nil {
		slog.Error("final flush failed", "error", err)
	}
	slog.Info("quiverd stopped")
}
