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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/indexer/loader"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/providers/embedding"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/providers/graphstore"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/hybrid"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/rerank"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/redis"
)

const invalidateQuiet = 500 * time.Millisecond

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("retriever exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("retriever stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting retriever", "port", cfg.Server.Port)

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	checker := health.NewChecker()

	// Exact-match index: bootstrap from Postgres, then follow the item stream.
	idx := index.NewGuarded(index.New(indexConfig(cfg.Index)))
	checker.Register("index", health.IndexCheck(func() int { return idx.Stats().Documents }))

	if cfg.Postgres.Enabled {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()
		checker.Register("postgres", health.PingCheck(pg, false))

		n, err := loader.New(pg.DB, pg.ItemsTable()).Load(ctx, idx)
		if err != nil {
			return fmt.Errorf("bootstrapping index: %w", err)
		}
		stats := idx.Stats()
		m.IndexDocuments.Set(float64(stats.Documents))
		m.IndexTerms.Set(float64(stats.Terms))
		slog.Info("index bootstrapped", "items", n, "terms", stats.Terms)
	}

	// Response cache.
	var queryCache *cache.QueryCache[handler.RetrieveResponse]
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, response caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New[handler.RetrieveResponse](redisClient, cfg.Redis.CacheTTL, m).
				SkipWhen(func(r handler.RetrieveResponse) bool { return r.Diagnostics.Degraded() }).
				ComputeTimeout(cfg.Server.RequestTimeout)
			checker.Register("redis", health.PingCheck(redisClient, false))
			slog.Info("response cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	// Graph store, serving both vector similarity and traversal.
	deps := hybrid.Deps{
		Exact:   idx,
		Metrics: m,
		Breaker: breakerConfig(cfg.Breaker),
	}
	if !cfg.Retrieval.UseExactMatch {
		deps.Exact = nil
	}
	if cfg.Neo4j.Enabled {
		embedder, err := embedding.New(cfg.Embedding, m)
		if err != nil {
			return err
		}
		store, err := graphstore.New(ctx, cfg.Neo4j, embedder)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(closeCtx)
		}()
		deps.Vector = store
		deps.Graph = store
		checker.Register("neo4j", health.PingCheck(store, true))
	}

	// Reranking. The registry owns loaded models and the pool bounds
	// concurrent local inference.
	registry := rerank.NewRegistry()
	defer registry.Close()
	pool := rerank.NewPool(cfg.Rerank.Workers, cfg.Rerank.QueueSize)
	defer pool.Close()
	reranker, err := rerank.Build(rerankSettings(cfg.Rerank), registry, pool)
	if err != nil {
		return err
	}
	deps.Reranker = reranker

	orchestrator, err := hybrid.New(hybridConfig(cfg.Retrieval), deps)
	if err != nil {
		return err
	}
	for _, source := range []string{hybrid.SourceVector, hybrid.SourceGraph} {
		if _, ok := orchestrator.BreakerState(source); !ok {
			continue
		}
		checker.Register(source+"_breaker", health.BreakerCheck(func() string {
			state, _ := orchestrator.BreakerState(source)
			return state.String()
		}))
	}

	// Analytics.
	var tracker handler.Tracker
	aggregator := analytics.NewAggregator()
	if cfg.Analytics.Enabled {
		var publisher analytics.Publisher
		if cfg.Kafka.Enabled {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
			defer producer.Close()
			publisher = producer
		}
		collector := analytics.NewCollector(publisher, aggregator, m,
			cfg.Analytics.BufferSize, cfg.Analytics.FlushSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
	}

	g, gctx := errgroup.WithContext(ctx)

	// Item stream keeps the index current and drops stale cached responses.
	if cfg.Kafka.Enabled {
		invalidate := newDebouncer(invalidateQuiet, func(ctx context.Context) {
			if queryCache == nil {
				return
			}
			if _, err := queryCache.Invalidate(ctx); err != nil {
				slog.Warn("cache invalidation after index change failed", "error", err)
			}
		})
		defer invalidate.Stop()

		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ItemEvents,
			consumer.HandleMessage(idx, m, invalidate.Trigger),
			kafka.WithGroupID(replicaGroup(cfg.Kafka.ConsumerGroup)),
			kafka.FromBeginning(),
		)
		defer kc.Close()
		ic := consumer.New(kc)
		g.Go(func() error {
			if err := ic.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("index consumer: %w", err)
			}
			return nil
		})
	}

	h := handler.New(orchestrator, queryCache, idx, tracker, m, cfg.Retrieval.DefaultLimit, cfg.Retrieval.MaxLimit)

	mux := http.NewServeMux()
	h.Register(mux)
	analytics.NewHandler(aggregator).Register(mux)
	mux.HandleFunc("GET /health", checker.LiveHandler())
	mux.HandleFunc("GET /ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
		g.Go(func() error {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					limiter.Prune()
				}
			}
		})
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("retriever listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
