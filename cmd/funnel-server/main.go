// cmd/funnel-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"quiz-funnels/internal/api"
	"quiz-funnels/internal/common/clock"
	"quiz-funnels/internal/common/config"
	"quiz-funnels/internal/common/database"
	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/common/observability"
	"quiz-funnels/internal/docstore"
	"quiz-funnels/internal/editor"
	"quiz-funnels/internal/events"
	"quiz-funnels/internal/flagstore"
	"quiz-funnels/internal/funnels"
	"quiz-funnels/internal/player"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting funnel server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("store", cfg.Store.Backend),
		zap.String("flags", cfg.Flags.Backend),
	)

	obs := observability.New(cfg.App.Name, nil, log)
	defer obs.Shutdown(context.Background())

	ctx := context.Background()
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// --- Document store ---
	var store docstore.Store
	switch cfg.Store.Backend {
	case config.BackendMongoDB:
		var mongoClient *database.MongoClient
		err = retryWithBackoff(func() error {
			var err error
			mongoClient, err = database.NewMongo(cfg.Database.MongoDB)
			if err != nil {
				return err
			}
			return mongoClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "MongoDB connection")
		if err != nil {
			zapLog.Fatal("mongodb failed after retries", zap.Error(err))
		}
		closers = append(closers, func() { _ = mongoClient.Close(context.Background()) })
		store = docstore.NewMongoStore(mongoClient.Database)
		zapLog.Info("MongoDB connected successfully")

	case config.BackendPostgres:
		var pg *database.PostgresClient
		var pgStore *docstore.PostgresStore
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				pg.Close()
				return err
			}
			pgStore = docstore.NewPostgresStore(pg.DB)
			return pgStore.EnsureSchema(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		closers = append(closers, func() { _ = pg.Close() })
		store = pgStore
		zapLog.Info("PostgreSQL connected successfully")

	case config.BackendElasticsearch:
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		store = docstore.NewElasticsearchStore(esClient.Client, cfg.Database.Elasticsearch.IndexPrefix)
		zapLog.Info("Elasticsearch connected successfully")

	default:
		zapLog.Warn("Using the in-memory funnel store, data is lost on restart")
		store = docstore.NewMemoryStore()
	}

	// --- Flag store ---
	var flags flagstore.Store
	switch cfg.Flags.Backend {
	case config.BackendRedis:
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		closers = append(closers, func() { _ = redis.Close() })
		flags = flagstore.NewRedisStore(redis.Client, cfg.Flags.KeyPrefix)
		zapLog.Info("Redis connected successfully")
	default:
		flags = flagstore.NewMemoryStore()
	}

	// --- Domain services ---
	hub := events.NewHub(log)
	repo := funnels.NewRepository(funnels.Config{
		Collection: cfg.Store.Collection,
		Timeout:    config.GetDuration(cfg.Store.Timeout),
		Migration:  cfg.Migration,
	}, store, flags, hub, log)

	clk := clock.Real()
	editors := editor.NewManager(editor.Config{
		AutosaveDelay: config.GetDuration(cfg.Editor.AutosaveDelay),
		IdleTimeout:   config.GetDuration(cfg.Editor.SessionIdleTimeout),
	}, repo, clk, log)
	players := player.NewManager(player.Config{
		AnswerDelay:    config.GetDuration(cfg.Player.AnswerDelay),
		PlaceholderURL: cfg.Player.PlaceholderURL,
		IdleTimeout:    config.GetDuration(cfg.Player.SessionIdleTimeout),
	}, repo, clk, log)

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(api.Deps{
			Funnels:       repo,
			Editors:       editors,
			Players:       players,
			Events:        hub,
			Observability: obs,
			PublicBaseURL: cfg.Server.PublicBaseURL,
			Log:           log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Idle session sweep ---
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(config.GetDuration(cfg.Server.SweepInterval))
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				e := editors.Sweep(sweepCtx)
				p := players.Sweep()
				if e > 0 || p > 0 {
					zapLog.Info("Idle sessions swept", zap.Int("editors", e), zap.Int("players", p))
				}
			}
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")
	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if err := editors.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Some editor changes could not be saved", zap.Error(err))
	}
	players.Shutdown()

	zapLog.Info("Funnel server stopped gracefully")
}
