package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/db"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	"github.com/kailas-cloud/ragdex/internal/domain"
	logpkg "github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/ragdex/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/ragdex/internal/transport/openai"
	rerankTransport "github.com/kailas-cloud/ragdex/internal/transport/rerank"
	answeruc "github.com/kailas-cloud/ragdex/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
	"github.com/kailas-cloud/ragdex/internal/version"
)

// batchEmbedder is what the retrieval pipeline needs from the embedder chain.
// Every link of the chain (transport, cache, instruction) implements both.
type batchEmbedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Bool("rerank_enabled", cfg.Rerank.Enabled),
		zap.Bool("generation_enabled", cfg.Generation.Enabled),
	)

	// Register provider metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	// Optional embedding cache store
	var store db.Store
	if cfg.Cache.Enabled {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		ctx := context.Background()
		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to cache store", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	docEmbedder := buildEmbedder(cfg, cfg.Embedding.DocumentInstruction, store, logger)
	queryEmbedder := buildEmbedder(cfg, cfg.Embedding.QueryInstruction, store, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Optional rerank provider
	var reranker retrievaluc.Reranker
	if cfg.Rerank.Enabled {
		reranker = rerankTransport.New(&rerankTransport.Config{
			APIKey:     cfg.Rerank.APIKey,
			Endpoint:   cfg.Rerank.Endpoint,
			Model:      cfg.Rerank.Model,
			Provider:   cfg.Rerank.Provider,
			MaxRetries: cfg.Rerank.MaxRetries,
			Timeout:    time.Duration(cfg.Rerank.TimeoutSec) * time.Second,
			Logger:     logger,
		})
	}

	// Optional answer generation. Pass nil interfaces (not typed nil
	// pointers!) when generation is not configured.
	var generator answeruc.Generator
	var rewriter answeruc.QueryRewriter
	if cfg.Generation.Enabled {
		gen := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:      cfg.Generation.APIKey,
			BaseURL:     cfg.Generation.BaseURL,
			Model:       cfg.Generation.Model,
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
			Provider:    cfg.Embedding.Provider,
			Logger:      logger,
		})
		generator = gen
		rewriter = gen
	}

	// Use case services
	retrievalSvc := retrievaluc.New(
		queryEmbedder, docEmbedder, reranker, cfg.Retrieval.Workers, logger,
	)
	answerSvc := answeruc.New(retrievalSvc, generator, rewriter, logger)

	var cachePinger healthuc.DBPinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(cachePinger, newEmbeddingHealthChecker(docEmbedder))

	server := chiTransport.NewServer(retrievalSvc, answerSvc, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction
func buildEmbedder(
	cfg config.Config,
	instruction string,
	store db.Store,
	logger *zap.Logger,
) batchEmbedder {
	var chain batchEmbedder = openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	if store != nil {
		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		chain = embcache.New(chain, store, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	if instruction != "" {
		chain = domain.NewInstructionEmbedder(chain, instruction)
	}

	return chain
}

// embeddingHealthChecker wraps the embedder chain to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
