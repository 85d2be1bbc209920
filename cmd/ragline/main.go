package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/lattica-ai/ragline/internal/blob"
	"github.com/lattica-ai/ragline/internal/config"
	dbRedis "github.com/lattica-ai/ragline/internal/db/redis"
	"github.com/lattica-ai/ragline/internal/extract"
	logpkg "github.com/lattica-ai/ragline/internal/logger"
	"github.com/lattica-ai/ragline/internal/metrics"
	collectionrepo "github.com/lattica-ai/ragline/internal/repository/collection"
	conversationrepo "github.com/lattica-ai/ragline/internal/repository/conversation"
	documentrepo "github.com/lattica-ai/ragline/internal/repository/document"
	storebadger "github.com/lattica-ai/ragline/internal/store/badger"
	"github.com/lattica-ai/ragline/internal/transport/httpapi"
	"github.com/lattica-ai/ragline/internal/transport/llm"
	openaiEmb "github.com/lattica-ai/ragline/internal/transport/openai"
	chatuc "github.com/lattica-ai/ragline/internal/usecase/chat"
	collectionuc "github.com/lattica-ai/ragline/internal/usecase/collection"
	ingestuc "github.com/lattica-ai/ragline/internal/usecase/ingest"
	"github.com/lattica-ai/ragline/internal/vecindex"
	vecmemory "github.com/lattica-ai/ragline/internal/vecindex/memory"
	vecredis "github.com/lattica-ai/ragline/internal/vecindex/redis"
	"github.com/lattica-ai/ragline/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragline API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_driver", cfg.Index.Driver),
	)

	// Record store for collections, documents and conversations.
	backend, err := storebadger.Open(cfg.Records.Dir, cfg.Records.InMemory, logger)
	if err != nil {
		logger.Fatal("Failed to open record store", zap.Error(err))
	}
	defer func() { _ = backend.Close() }()

	// Register domain metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()
	metrics.RegisterChatMetrics()

	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	checks := map[string]httpapi.HealthChecker{
		"records":   healthFunc(func(_ context.Context) error { return backend.View(func(*badger.Txn) error { return nil }) }),
		"embedding": embedder,
	}

	// Vector index driver.
	ctx := context.Background()
	var index vecindex.Index
	switch cfg.Index.Driver {
	case "memory":
		index = vecmemory.New(embedder)
	case "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Index.Addrs,
			Password: cfg.Index.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create index store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Index.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Index store not ready", zap.Error(err))
		}
		logger.Info("Connected to index store", zap.Strings("addrs", cfg.Index.Addrs))

		index = vecredis.New(store, embedder, vecredis.Options{
			KeyPrefix:       cfg.Index.KeyPrefix,
			VectorDim:       cfg.Embedding.Dimensions,
			HNSWM:           cfg.Index.HNSWM,
			HNSWEFConstruct: cfg.Index.HNSWEFConstruct,
		})
		checks["index"] = healthFunc(store.Ping)
	default:
		logger.Fatal("Unknown index driver", zap.String("driver", cfg.Index.Driver))
	}

	blobStore := blob.New(cfg.Blob.BaseURL)

	model, err := llm.New(&llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		logger.Fatal("Failed to create chat model", zap.Error(err))
	}

	collRepo := collectionrepo.New(backend)
	docRepo := documentrepo.New(backend)
	convRepo := conversationrepo.New(backend)

	collSvc := collectionuc.New(collRepo, docRepo, blobStore, index, logger)
	ingestSvc, err := ingestuc.New(docRepo, collRepo, blobStore, extract.New(), index, ingestuc.Config{
		Workers:           cfg.Ingest.Workers,
		MaxFileSizeBytes:  int64(cfg.Ingest.MaxFileSizeMB) << 20,
		AllowedExtensions: cfg.Ingest.AllowedExtensions,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create ingestion service", zap.Error(err))
	}
	defer ingestSvc.Close()

	chatEngine := chatuc.New(convRepo, collRepo, index, model, chatuc.Options{
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		TopK:            cfg.Chat.TopK,
		ChatSystemText:  cfg.LLM.ChatSystemText,
		RAGSystemText:   cfg.LLM.RAGSystemText,
		RAGQueryPattern: cfg.LLM.RAGQueryPattern,
	}, logger)

	server := httpapi.NewServer(collSvc, ingestSvc, chatEngine, checks, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// healthFunc adapts a plain readiness probe to httpapi.HealthChecker.
type healthFunc func(ctx context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
