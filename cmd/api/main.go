package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"quotedesk-ai/internal/config"
	"quotedesk-ai/internal/conversation"
	"quotedesk-ai/internal/corpus"
	"quotedesk-ai/internal/http"
	"quotedesk-ai/internal/index"
	"quotedesk-ai/internal/indexer"
	"quotedesk-ai/internal/llm"
	"quotedesk-ai/internal/rag"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Corpus pipeline components
	scanner := corpus.NewScanner(cfg.CorpusFolders, cfg.IncludeGlobs, cfg.ExcludeDirs, cfg.MaxFileBytes)
	extractor := corpus.NewExtractor()
	store := index.NewStore(cfg.VectorDBPath, cfg.IndexMetaPath)

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDim)
	completer := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	builder := indexer.NewBuilder(scanner, extractor, store, embedder, indexer.BuilderOptions{
		AIEnabled:      cfg.AIEnabled(),
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		MaxTotalChunks: cfg.MaxTotalChunks,
		EmbedBatchSize: cfg.EmbedBatchSize,
		EmbeddingDim:   cfg.EmbeddingDim,
	})

	retriever := rag.NewRetriever(store, embedder, cfg.PriorityFolder, cfg.MaxContextChars)
	history := conversation.NewHistory(cfg.HistoryTurns)
	engine := rag.NewEngine(retriever, completer, builder, history, rag.EngineOptions{
		AIEnabled:       cfg.AIEnabled(),
		StrictLocal:     cfg.StrictLocal,
		DebugSources:    cfg.DebugSources,
		TopK:            cfg.TopK,
		MinContextChars: cfg.MinContextChars,
		MinKeywordHits:  cfg.MinKeywordHits,
		HistoryTurns:    cfg.HistoryTurns,
	})
	slog.Info("RAG engine initialized", "ai_enabled", cfg.AIEnabled(), "folders", cfg.CorpusFolders)

	deps := &http.Deps{
		Engine:    engine,
		Builder:   builder,
		Store:     store,
		AIEnabled: cfg.AIEnabled(),
	}
	router := http.NewRouter(deps)

	// Build the index in the background after the router is ready; requests
	// arriving first see whatever snapshot is installed at the time.
	go func() {
		slog.Info("Starting background index build")
		snap, err := builder.BuildOrLoad(context.Background())
		if err != nil {
			slog.Error("Index build failed", "error", err)
			return
		}
		slog.Info("Index build completed", "chunks", len(snap.Meta), "paths", snap.PathCount())
	}()

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName, "embedding_model", cfg.EmbeddingModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
