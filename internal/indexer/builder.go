package indexer

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks quotedesk-ai/internal/indexer Embedder

import (
	"context"
	"fmt"

	"quotedesk-ai/internal/contextutil"
	"quotedesk-ai/internal/corpus"
	"quotedesk-ai/internal/index"
)

// Embedder generates embedding vectors for batches of text.
// This interface is defined from the builder's perspective (consumer-first).
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Builder turns the scanned corpus into a persisted, embedded chunk index.
type Builder struct {
	scanner   *corpus.Scanner
	extractor *corpus.Extractor
	store     *index.Store
	embedder  Embedder

	aiEnabled      bool
	chunkSize      int
	chunkOverlap   int
	maxTotalChunks int
	embedBatchSize int
	embeddingDim   int
}

// BuilderOptions carries the chunking and embedding limits for a Builder.
type BuilderOptions struct {
	AIEnabled      bool
	ChunkSize      int
	ChunkOverlap   int
	MaxTotalChunks int
	EmbedBatchSize int
	EmbeddingDim   int
}

// NewBuilder creates an index builder.
func NewBuilder(scanner *corpus.Scanner, extractor *corpus.Extractor, store *index.Store, embedder Embedder, opts BuilderOptions) *Builder {
	return &Builder{
		scanner:        scanner,
		extractor:      extractor,
		store:          store,
		embedder:       embedder,
		aiEnabled:      opts.AIEnabled,
		chunkSize:      opts.ChunkSize,
		chunkOverlap:   opts.ChunkOverlap,
		maxTotalChunks: opts.MaxTotalChunks,
		embedBatchSize: opts.EmbedBatchSize,
		embeddingDim:   opts.EmbeddingDim,
	}
}

// BuildOrLoad makes the live index reflect the current corpus and returns
// the installed snapshot.
//
// Without an embedding credential it installs an explicit empty index; that
// is a degraded mode, not an error. Otherwise it scans, fingerprints,
// and reuses the persisted cache on a signature match; on a miss it extracts,
// chunks under the global budget, embeds in fixed-size batches, persists and
// installs the result. Embedding-service failures propagate to the caller.
func (b *Builder) BuildOrLoad(ctx context.Context) (*index.Snapshot, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if !b.aiEnabled {
		snap := &index.Snapshot{Dim: b.embeddingDim}
		if err := b.store.Save(snap); err != nil {
			logger.WarnContext(ctx, "failed to persist empty index", "error", err)
		}
		b.store.Install(snap)
		return snap, nil
	}

	files, err := b.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus: %w", err)
	}
	signature := Fingerprint(files)

	if live := b.store.Current(); !live.Empty() && live.Signature == signature {
		return live, nil
	}

	if snap, ok := b.store.Load(signature, b.embeddingDim); ok {
		logger.InfoContext(ctx, "index cache hit", "chunks", len(snap.Meta), "signature", signature)
		b.store.Install(snap)
		return snap, nil
	}

	logger.InfoContext(ctx, "index cache miss, rebuilding", "files", len(files), "signature", signature)
	snap, err := b.build(ctx, files, signature)
	if err != nil {
		return nil, err
	}
	if err := b.store.Save(snap); err != nil {
		return nil, fmt.Errorf("failed to persist index: %w", err)
	}
	b.store.Install(snap)

	logger.InfoContext(ctx, "index rebuilt", "chunks", len(snap.Meta), "paths", snap.PathCount())
	return snap, nil
}

// Reindex deletes the cache files and rebuilds from scratch.
func (b *Builder) Reindex(ctx context.Context) (*index.Snapshot, error) {
	if err := b.store.Clear(); err != nil {
		return nil, err
	}
	b.store.Install(&index.Snapshot{Dim: b.embeddingDim})
	return b.BuildOrLoad(ctx)
}

// build extracts, chunks and embeds the corpus into a new snapshot.
func (b *Builder) build(ctx context.Context, files []string, signature string) (*index.Snapshot, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var meta []index.ChunkMeta
	var texts []string
	for _, path := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		remaining := b.maxTotalChunks - len(texts)
		if remaining <= 0 {
			logger.WarnContext(ctx, "global chunk budget reached, truncating corpus", "max_total_chunks", b.maxTotalChunks)
			break
		}

		text, err := b.extractor.Extract(path)
		if err != nil {
			// Fail open: a bad file contributes zero chunks.
			logger.WarnContext(ctx, "extraction failed, skipping file", "path", path, "error", err)
			continue
		}
		if text == "" {
			continue
		}

		for _, chunk := range ChunkText(text, b.chunkSize, b.chunkOverlap, remaining) {
			texts = append(texts, chunk)
			meta = append(meta, index.ChunkMeta{Path: path, Text: chunk})
		}
	}

	snap := &index.Snapshot{Signature: signature, Dim: b.embeddingDim}
	if len(texts) == 0 {
		// Explicitly empty so a stale cache never outlives an empty corpus.
		return snap, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.embedBatchSize {
		end := start + b.embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := b.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk batch %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}

	snap.Vectors = vectors
	snap.Meta = meta
	return snap, nil
}
