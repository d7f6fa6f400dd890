package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_query_embedder.go -package=mocks quotedesk-ai/internal/rag QueryEmbedder

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"quotedesk-ai/internal/contextutil"
	"quotedesk-ai/internal/index"
)

const (
	keywordHitWeight  = float32(0.03)
	priorityHitWeight = float32(0.05)
)

// QueryEmbedder embeds query text. It must share the embedding space of the
// service that built the index; mixing spaces silently breaks similarity.
type QueryEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ScoredChunk is one ranked retrieval result.
type ScoredChunk struct {
	Path  string
	Text  string
	Score float32
	// KeywordHits is the number of distinct query tokens found in the text.
	KeywordHits int
}

// Retriever ranks indexed chunks against a query by blending cosine
// similarity with a keyword-overlap bonus.
type Retriever struct {
	store           *index.Store
	embedder        QueryEmbedder
	priorityFolder  string
	maxContextChars int
}

// NewRetriever creates a retriever over the given index store. Chunks whose
// source path lies under priorityFolder receive an extra keyword boost so
// curated documentation outranks incidental matches.
func NewRetriever(store *index.Store, embedder QueryEmbedder, priorityFolder string, maxContextChars int) *Retriever {
	return &Retriever{
		store:           store,
		embedder:        embedder,
		priorityFolder:  filepath.ToSlash(priorityFolder),
		maxContextChars: maxContextChars,
	}
}

// Retrieve returns the topK best chunks for the query, deterministic for a
// fixed index and query embedding. The result never exceeds the configured
// context character budget. An empty index returns an empty result without
// calling the embedding service.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ScoredChunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	snap := r.store.Current()
	if snap.Empty() {
		return nil, nil
	}

	embeddings, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	queryVec := normalize(embeddings[0])

	queryTokens := UniqueTokens(query)

	type candidate struct {
		pos   int
		score float32
		hits  int
	}
	candidates := make([]candidate, len(snap.Vectors))
	for i, vec := range snap.Vectors {
		sim := dot(normalize(vec), queryVec)

		meta := snap.Meta[i]
		hits := countKeywordHits(queryTokens, meta.Text)
		bonus := keywordHitWeight * float32(hits)
		if r.isPriorityPath(meta.Path) {
			bonus += priorityHitWeight * float32(hits)
		}

		candidates[i] = candidate{pos: i, score: sim + bonus, hits: hits}
	}

	// Equal scores order by source path, then original chunk position, so
	// repeated runs return identical lists.
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		pa, pb := snap.Meta[candidates[a].pos].Path, snap.Meta[candidates[b].pos].Path
		if pa != pb {
			return pa < pb
		}
		return candidates[a].pos < candidates[b].pos
	})

	// Walk a 2*topK superset under the character budget, then cut to topK.
	superset := 2 * topK
	if superset > len(candidates) {
		superset = len(candidates)
	}

	var out []ScoredChunk
	total := 0
	for _, c := range candidates[:superset] {
		meta := snap.Meta[c.pos]
		if total+len(meta.Text) > r.maxContextChars {
			break
		}
		out = append(out, ScoredChunk{
			Path:        meta.Path,
			Text:        meta.Text,
			Score:       c.score,
			KeywordHits: c.hits,
		})
		total += len(meta.Text)
	}
	if len(out) > topK {
		out = out[:topK]
	}

	logger.DebugContext(ctx, "retrieval completed", "candidates", len(candidates), "selected", len(out), "total_chars", total)
	return out, nil
}

func (r *Retriever) isPriorityPath(path string) bool {
	if r.priorityFolder == "" {
		return false
	}
	return strings.Contains(strings.ToLower(filepath.ToSlash(path)), strings.ToLower(r.priorityFolder))
}

// countKeywordHits counts distinct query tokens occurring as substrings of
// the chunk text.
func countKeywordHits(queryTokens []string, text string) int {
	if len(queryTokens) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, tok := range queryTokens {
		if tok != "" && strings.Contains(lower, tok) {
			hits++
		}
	}
	return hits
}

// normalize returns the L2-normalized copy of vec. The epsilon guards the
// zero vector.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := float32(math.Sqrt(sum)) + 1e-9
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
