package handlers

import (
	"encoding/json"
	"net/http"

	"quotedesk-ai/internal/contextutil"
	"quotedesk-ai/internal/indexer"
)

// ReindexHandler handles HTTP requests that force an index rebuild.
type ReindexHandler struct {
	builder *indexer.Builder
}

// NewReindexHandler creates a new ReindexHandler.
func NewReindexHandler(builder *indexer.Builder) *ReindexHandler {
	return &ReindexHandler{builder: builder}
}

// ReindexResponse reports the rebuilt index size.
type ReindexResponse struct {
	OK     bool   `json:"ok"`
	Chunks int    `json:"chunks"`
	Paths  int    `json:"paths"`
	Error  string `json:"error,omitempty"`
}

// ServeHTTP invalidates the cache and rebuilds the index, returning chunk
// and distinct-path counts.
func (h *ReindexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	snap, err := h.builder.Reindex(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "reindex failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ReindexResponse{OK: false, Error: "reindex failed"})
		return
	}

	logger.InfoContext(ctx, "reindex completed", "chunks", len(snap.Meta), "paths", snap.PathCount())
	writeJSON(w, ReindexResponse{
		OK:     true,
		Chunks: len(snap.Meta),
		Paths:  snap.PathCount(),
	})
}
