package handlers

import (
	"net/http"
	"time"

	"quotedesk-ai/internal/contextutil"
	"quotedesk-ai/internal/index"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	store     *index.Store
	aiEnabled bool
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(store *index.Store, aiEnabled bool) *HealthHandler {
	return &HealthHandler{store: store, aiEnabled: aiEnabled}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	AIEnabled bool   `json:"ai_enabled"`
	Chunks    int    `json:"chunks"`
	Paths     int    `json:"paths"`
	Indexed   bool   `json:"indexed"`
}

// ServeHTTP reports process liveness plus index and AI-credential state.
// An empty index with AI enabled means indexing has not finished (or the
// corpus is empty); it is reported, not treated as unhealthy.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	snap := h.store.Current()
	writeJSON(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		AIEnabled: h.aiEnabled,
		Chunks:    len(snap.Meta),
		Paths:     snap.PathCount(),
		Indexed:   !snap.Empty(),
	})
}
