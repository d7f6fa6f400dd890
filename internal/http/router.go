package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quotedesk-ai/internal/handlers"
	"quotedesk-ai/internal/index"
	"quotedesk-ai/internal/indexer"
	"quotedesk-ai/internal/rag"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine    *rag.Engine
	Builder   *indexer.Builder
	Store     *index.Store
	AIEnabled bool
}

// NewRouter creates the HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	chatHandler := handlers.NewChatHandler(deps.Engine)
	reindexHandler := handlers.NewReindexHandler(deps.Builder)
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.AIEnabled)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/chat", chatHandler)
		r.Method(http.MethodPost, "/reindex", reindexHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	return r
}
