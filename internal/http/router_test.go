package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"quotedesk-ai/internal/conversation"
	"quotedesk-ai/internal/corpus"
	"quotedesk-ai/internal/index"
	"quotedesk-ai/internal/indexer"
	indexermocks "quotedesk-ai/internal/indexer/mocks"
	"quotedesk-ai/internal/rag"
	ragmocks "quotedesk-ai/internal/rag/mocks"
)

func newTestDeps(t *testing.T) *Deps {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	dir := t.TempDir()
	store := index.NewStore(filepath.Join(dir, "vectors.db"), filepath.Join(dir, "index.json"))
	store.Install(&index.Snapshot{
		Vectors: [][]float32{{1, 0, 0}},
		Meta:    []index.ChunkMeta{{Path: "templates/quote.html", Text: "the quote form collects lane and weight"}},
		Dim:     3,
	})

	queryEmbedder := ragmocks.NewMockQueryEmbedder(ctrl)
	queryEmbedder.EXPECT().
		EmbedTexts(gomock.Any(), gomock.Any()).
		Return([][]float32{{1, 0, 0}}, nil).
		AnyTimes()

	completer := ragmocks.NewMockCompleter(ctrl)
	completer.EXPECT().
		Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("A grounded answer.", nil).
		AnyTimes()

	buildEmbedder := indexermocks.NewMockEmbedder(ctrl)
	buildEmbedder.EXPECT().
		EmbedTexts(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{1, 0, 0}
			}
			return out, nil
		}).
		AnyTimes()

	scanner := corpus.NewScanner([]string{t.TempDir()}, []string{"*.txt"}, nil, 1_500_000)
	builder := indexer.NewBuilder(scanner, corpus.NewExtractor(), store, buildEmbedder, indexer.BuilderOptions{
		AIEnabled:      true,
		ChunkSize:      1200,
		ChunkOverlap:   200,
		MaxTotalChunks: 4000,
		EmbedBatchSize: 32,
		EmbeddingDim:   3,
	})

	retriever := rag.NewRetriever(store, queryEmbedder, "templates/chatbot", 16000)
	engine := rag.NewEngine(retriever, completer, nil, conversation.NewHistory(6), rag.EngineOptions{
		AIEnabled:       true,
		TopK:            12,
		MinContextChars: 10,
		MinKeywordHits:  1,
		HistoryTurns:    6,
	})

	return &Deps{Engine: engine, Builder: builder, Store: store, AIEnabled: true}
}

func TestRouter_Routes(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"chat", http.MethodPost, "/api/chat", `{"message":"what does the quote form collect"}`, http.StatusOK},
		{"reindex", http.MethodPost, "/api/reindex", "", http.StatusOK},
		{"health", http.MethodGet, "/api/health", "", http.StatusOK},
		{"chat wrong method", http.MethodGet, "/api/chat", "", http.StatusMethodNotAllowed},
		{"unknown route", http.MethodGet, "/api/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_ChatRepliesJSON(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"what does the quote form collect"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "A grounded answer." {
		t.Errorf("reply = %q", resp.Reply)
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5000" {
		t.Errorf("allow-origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("allow-methods = %q", got)
	}
}
