package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"quotedesk-ai/internal/contextutil"
	"quotedesk-ai/internal/rag"
)

// sessionCookie carries the opaque conversation-session identifier.
const sessionCookie = "qd_session"

const (
	greetingReply = "Hi! Ask me anything about this project—files, templates, rates, or how the app works."
	apologyReply  = "Sorry, something went wrong while answering. Please try again."
)

// ChatHandler handles HTTP requests for chat.
type ChatHandler struct {
	engine *rag.Engine
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(engine *rag.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

// ChatRequest represents the HTTP request payload for chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse represents the HTTP response payload for chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// ServeHTTP handles HTTP requests for chat.
//
// The chat widget must always get a textual reply: engine failures degrade
// to an apologetic 200-status body, never a hard 5xx.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.Message = ""
	}

	sessionID := h.sessionID(w, r)

	if req.Message == "" {
		writeJSON(w, ChatResponse{Reply: greetingReply})
		return
	}

	reply, err := h.engine.Answer(ctx, sessionID, req.Message)
	if err != nil {
		logger.ErrorContext(ctx, "chat answer failed", "error", err)
		writeJSON(w, ChatResponse{Reply: apologyReply})
		return
	}

	logger.InfoContext(ctx, "chat request answered", "message_length", len(req.Message), "reply_length", len(reply))
	writeJSON(w, ChatResponse{Reply: reply})
}

// sessionID returns the session identifier from the request cookie, minting
// and setting a new one when absent.
func (h *ChatHandler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
	})
	return id
}

// writeJSON writes a 200 JSON body.
func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}
