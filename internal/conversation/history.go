// Package conversation keeps per-session chat history in memory for the
// life of the process.
package conversation

import (
	"sync"

	"quotedesk-ai/internal/llm"
)

// History stores role-tagged messages per opaque session identifier.
// Sessions are created on first append and never destroyed; each is trimmed
// to the configured turn cap, oldest messages dropped first.
type History struct {
	maxTurns int

	mu       sync.Mutex
	sessions map[string][]llm.Message
}

// NewHistory creates a history store capped at maxTurns user/assistant
// exchanges per session.
func NewHistory(maxTurns int) *History {
	return &History{
		maxTurns: maxTurns,
		sessions: make(map[string][]llm.Message),
	}
}

// Append records a message for the session, trimming to the turn cap.
// One turn is a user/assistant pair, so the cap allows 2*maxTurns messages.
func (h *History) Append(sessionID, role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := append(h.sessions[sessionID], llm.Message{Role: role, Content: content})
	if limit := 2 * h.maxTurns; len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	h.sessions[sessionID] = msgs
}

// Recent returns up to the trailing n messages for the session, ordered
// oldest first. The returned slice is a copy.
func (h *History) Recent(sessionID string, n int) []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := h.sessions[sessionID]
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Len returns the number of stored messages for the session.
func (h *History) Len(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}
