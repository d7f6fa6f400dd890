package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_completer.go -package=mocks quotedesk-ai/internal/rag Completer

import (
	"context"
	"fmt"
	"strings"

	"quotedesk-ai/internal/contextutil"
	"quotedesk-ai/internal/conversation"
	"quotedesk-ai/internal/index"
	"quotedesk-ai/internal/llm"
)

// Completer generates a chat completion from a full message list.
// This interface is defined from the engine's perspective (consumer-first).
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, params ChatParams) (string, error)
}

// IndexEnsurer makes the live index reflect the current corpus before a
// retrieval. On an unchanged corpus this is a scan plus a signature check;
// on a changed one it rebuilds.
type IndexEnsurer interface {
	BuildOrLoad(ctx context.Context) (*index.Snapshot, error)
}

// ChatParams aliases the llm package's completion parameters.
type ChatParams = llm.ChatParams

// DisabledMessage is returned when no embedding/completion credential is
// configured.
const DisabledMessage = "AI answers are disabled because no API key is configured. " +
	"Set LLM_API_KEY to enable the smart assistant."

const ragSystemPrompt = "You are the project assistant. Answer clearly using the project context. " +
	"If the context doesn't contain the answer, say so briefly."

const generalSystemPrompt = "You are the project assistant. Answer the question clearly from " +
	"general knowledge; project documentation had nothing relevant to add."

// nonAnswerPhrases identify completions that dodge the question; unless
// strict-local mode forces local-only answers, they trigger one
// general-knowledge retry.
var nonAnswerPhrases = []string{
	"context does not contain",
	"context doesn't contain",
	"context provided does not",
	"no relevant information in the context",
	"cannot answer based on the provided context",
	"not mentioned in the context",
}

// listIntroSuffixes mark answers that end announcing a list without any
// bullet content; they trigger one bulleted rewrite.
var listIntroSuffixes = []string{":", "include", "are as follows", "following"}

// EngineOptions carries the answering thresholds and toggles.
type EngineOptions struct {
	AIEnabled       bool
	StrictLocal     bool
	DebugSources    bool
	TopK            int
	MinContextChars int
	MinKeywordHits  int
	HistoryTurns    int
}

// Engine assembles retrieved context into grounded answers, with a
// general-knowledge fallback when retrieval is weak.
type Engine struct {
	retriever *Retriever
	completer Completer
	ensurer   IndexEnsurer
	history   *conversation.History
	opts      EngineOptions
}

// NewEngine creates an answering engine. ensurer may be nil when the caller
// manages the index lifecycle itself.
func NewEngine(retriever *Retriever, completer Completer, ensurer IndexEnsurer, history *conversation.History, opts EngineOptions) *Engine {
	return &Engine{
		retriever: retriever,
		completer: completer,
		ensurer:   ensurer,
		history:   history,
		opts:      opts,
	}
}

// Answer responds to a question for the given session.
//
// Per query: retrieve; weak context falls back to a context-free completion;
// strong context produces a grounded answer, repaired once if it ends in a
// bare list intro, retried once via the fallback if it is a recognized
// non-answer (unless strict-local). The question and final answer are
// appended to the session history. Every path terminates with a returned
// answer; repairs and fallbacks fire at most once each.
func (e *Engine) Answer(ctx context.Context, sessionID, question string) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if !e.opts.AIEnabled {
		return DisabledMessage, nil
	}

	if e.ensurer != nil {
		if _, err := e.ensurer.BuildOrLoad(ctx); err != nil {
			return "", fmt.Errorf("failed to ensure index: %w", err)
		}
	}

	chunks, err := e.retriever.Retrieve(ctx, question, e.opts.TopK)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve context: %w", err)
	}

	var answer string
	if e.isWeakContext(chunks) {
		logger.InfoContext(ctx, "weak retrieval, using general-knowledge fallback", "chunks", len(chunks))
		answer, err = e.generalAnswer(ctx, sessionID, question)
		if err != nil {
			return "", err
		}
	} else {
		contextText := assembleContext(chunks)
		answer, err = e.groundedAnswer(ctx, sessionID, question, contextText)
		if err != nil {
			return "", err
		}

		if needsBullets(answer) {
			logger.DebugContext(ctx, "answer ends in a bare list intro, requesting bulleted rewrite")
			if repaired, repairErr := e.bulletRepair(ctx, question, contextText, answer); repairErr == nil {
				answer = repaired
			} else {
				logger.WarnContext(ctx, "bullet repair failed, keeping original answer", "error", repairErr)
			}
		}

		if isNonAnswer(answer) && !e.opts.StrictLocal {
			logger.InfoContext(ctx, "non-answer detected, retrying without context")
			if fallback, fbErr := e.generalAnswer(ctx, sessionID, question); fbErr == nil {
				answer = fallback
			} else {
				logger.WarnContext(ctx, "fallback failed, keeping non-answer", "error", fbErr)
			}
		}

		if e.opts.DebugSources {
			if srcs := uniqueSources(chunks, 5); len(srcs) > 0 {
				answer += "\n\n[Sources]\n" + strings.Join(srcs, "\n")
			}
		}
	}

	e.history.Append(sessionID, llm.RoleUser, question)
	e.history.Append(sessionID, llm.RoleAssistant, answer)
	return answer, nil
}

// isWeakContext judges whether retrieval produced enough signal to ground an
// answer: combined text above the length threshold and enough query-keyword
// hits within the top few chunks.
func (e *Engine) isWeakContext(chunks []ScoredChunk) bool {
	if len(chunks) == 0 {
		return true
	}
	totalChars := 0
	hits := 0
	for i, c := range chunks {
		totalChars += len(c.Text)
		if i < 3 {
			hits += c.KeywordHits
		}
	}
	return totalChars < e.opts.MinContextChars || hits < e.opts.MinKeywordHits
}

func (e *Engine) groundedAnswer(ctx context.Context, sessionID, question, contextText string) (string, error) {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: ragSystemPrompt}}
	messages = append(messages, e.history.Recent(sessionID, 2*e.opts.HistoryTurns)...)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Question:\n%s\n\nProject context:\n%s", question, contextText),
	})

	answer, err := e.completer.Complete(ctx, messages, ChatParams{Temperature: 0.2})
	if err != nil {
		return "", fmt.Errorf("failed to get completion: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func (e *Engine) generalAnswer(ctx context.Context, sessionID, question string) (string, error) {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: generalSystemPrompt}}
	messages = append(messages, e.history.Recent(sessionID, 2*e.opts.HistoryTurns)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	answer, err := e.completer.Complete(ctx, messages, ChatParams{Temperature: 0.2})
	if err != nil {
		return "", fmt.Errorf("failed to get fallback completion: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// bulletRepair re-requests the answer as a bulleted list constrained to the
// same context.
func (e *Engine) bulletRepair(ctx context.Context, question, contextText, truncated string) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: ragSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(
			"Question:\n%s\n\nProject context:\n%s\n\nYour previous answer ended without the list it announced:\n%s\n\nRewrite the full answer as a bulleted list using only the same context.",
			question, contextText, truncated)},
	}
	answer, err := e.completer.Complete(ctx, messages, ChatParams{Temperature: 0.2})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// assembleContext concatenates chunks with a Source label on the first
// occurrence of each path, separated by horizontal rules.
func assembleContext(chunks []ScoredChunk) string {
	if len(chunks) == 0 {
		return "No project context found."
	}
	seen := make(map[string]struct{}, len(chunks))
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if _, dup := seen[c.Path]; dup {
			blocks = append(blocks, c.Text)
			continue
		}
		seen[c.Path] = struct{}{}
		blocks = append(blocks, fmt.Sprintf("Source: %s\n%s", c.Path, c.Text))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// needsBullets reports whether the answer ends announcing a list with no
// bullet content following.
func needsBullets(answer string) bool {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return false
	}
	if strings.Contains(trimmed, "\n-") || strings.Contains(trimmed, "\n*") || strings.Contains(trimmed, "\n1.") {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, suffix := range listIntroSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func isNonAnswer(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range nonAnswerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func uniqueSources(chunks []ScoredChunk, limit int) []string {
	seen := make(map[string]struct{}, len(chunks))
	var out []string
	for _, c := range chunks {
		if _, dup := seen[c.Path]; dup {
			continue
		}
		seen[c.Path] = struct{}{}
		out = append(out, c.Path)
		if len(out) == limit {
			break
		}
	}
	return out
}
