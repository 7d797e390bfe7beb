// Package assistant provides the conversational core of Jarvis: the
// bounded conversation history, the rule-based local responder, and the
// response router that dispatches turns to the configured provider.
package assistant

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inertz/Jarvis/internal/llm"
)

// DefaultHistoryWindow is the number of turns retained in the history
// store. Older turns are silently dropped, never summarized.
const DefaultHistoryWindow = 20

// Turn is one message in the conversation. Immutable once created.
type Turn struct {
	ID        string    `json:"id"`
	Role      llm.Role  `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewTurn creates a turn with a fresh ID and the current timestamp.
func NewTurn(role llm.Role, text string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// History is the bounded ordered log of conversation turns. The
// orchestrator owns the single instance; providers only ever see
// snapshots. All mutation goes through Append and Clear so the window
// invariant cannot be violated from outside.
type History struct {
	mu     sync.RWMutex
	turns  []Turn
	window int
}

// NewHistory creates a history store retaining at most window turns.
// A non-positive window falls back to DefaultHistoryWindow.
func NewHistory(window int) *History {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &History{
		turns:  make([]Turn, 0, window),
		window: window,
	}
}

// Append adds a turn to the end, dropping the oldest turns once the
// window is exceeded.
func (h *History) Append(turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, turn)
	if len(h.turns) > h.window {
		h.turns = h.turns[len(h.turns)-h.window:]
	}
}

// Snapshot returns an ordered copy of the current turns. Later appends
// never mutate a snapshot already handed out.
func (h *History) Snapshot() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Messages returns the current turns converted for a provider call.
func (h *History) Messages() []llm.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]llm.Message, 0, len(h.turns))
	for _, t := range h.turns {
		out = append(out, llm.Message{Role: t.Role, Content: t.Text})
	}
	return out
}

// Len returns the number of stored turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Clear empties the store. Idempotent.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = make([]Turn, 0, h.window)
}
