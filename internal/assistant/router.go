package assistant

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/inertz/Jarvis/internal/llm"
)

// LocalProviderName selects the rule-based responder instead of a
// remote adapter.
const LocalProviderName = "local"

// Router dispatches each user turn to the active provider and falls
// back to the local responder when the remote path is unavailable or
// fails. Fallback is decided per call; a failing provider stays active
// and is retried on the next turn.
type Router struct {
	mu        sync.RWMutex
	history   *History
	local     *Responder
	providers map[string]llm.Provider
	active    string
	log       zerolog.Logger
}

// NewRouter creates a router over the given history and local
// responder. The active provider starts as local.
func NewRouter(history *History, local *Responder, log zerolog.Logger) *Router {
	return &Router{
		history:   history,
		local:     local,
		providers: make(map[string]llm.Provider),
		active:    LocalProviderName,
		log:       log,
	}
}

// Register installs or replaces the adapter for a provider name.
func (r *Router) Register(name string, p llm.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Active returns the currently selected provider name.
func (r *Router) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// SetActive switches the selected provider. Switching to a different
// provider clears the conversation history so the new provider never
// sees context produced by another backend.
func (r *Router) SetActive(name string) {
	r.mu.Lock()
	changed := name != r.active
	r.active = name
	r.mu.Unlock()
	if changed {
		r.history.Clear()
		r.log.Info().Str("provider", name).Msg("active provider changed, history cleared")
	}
}

// RecordUser appends the user's message to the history and returns
// the recorded turn.
func (r *Router) RecordUser(text string) Turn {
	user := NewTurn(llm.RoleUser, text)
	r.history.Append(user)
	return user
}

// Respond produces a reply for an already-recorded user message
// through the active provider (or the local responder), records the
// reply turn, and returns it along with the name of the backend that
// answered. When ctx is cancelled the turn is stale (the caller
// switched providers mid-flight); no reply is recorded and ctx.Err()
// is returned.
func (r *Router) Respond(ctx context.Context, text string) (Turn, string, error) {
	answer, source := r.dispatch(ctx, text)
	if err := ctx.Err(); err != nil {
		return Turn{}, "", err
	}
	reply := NewTurn(llm.RoleAssistant, answer)
	r.history.Append(reply)
	return reply, source, nil
}

// Route records the user turn and produces the reply in one step.
func (r *Router) Route(ctx context.Context, text string) (user Turn, reply Turn, source string) {
	user = r.RecordUser(text)
	reply, source, _ = r.Respond(ctx, text)
	return user, reply, source
}

func (r *Router) dispatch(ctx context.Context, text string) (string, string) {
	r.mu.RLock()
	active := r.active
	provider := r.providers[active]
	r.mu.RUnlock()

	if active == LocalProviderName {
		return r.respondLocally(text), LocalProviderName
	}
	if provider == nil || !provider.Available() {
		r.log.Debug().Str("provider", active).Msg("provider not configured, answering locally")
		return r.respondLocally(text), LocalProviderName
	}

	answer, err := provider.Reply(ctx, r.history.Messages(), text)
	if err != nil {
		r.log.Warn().Err(err).Str("provider", active).Msg("provider failed, answering locally")
		return r.respondLocally(text), LocalProviderName
	}
	return answer, active
}

func (r *Router) respondLocally(text string) string {
	return r.local.Respond(text, r.history.Snapshot())
}
