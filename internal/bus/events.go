// Package bus distributes assistant events to interested components:
// the gateway pushes them to connected clients, the logger records
// them, and tests observe them.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a class of assistant event.
type EventType string

const (
	// EventTurnAdded fires when a user or assistant turn is recorded.
	EventTurnAdded EventType = "turn.added"

	// EventStateChanged fires on every interaction state transition.
	EventStateChanged EventType = "state.changed"

	// EventAudioToggled fires when audio output is enabled or disabled.
	EventAudioToggled EventType = "audio.toggled"

	// EventProviderChanged fires when the active provider switches.
	EventProviderChanged EventType = "provider.changed"

	// EventSettingsUpdated fires after a settings change is applied.
	EventSettingsUpdated EventType = "settings.updated"

	// EventHistoryCleared fires when the conversation is reset.
	EventHistoryCleared EventType = "history.cleared"

	// EventError fires for recoverable failures worth surfacing.
	EventError EventType = "error"
)

// Event is one assistant event. The payload fields are sparse; each
// event type fills only the ones it needs.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	// Turn payload.
	TurnID string `json:"turn_id,omitempty"`
	Role   string `json:"role,omitempty"`
	Text   string `json:"text,omitempty"`
	Source string `json:"source,omitempty"`

	// State payload.
	PrevState string `json:"prev_state,omitempty"`
	State     string `json:"state,omitempty"`

	// Configuration payload.
	Provider     string `json:"provider,omitempty"`
	AudioEnabled bool   `json:"audio_enabled,omitempty"`

	// Error payload.
	Error string `json:"error,omitempty"`
}

// NewEvent creates an event of the given type with identity and
// timestamp filled in.
func NewEvent(t EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      t,
	}
}
