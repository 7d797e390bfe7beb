// Package voice owns the interaction state machine and mediates
// between speech capture, the response pipeline, and playback.
package voice

// State is the single interaction state. Exactly one value holds at a
// time; audio output enablement is tracked separately because it is
// configuration, not interaction progress.
type State int

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// EventKind identifies an external stimulus to the state machine.
type EventKind int

const (
	EventStartListening EventKind = iota
	EventCaptureResult
	EventCaptureError
	EventCaptureCancelled
	EventSubmitText
	EventReplyReady
	EventTurnAborted
	EventPlaybackEnded
	EventPlaybackError
	EventAudioDisabled
)

func (k EventKind) String() string {
	switch k {
	case EventStartListening:
		return "start_listening"
	case EventCaptureResult:
		return "capture_result"
	case EventCaptureError:
		return "capture_error"
	case EventCaptureCancelled:
		return "capture_cancelled"
	case EventSubmitText:
		return "submit_text"
	case EventReplyReady:
		return "reply_ready"
	case EventTurnAborted:
		return "turn_aborted"
	case EventPlaybackEnded:
		return "playback_ended"
	case EventPlaybackError:
		return "playback_error"
	case EventAudioDisabled:
		return "audio_disabled"
	}
	return "unknown"
}

// Event carries a stimulus and its optional text payload (captured
// speech, submitted message, or reply to speak).
type Event struct {
	Kind EventKind
	Text string
}

// Effect is a side effect the caller must perform after a reduction.
// The reducer itself never touches the outside world.
type Effect int

const (
	EffectNone Effect = iota
	// EffectBeginCapture starts the capture backend.
	EffectBeginCapture
	// EffectSubmit forwards Text into the send pipeline after the
	// settle delay.
	EffectSubmit
	// EffectSpeak starts playback of Text.
	EffectSpeak
	// EffectCancelPlayback aborts in-progress playback.
	EffectCancelPlayback
)

// Conditions are the environment facts a reduction may depend on.
type Conditions struct {
	AudioEnabled     bool
	SpeakerAvailable bool
	CaptureAvailable bool
}

// Reduction is the outcome of applying one event: the next state, the
// effect to run, and the text that effect operates on.
type Reduction struct {
	State  State
	Effect Effect
	Text   string
}

// Reduce applies one event to the current state. It is a pure
// function: rejected or unknown events leave the state unchanged with
// no effect. At most one turn is in flight at a time, so submissions
// and listen requests are ignored while a turn is processing.
func Reduce(state State, ev Event, cond Conditions) Reduction {
	switch state {
	case StateIdle:
		switch ev.Kind {
		case EventStartListening:
			if !cond.CaptureAvailable {
				return Reduction{State: StateIdle}
			}
			return Reduction{State: StateListening, Effect: EffectBeginCapture}
		case EventSubmitText:
			return Reduction{State: StateProcessing, Effect: EffectSubmit, Text: ev.Text}
		}

	case StateListening:
		switch ev.Kind {
		case EventCaptureResult:
			return Reduction{State: StateProcessing, Effect: EffectSubmit, Text: ev.Text}
		case EventCaptureError, EventCaptureCancelled:
			return Reduction{State: StateIdle}
		}

	case StateProcessing:
		switch ev.Kind {
		case EventReplyReady:
			if cond.AudioEnabled && cond.SpeakerAvailable {
				return Reduction{State: StateSpeaking, Effect: EffectSpeak, Text: ev.Text}
			}
			return Reduction{State: StateIdle}
		case EventTurnAborted:
			return Reduction{State: StateIdle}
		}

	case StateSpeaking:
		switch ev.Kind {
		case EventPlaybackEnded, EventPlaybackError:
			return Reduction{State: StateIdle}
		case EventAudioDisabled:
			return Reduction{State: StateIdle, Effect: EffectCancelPlayback}
		}
	}

	return Reduction{State: state}
}
