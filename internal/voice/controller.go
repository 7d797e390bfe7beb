package voice

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSettleDelay is the pause between a capture result arriving
// and the text being forwarded into the send pipeline, giving the UI
// time to render the final transcript.
const DefaultSettleDelay = 500 * time.Millisecond

// SubmitFunc is the send pipeline: it routes the text to a provider,
// delivers the reply to the UI, and reports the reply back through
// Controller.ReplyReady.
type SubmitFunc func(text string)

// Controller serializes all state machine mutations. Every external
// stimulus becomes an Event reduced under the lock; the resulting
// effects run outside it.
type Controller struct {
	mu           sync.Mutex
	state        State
	audioEnabled bool

	capture Capture
	speaker Speaker
	submit  SubmitFunc
	onState func(prev, next State)

	settle    time.Duration
	speakOpts SpeakOptions
	sleep     func(time.Duration)
	log       zerolog.Logger
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithSettleDelay overrides the capture settle delay.
func WithSettleDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.settle = d }
}

// WithStateListener registers a callback fired on every state change.
func WithStateListener(fn func(prev, next State)) ControllerOption {
	return func(c *Controller) { c.onState = fn }
}

// WithSleep overrides the delay primitive.
func WithSleep(fn func(time.Duration)) ControllerOption {
	return func(c *Controller) { c.sleep = fn }
}

// WithSpeakOptions sets the playback parameters. An explicit Voice
// skips the preference policy entirely.
func WithSpeakOptions(opts SpeakOptions) ControllerOption {
	return func(c *Controller) { c.speakOpts = opts }
}

// NewController creates a controller in the Idle state with audio
// output enabled.
func NewController(capture Capture, speaker Speaker, submit SubmitFunc, log zerolog.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		state:        StateIdle,
		audioEnabled: true,
		capture:      capture,
		speaker:      speaker,
		submit:       submit,
		settle:       DefaultSettleDelay,
		speakOpts:    DefaultSpeakOptions(),
		sleep:        time.Sleep,
		log:          log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current interaction state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AudioEnabled reports whether replies are spoken aloud.
func (c *Controller) AudioEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioEnabled
}

// ToggleAudio flips audio output and returns the new value. Disabling
// audio while a reply is being spoken cancels playback immediately.
func (c *Controller) ToggleAudio() bool {
	c.mu.Lock()
	c.audioEnabled = !c.audioEnabled
	enabled := c.audioEnabled
	c.mu.Unlock()

	if !enabled {
		c.apply(Event{Kind: EventAudioDisabled})
	}
	c.log.Info().Bool("enabled", enabled).Msg("audio output toggled")
	return enabled
}

// SetSpeakOptions replaces the playback parameters for subsequent
// replies. In-progress playback is unaffected.
func (c *Controller) SetSpeakOptions(opts SpeakOptions) {
	c.mu.Lock()
	c.speakOpts = opts
	c.mu.Unlock()
}

// SetAudioEnabled sets audio output to an explicit value.
func (c *Controller) SetAudioEnabled(enabled bool) {
	c.mu.Lock()
	changed := c.audioEnabled != enabled
	c.audioEnabled = enabled
	c.mu.Unlock()

	if changed && !enabled {
		c.apply(Event{Kind: EventAudioDisabled})
	}
}

// StartListening requests speech capture. The request is ignored
// unless the controller is idle and a capture backend is present.
func (c *Controller) StartListening() bool {
	red := c.apply(Event{Kind: EventStartListening})
	if red.Effect != EffectBeginCapture {
		return false
	}
	if err := c.capture.Start(); err != nil {
		c.log.Warn().Err(err).Msg("capture failed to start")
		c.CaptureError(err)
		return false
	}
	return true
}

// CaptureResult delivers recognized speech. After the settle delay the
// text enters the send pipeline; duplicate or out-of-state results are
// dropped.
func (c *Controller) CaptureResult(text string) {
	red := c.apply(Event{Kind: EventCaptureResult, Text: text})
	if red.Effect != EffectSubmit {
		return
	}
	go func() {
		c.sleep(c.settle)
		c.submit(text)
	}()
}

// CaptureError reports a capture backend failure.
func (c *Controller) CaptureError(err error) {
	if err != nil {
		c.log.Warn().Err(err).Msg("speech capture error")
	}
	c.apply(Event{Kind: EventCaptureError})
}

// CaptureCancelled reports that the user aborted capture.
func (c *Controller) CaptureCancelled() {
	c.apply(Event{Kind: EventCaptureCancelled})
}

// SubmitText starts a typed turn. It returns false when a turn is
// already in flight or capture is underway; the text is then ignored.
func (c *Controller) SubmitText(text string) bool {
	red := c.apply(Event{Kind: EventSubmitText, Text: text})
	if red.Effect != EffectSubmit {
		c.log.Debug().Str("state", red.State.String()).Msg("submission rejected, turn in flight")
		return false
	}
	go c.submit(text)
	return true
}

// ReplyReady delivers the assistant's reply text to the state machine.
// When audio output is on and a speaker is present the reply is spoken;
// either way the turn resolves.
func (c *Controller) ReplyReady(text string) {
	red := c.apply(Event{Kind: EventReplyReady, Text: text})
	if red.Effect != EffectSpeak {
		return
	}
	go c.speak(text)
}

// TurnAborted resolves the in-flight turn without a reply, returning
// the controller to idle. A provider switch that cancels the turn ends
// here instead of at ReplyReady.
func (c *Controller) TurnAborted() {
	c.apply(Event{Kind: EventTurnAborted})
}

func (c *Controller) speak(text string) {
	c.mu.Lock()
	opts := c.speakOpts
	c.mu.Unlock()
	if opts.Voice == "" {
		if v, ok := ChooseVoice(c.speaker.Voices()); ok {
			opts.Voice = v.Name
		}
	}
	if err := c.speaker.Speak(context.Background(), text, opts); err != nil {
		c.log.Warn().Err(err).Msg("speech playback failed")
		c.apply(Event{Kind: EventPlaybackError})
		return
	}
	c.apply(Event{Kind: EventPlaybackEnded})
}

// apply reduces one event under the lock and runs lock-free effects.
func (c *Controller) apply(ev Event) Reduction {
	c.mu.Lock()
	cond := Conditions{
		AudioEnabled:     c.audioEnabled,
		SpeakerAvailable: c.speaker != nil && c.speaker.Available(),
		CaptureAvailable: c.capture != nil && c.capture.Available(),
	}
	prev := c.state
	red := Reduce(c.state, ev, cond)
	c.state = red.State
	c.mu.Unlock()

	if prev != red.State {
		c.log.Debug().
			Str("from", prev.String()).
			Str("to", red.State.String()).
			Str("event", ev.Kind.String()).
			Msg("state transition")
		if c.onState != nil {
			c.onState(prev, red.State)
		}
	}

	if red.Effect == EffectCancelPlayback && c.speaker != nil {
		c.speaker.Cancel()
	}
	return red
}
