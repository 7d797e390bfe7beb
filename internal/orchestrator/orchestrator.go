// Package orchestrator wires the conversation pipeline together: it
// owns the configuration, the history store, the response router, and
// the voice controller, and publishes everything that happens to the
// event bus.
package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/inertz/Jarvis/internal/assistant"
	"github.com/inertz/Jarvis/internal/bus"
	"github.com/inertz/Jarvis/internal/config"
	"github.com/inertz/Jarvis/internal/llm"
	"github.com/inertz/Jarvis/internal/voice"
)

// Greeting is spoken and displayed on startup. It is not recorded in
// the history, so remote providers never see it as conversation
// context.
const Greeting = "Good day, sir. Jarvis at your service. How may I assist you today?"

// Orchestrator coordinates one assistant instance. All mutations of
// shared state (history, interaction state, configuration) funnel
// through it.
type Orchestrator struct {
	mu  sync.Mutex
	cfg *config.Config

	history    *assistant.History
	router     *assistant.Router
	controller *voice.Controller
	speakOpts  voice.SpeakOptions
	speaker    voice.Speaker
	events     *bus.Bus
	log        zerolog.Logger

	rng   *rand.Rand
	rngMu sync.Mutex
	sleep func(time.Duration)

	// turnCancel aborts the in-flight provider call when the
	// configuration switches mid-turn.
	turnCancel context.CancelFunc
	// greetingCancel stops startup greeting playback the moment a real
	// turn begins, so two voices never overlap.
	greetingCancel context.CancelFunc
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRand sets the random source for the thinking delay.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// WithSleep overrides the delay primitive.
func WithSleep(fn func(time.Duration)) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// New builds an orchestrator from configuration. The capture backend
// and speaker are injected; pass a nil capture when speech input comes
// through the gateway only.
func New(cfg *config.Config, capture voice.Capture, speaker voice.Speaker, events *bus.Bus, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		speaker: speaker,
		events:  events,
		log:     log,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.history = assistant.NewHistory(cfg.Assistant.HistoryWindow)

	var localOpts []assistant.ResponderOption
	if dir, err := config.ConfigDir(); err == nil {
		pools, err := assistant.LoadReplyPools(filepath.Join(dir, "replies.yaml"))
		switch {
		case err == nil:
			localOpts = append(localOpts, assistant.WithReplyPools(pools))
			log.Info().Int("intents", len(pools)).Msg("custom reply templates loaded")
		case !os.IsNotExist(err):
			log.Warn().Err(err).Msg("ignoring bad reply templates")
		}
	}
	local := assistant.NewResponder(localOpts...)
	o.router = assistant.NewRouter(o.history, local, log.With().Str("component", "router").Logger())
	o.rebuildProviders(cfg)
	o.router.SetActive(cfg.Assistant.Provider)

	o.speakOpts = speakOptionsFrom(cfg.Speech)

	o.controller = voice.NewController(
		capture,
		speaker,
		o.runTurn,
		log.With().Str("component", "voice").Logger(),
		voice.WithSettleDelay(cfg.Assistant.Settle),
		voice.WithStateListener(o.publishState),
		voice.WithSpeakOptions(o.speakOpts),
	)
	o.controller.SetAudioEnabled(cfg.Assistant.AudioOutput)

	return o
}

// Start publishes the greeting and speaks it when audio output is on.
func (o *Orchestrator) Start() {
	ev := bus.NewEvent(bus.EventTurnAdded)
	ev.Role = string(llm.RoleAssistant)
	ev.Text = Greeting
	ev.Source = "greeting"
	o.events.Publish(ev)

	if o.controller.AudioEnabled() && o.speaker != nil && o.speaker.Available() {
		ctx, cancel := context.WithCancel(context.Background())
		o.mu.Lock()
		opts := o.speakOpts
		o.greetingCancel = cancel
		o.mu.Unlock()
		go func() {
			defer cancel()
			if opts.Voice == "" {
				if v, ok := voice.ChooseVoice(o.speaker.Voices()); ok {
					opts.Voice = v.Name
				}
			}
			err := o.speaker.Speak(ctx, Greeting, opts)
			if err != nil && !errors.Is(err, context.Canceled) {
				o.log.Warn().Err(err).Msg("greeting playback failed")
			}
		}()
	}
}

// SubmitText starts a typed turn. Returns false when a turn is
// already in flight.
func (o *Orchestrator) SubmitText(text string) bool {
	if text == "" {
		return false
	}
	return o.controller.SubmitText(text)
}

// StartListening requests speech capture.
func (o *Orchestrator) StartListening() bool {
	return o.controller.StartListening()
}

// CaptureResult delivers recognized speech from the capture backend.
func (o *Orchestrator) CaptureResult(text string) {
	o.controller.CaptureResult(text)
}

// CaptureError reports a capture failure.
func (o *Orchestrator) CaptureError(err error) {
	o.controller.CaptureError(err)
}

// CaptureCancelled reports that capture was aborted.
func (o *Orchestrator) CaptureCancelled() {
	o.controller.CaptureCancelled()
}

// State returns the current interaction state.
func (o *Orchestrator) State() voice.State {
	return o.controller.State()
}

// AudioEnabled reports whether replies are spoken.
func (o *Orchestrator) AudioEnabled() bool {
	return o.controller.AudioEnabled()
}

// ToggleAudio flips audio output, persists it, and returns the new
// value.
func (o *Orchestrator) ToggleAudio() bool {
	enabled := o.controller.ToggleAudio()

	o.mu.Lock()
	o.cfg.Assistant.AudioOutput = enabled
	o.mu.Unlock()

	ev := bus.NewEvent(bus.EventAudioToggled)
	ev.AudioEnabled = enabled
	o.events.Publish(ev)
	return enabled
}

// ActiveProvider returns the selected provider name.
func (o *Orchestrator) ActiveProvider() string {
	return o.router.Active()
}

// SetActiveProvider switches the reply backend. Switching clears the
// conversation history and aborts any in-flight provider call.
func (o *Orchestrator) SetActiveProvider(name string) {
	o.mu.Lock()
	o.cfg.Assistant.Provider = name
	cancel := o.turnCancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	before := o.router.Active()
	o.router.SetActive(name)
	if before != name {
		ev := bus.NewEvent(bus.EventProviderChanged)
		ev.Provider = name
		o.events.Publish(ev)
		o.publishHistoryCleared()
	}
}

// ClearHistory resets the conversation.
func (o *Orchestrator) ClearHistory() {
	o.history.Clear()
	o.publishHistoryCleared()
}

// History returns a snapshot of the recorded turns.
func (o *Orchestrator) History() []assistant.Turn {
	return o.history.Snapshot()
}

// Settings returns a copy of the active configuration.
func (o *Orchestrator) Settings() config.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	cfg := *o.cfg
	cfg.Providers = make(map[string]config.Provider, len(o.cfg.Providers))
	for k, v := range o.cfg.Providers {
		cfg.Providers[k] = v
	}
	return cfg
}

// ApplySettings merges a partial settings update, rebuilds the
// affected provider adapters, persists the result, and announces the
// change.
func (o *Orchestrator) ApplySettings(patch config.Patch) {
	o.mu.Lock()
	patch.Apply(o.cfg)
	cfg := o.cfg
	o.mu.Unlock()

	if len(patch.Providers) > 0 {
		o.rebuildProviders(cfg)
	}
	if patch.AudioOutput != nil {
		o.controller.SetAudioEnabled(*patch.AudioOutput)
	}
	if patch.Speech != nil {
		opts := speakOptionsFrom(cfg.Speech)
		o.mu.Lock()
		o.speakOpts = opts
		o.mu.Unlock()
		o.controller.SetSpeakOptions(opts)
	}
	if patch.Provider != nil {
		o.SetActiveProvider(*patch.Provider)
	}

	if err := config.Save(cfg); err != nil {
		o.log.Warn().Err(err).Msg("failed to persist settings")
	}

	ev := bus.NewEvent(bus.EventSettingsUpdated)
	ev.Provider = o.router.Active()
	ev.AudioEnabled = o.controller.AudioEnabled()
	o.events.Publish(ev)
}

// ReloadConfig applies a configuration freshly read from disk:
// provider credentials and enablement, audio output, speech
// parameters, and the active provider selection (which clears the
// history when it changes).
func (o *Orchestrator) ReloadConfig(fresh *config.Config) {
	opts := speakOptionsFrom(fresh.Speech)
	o.mu.Lock()
	*o.cfg = *fresh
	o.speakOpts = opts
	o.mu.Unlock()

	o.rebuildProviders(fresh)
	o.controller.SetAudioEnabled(fresh.Assistant.AudioOutput)
	o.controller.SetSpeakOptions(opts)
	o.SetActiveProvider(fresh.Assistant.Provider)
}

// speakOptionsFrom merges configured speech parameters over the
// defaults, ignoring unset numeric fields.
func speakOptionsFrom(sp config.SpeechConfig) voice.SpeakOptions {
	opts := voice.DefaultSpeakOptions()
	opts.Voice = sp.Voice
	if sp.Rate > 0 {
		opts.Rate = sp.Rate
	}
	if sp.Pitch > 0 {
		opts.Pitch = sp.Pitch
	}
	if sp.Volume > 0 {
		opts.Volume = sp.Volume
	}
	return opts
}

// Close releases the orchestrator's resources.
func (o *Orchestrator) Close() {
	if o.speaker != nil {
		o.speaker.Cancel()
	}
}

// runTurn is the send pipeline invoked by the voice controller once a
// submission is accepted: record the user turn, produce the reply
// behind the thinking delay, and resolve the turn.
func (o *Orchestrator) runTurn(text string) {
	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.turnCancel = cancel
	greeting := o.greetingCancel
	o.greetingCancel = nil
	o.mu.Unlock()
	if greeting != nil {
		greeting()
	}
	defer func() {
		cancel()
		o.mu.Lock()
		o.turnCancel = nil
		o.mu.Unlock()
	}()

	user := o.router.RecordUser(text)
	o.publishTurn(user, "user")

	o.sleep(o.thinkingDelay())

	// A provider switch during the delay or the provider call makes
	// this turn stale: resolve it without surfacing a reply.
	if ctx.Err() != nil {
		o.controller.TurnAborted()
		return
	}
	reply, source, err := o.router.Respond(ctx, text)
	if err != nil {
		o.controller.TurnAborted()
		return
	}
	o.publishTurn(reply, source)
	o.controller.ReplyReady(reply.Text)
}

// thinkingDelay returns the randomized pause before a reply surfaces.
// Purely a pacing device; replies are correct without it.
func (o *Orchestrator) thinkingDelay() time.Duration {
	o.mu.Lock()
	min, max := o.cfg.Assistant.ThinkingMin, o.cfg.Assistant.ThinkingMax
	o.mu.Unlock()
	if max <= min {
		return min
	}
	o.rngMu.Lock()
	d := min + time.Duration(o.rng.Int63n(int64(max-min)))
	o.rngMu.Unlock()
	return d
}

func (o *Orchestrator) rebuildProviders(cfg *config.Config) {
	for _, name := range llm.RemoteProviders {
		pc, ok := cfg.Providers[name]
		if !ok {
			pc = config.Provider{}
		}
		provider, err := llm.NewProvider(name, pc.LLM(name))
		if err != nil {
			o.log.Warn().Err(err).Str("provider", name).Msg("provider unavailable")
			continue
		}
		o.router.Register(name, provider)
	}
}

func (o *Orchestrator) publishTurn(turn assistant.Turn, source string) {
	ev := bus.NewEvent(bus.EventTurnAdded)
	ev.TurnID = turn.ID
	ev.Role = string(turn.Role)
	ev.Text = turn.Text
	ev.Source = source
	o.events.Publish(ev)
}

func (o *Orchestrator) publishState(prev, next voice.State) {
	ev := bus.NewEvent(bus.EventStateChanged)
	ev.PrevState = prev.String()
	ev.State = next.String()
	o.events.Publish(ev)
}

func (o *Orchestrator) publishHistoryCleared() {
	o.events.Publish(bus.NewEvent(bus.EventHistoryCleared))
}
