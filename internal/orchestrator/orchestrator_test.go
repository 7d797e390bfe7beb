package orchestrator

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inertz/Jarvis/internal/bus"
	"github.com/inertz/Jarvis/internal/config"
	"github.com/inertz/Jarvis/internal/voice"
)

type fakeCapture struct{ available bool }

func (f *fakeCapture) Available() bool { return f.available }
func (f *fakeCapture) Start() error    { return nil }
func (f *fakeCapture) Stop()           {}

type fakeSpeaker struct{}

func (f *fakeSpeaker) Available() bool       { return false }
func (f *fakeSpeaker) Voices() []voice.Voice { return nil }
func (f *fakeSpeaker) Speak(context.Context, string, voice.SpeakOptions) error {
	return nil
}
func (f *fakeSpeaker) Cancel() {}

// blockingSpeaker holds its first playback open until the context is
// cancelled, recording every text it was asked to speak.
type blockingSpeaker struct {
	mu        sync.Mutex
	spoken    []string
	cancelled chan struct{}
	once      sync.Once
}

func (b *blockingSpeaker) Available() bool       { return true }
func (b *blockingSpeaker) Voices() []voice.Voice { return nil }
func (b *blockingSpeaker) Cancel()               {}
func (b *blockingSpeaker) Speak(ctx context.Context, text string, _ voice.SpeakOptions) error {
	b.mu.Lock()
	first := len(b.spoken) == 0
	b.spoken = append(b.spoken, text)
	b.mu.Unlock()
	if first {
		<-ctx.Done()
		b.once.Do(func() { close(b.cancelled) })
	}
	return nil
}

func (b *blockingSpeaker) spokenTexts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.spoken...)
}

type testHarness struct {
	orch   *Orchestrator
	events *bus.Bus
	turns  chan bus.Event
}

func newHarness(t *testing.T, cfg *config.Config) *testHarness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	events := bus.New()
	t.Cleanup(func() { events.Close() })

	turns := make(chan bus.Event, 32)
	events.Subscribe(bus.EventTurnAdded, func(ev bus.Event) {
		turns <- ev
	})

	orch := New(cfg, &fakeCapture{available: true}, &fakeSpeaker{}, events, zerolog.Nop(),
		WithRand(rand.New(rand.NewSource(1))),
		WithSleep(func(time.Duration) {}),
	)
	t.Cleanup(orch.Close)

	return &testHarness{orch: orch, events: events, turns: turns}
}

func (h *testHarness) nextTurn(t *testing.T) bus.Event {
	t.Helper()
	select {
	case ev := <-h.turns:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for turn event")
		return bus.Event{}
	}
}

func TestSubmitTextLocalPipeline(t *testing.T) {
	h := newHarness(t, nil)

	require.True(t, h.orch.SubmitText("hello"))

	user := h.nextTurn(t)
	assert.Equal(t, "user", user.Role)
	assert.Equal(t, "hello", user.Text)

	reply := h.nextTurn(t)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "local", reply.Source)
	assert.NotEmpty(t, reply.Text)

	require.Eventually(t, func() bool {
		return h.orch.State() == voice.StateIdle
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, len(h.orch.History()))
}

func TestSubmitRejectedWhileTurnInFlight(t *testing.T) {
	h := newHarness(t, nil)
	// Hold the turn in Processing by blocking its thinking delay.
	release := make(chan struct{})
	h.orch.sleep = func(time.Duration) { <-release }

	require.True(t, h.orch.SubmitText("first"))
	h.nextTurn(t) // user turn recorded

	assert.False(t, h.orch.SubmitText("second"))
	assert.False(t, h.orch.StartListening())

	close(release)
	reply := h.nextTurn(t)
	assert.Equal(t, "assistant", reply.Role)
}

func TestGreetingNotRecordedInHistory(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.Start()

	ev := h.nextTurn(t)
	assert.Equal(t, Greeting, ev.Text)
	assert.Equal(t, "greeting", ev.Source)
	assert.Empty(t, h.orch.History(), "greeting must not be provider-visible context")
}

func TestGreetingPlaybackCancelledByFirstTurn(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	events := bus.New()
	t.Cleanup(func() { events.Close() })

	speaker := &blockingSpeaker{cancelled: make(chan struct{})}
	orch := New(config.DefaultConfig(), &fakeCapture{available: true}, speaker, events, zerolog.Nop(),
		WithSleep(func(time.Duration) {}),
	)
	t.Cleanup(orch.Close)

	orch.Start()
	require.Eventually(t, func() bool {
		texts := speaker.spokenTexts()
		return len(texts) > 0 && texts[0] == Greeting
	}, time.Second, 5*time.Millisecond, "greeting playback never started")

	require.True(t, orch.SubmitText("hello"))

	select {
	case <-speaker.cancelled:
	case <-time.After(time.Second):
		t.Fatal("greeting playback not cancelled when the turn started")
	}
}

func TestProviderSwitchClearsHistory(t *testing.T) {
	h := newHarness(t, nil)

	require.True(t, h.orch.SubmitText("hello"))
	h.nextTurn(t)
	h.nextTurn(t)
	require.Eventually(t, func() bool { return len(h.orch.History()) == 2 }, time.Second, 5*time.Millisecond)

	cleared := make(chan struct{}, 1)
	h.events.Subscribe(bus.EventHistoryCleared, func(bus.Event) {
		cleared <- struct{}{}
	})

	h.orch.SetActiveProvider("openai")
	assert.Empty(t, h.orch.History())
	assert.Equal(t, "openai", h.orch.ActiveProvider())

	select {
	case <-cleared:
	case <-time.After(time.Second):
		t.Fatal("history.cleared event never published")
	}
}

func TestProviderSwitchAbortsInFlightTurn(t *testing.T) {
	h := newHarness(t, nil)
	// Hold the turn in its thinking delay so the switch lands mid-flight.
	release := make(chan struct{})
	h.orch.sleep = func(time.Duration) { <-release }

	require.True(t, h.orch.SubmitText("hello"))
	h.nextTurn(t) // user turn recorded

	h.orch.SetActiveProvider("openai")
	require.Empty(t, h.orch.History())

	close(release)

	require.Eventually(t, func() bool {
		return h.orch.State() == voice.StateIdle
	}, time.Second, 5*time.Millisecond)

	select {
	case ev := <-h.turns:
		t.Fatalf("stale reply surfaced after provider switch: %q", ev.Text)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Empty(t, h.orch.History(), "cleared history must stay empty")
}

func TestRemoteProviderViaSettings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "As you wish, sir."}},
			},
		})
	}))
	defer server.Close()

	h := newHarness(t, nil)

	endpoint := server.URL
	key := "sk-test"
	enabled := true
	provider := "openai"
	h.orch.ApplySettings(config.Patch{
		Provider: &provider,
		Providers: map[string]config.ProviderPatch{
			"openai": {Endpoint: &endpoint, APIKey: &key, Enabled: &enabled},
		},
	})

	require.True(t, h.orch.SubmitText("do the thing"))
	h.nextTurn(t) // user
	reply := h.nextTurn(t)
	assert.Equal(t, "openai", reply.Source)
	assert.Equal(t, "As you wish, sir.", reply.Text)
}

func TestRemoteFailureFallsBackToLocal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	h := newHarness(t, nil)

	endpoint := server.URL
	key := "sk-test"
	enabled := true
	provider := "openai"
	h.orch.ApplySettings(config.Patch{
		Provider: &provider,
		Providers: map[string]config.ProviderPatch{
			"openai": {Endpoint: &endpoint, APIKey: &key, Enabled: &enabled},
		},
	})

	require.True(t, h.orch.SubmitText("hello"))
	h.nextTurn(t)
	reply := h.nextTurn(t)

	assert.Equal(t, "local", reply.Source)
	assert.NotEmpty(t, reply.Text)
	assert.Equal(t, "openai", h.orch.ActiveProvider(), "fallback must not switch the active provider")
}

func TestReloadConfigAppliesFreshSettings(t *testing.T) {
	h := newHarness(t, nil)

	require.True(t, h.orch.SubmitText("hello"))
	h.nextTurn(t)
	h.nextTurn(t)
	require.Eventually(t, func() bool { return len(h.orch.History()) == 2 }, time.Second, 5*time.Millisecond)

	fresh := config.DefaultConfig()
	fresh.Assistant.Provider = "openai"
	fresh.Assistant.AudioOutput = false
	p := fresh.Providers["openai"]
	p.APIKey = "sk-fresh"
	p.Enabled = true
	fresh.Providers["openai"] = p

	h.orch.ReloadConfig(fresh)

	assert.Equal(t, "openai", h.orch.ActiveProvider())
	assert.False(t, h.orch.AudioEnabled())
	assert.Empty(t, h.orch.History(), "provider switch via reload clears history")
	assert.Equal(t, "sk-fresh", h.orch.Settings().Providers["openai"].APIKey)
}

func TestToggleAudioPublishesEvent(t *testing.T) {
	h := newHarness(t, nil)

	toggled := make(chan bus.Event, 1)
	h.events.Subscribe(bus.EventAudioToggled, func(ev bus.Event) {
		toggled <- ev
	})

	enabled := h.orch.ToggleAudio()
	assert.False(t, enabled)

	select {
	case ev := <-toggled:
		assert.False(t, ev.AudioEnabled)
	case <-time.After(time.Second):
		t.Fatal("audio.toggled event never published")
	}
}

func TestThinkingDelayBounds(t *testing.T) {
	cfg := config.DefaultConfig()
	h := newHarness(t, cfg)

	for i := 0; i < 100; i++ {
		d := h.orch.thinkingDelay()
		assert.GreaterOrEqual(t, d, cfg.Assistant.ThinkingMin)
		assert.Less(t, d, cfg.Assistant.ThinkingMax)
	}
}

func TestCaptureResultSubmitsText(t *testing.T) {
	h := newHarness(t, nil)

	require.True(t, h.orch.StartListening())
	assert.Equal(t, voice.StateListening, h.orch.State())

	h.orch.CaptureResult("schedule a meeting")

	user := h.nextTurn(t)
	assert.Equal(t, "schedule a meeting", user.Text)
	reply := h.nextTurn(t)
	assert.Equal(t, "assistant", reply.Role)
}
