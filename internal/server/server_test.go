package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inertz/Jarvis/internal/bus"
	"github.com/inertz/Jarvis/internal/config"
	"github.com/inertz/Jarvis/internal/orchestrator"
	"github.com/inertz/Jarvis/internal/voice"
)

type noSpeaker struct{}

func (noSpeaker) Available() bool                                         { return false }
func (noSpeaker) Voices() []voice.Voice                                   { return nil }
func (noSpeaker) Speak(context.Context, string, voice.SpeakOptions) error { return nil }
func (noSpeaker) Cancel()                                                 {}

type testGateway struct {
	srv     *Server
	orch    *orchestrator.Orchestrator
	capture *ClientCapture
	ts      *httptest.Server
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.Providers["openai"] = config.Provider{APIKey: "sk-secret", Enabled: true}

	events := bus.New()
	t.Cleanup(func() { events.Close() })

	capture := NewClientCapture()
	orch := orchestrator.New(cfg, capture, noSpeaker{}, events, zerolog.Nop(),
		orchestrator.WithSleep(func(time.Duration) {}),
	)
	t.Cleanup(orch.Close)

	srv := New("127.0.0.1:0", orch, events, zerolog.Nop())
	capture.Attach(srv)
	events.Subscribe("", func(ev bus.Event) { srv.Broadcast(ev) })

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.wsHandler)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return &testGateway{srv: srv, orch: orch, capture: capture, ts: ts}
}

func (g *testGateway) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads frames until one of the wanted types arrives.
func readFrame(t *testing.T, conn *websocket.Conn, wantTypes ...string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var frame map[string]any
		require.NoError(t, conn.ReadJSON(&frame))
		got, _ := frame["type"].(string)
		for _, want := range wantTypes {
			if got == want {
				return frame
			}
		}
	}
	t.Fatalf("no frame of type %v received", wantTypes)
	return nil
}

func TestSnapshotOnConnect(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial(t)

	settings := readFrame(t, conn, frameSettings)
	assert.Equal(t, "local", settings["provider"])
	assert.Equal(t, true, settings["audio_enabled"])

	state := readFrame(t, conn, string(bus.EventStateChanged))
	assert.Equal(t, "idle", state["state"])
}

func TestSettingsFrameRedactsAPIKeys(t *testing.T) {
	g := newTestGateway(t)

	frame := g.srv.settingsFrame()
	data, err := json.Marshal(frame)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "sk-secret")
	assert.True(t, frame.Providers["openai"].HasKey)
	assert.False(t, frame.Providers["deepseek"].HasKey)
}

func TestMessageRoundTrip(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial(t)
	readFrame(t, conn, frameSettings)

	require.NoError(t, conn.WriteJSON(inbound{Type: "message", Text: "hello"}))

	user := readFrame(t, conn, string(bus.EventTurnAdded))
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, "hello", user["text"])

	reply := readFrame(t, conn, string(bus.EventTurnAdded))
	assert.Equal(t, "assistant", reply["role"])
	assert.NotEmpty(t, reply["text"])
	assert.Equal(t, "local", reply["source"])
}

func TestListenFlowThroughGateway(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial(t)
	readFrame(t, conn, frameSettings)

	// With a client connected the capture backend is available.
	assert.True(t, g.capture.Available())

	require.NoError(t, conn.WriteJSON(inbound{Type: "listen.start"}))
	readFrame(t, conn, frameListenBegin)

	require.NoError(t, conn.WriteJSON(inbound{Type: "listen.result", Text: "what time is it"}))

	user := readFrame(t, conn, string(bus.EventTurnAdded))
	assert.Equal(t, "what time is it", user["text"])
	reply := readFrame(t, conn, string(bus.EventTurnAdded))
	assert.Equal(t, "assistant", reply["role"])
}

func TestHistoryClearCommand(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial(t)
	readFrame(t, conn, frameSettings)

	require.NoError(t, conn.WriteJSON(inbound{Type: "message", Text: "hello"}))
	readFrame(t, conn, string(bus.EventTurnAdded))
	readFrame(t, conn, string(bus.EventTurnAdded))

	require.NoError(t, conn.WriteJSON(inbound{Type: "history.clear"}))
	readFrame(t, conn, string(bus.EventHistoryCleared))
	assert.Empty(t, g.orch.History())
}

func TestUnknownFrameType(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial(t)
	readFrame(t, conn, frameSettings)

	require.NoError(t, conn.WriteJSON(inbound{Type: "bogus"}))
	errFrame := readFrame(t, conn, string(bus.EventError))
	assert.Contains(t, errFrame["error"], "bogus")
}

func TestCaptureUnavailableWithoutClients(t *testing.T) {
	g := newTestGateway(t)
	assert.False(t, g.capture.Available())
	assert.Error(t, g.capture.Start())
}
