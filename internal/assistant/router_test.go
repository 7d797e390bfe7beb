package assistant

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inertz/Jarvis/internal/llm"
)

// stubProvider counts calls and returns a canned reply or error.
type stubProvider struct {
	name      string
	available bool
	reply     string
	err       error
	calls     int
	onReply   func()
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return s.available }
func (s *stubProvider) Reply(_ context.Context, _ []llm.Message, _ string) (string, error) {
	s.calls++
	if s.onReply != nil {
		s.onReply()
	}
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func testRouter(t *testing.T) (*Router, *History) {
	t.Helper()
	h := NewHistory(20)
	local := NewResponder(
		WithRand(rand.New(rand.NewSource(1))),
		WithClock(time.Now),
		WithConnectivityProbe(fixedProbe{online: true}),
	)
	return NewRouter(h, local, zerolog.Nop()), h
}

func TestRouteLocalProvider(t *testing.T) {
	r, h := testRouter(t)
	remote := &stubProvider{name: "openai", available: true, reply: "remote"}
	r.Register("openai", remote)

	user, reply, source := r.Route(context.Background(), "hello")

	assert.Equal(t, LocalProviderName, source)
	assert.Equal(t, 0, remote.calls, "local routing must never dial a remote provider")
	assert.Equal(t, "hello", user.Text)
	assert.NotEmpty(t, reply.Text)
	assert.Equal(t, 2, h.Len())
}

func TestRouteRemoteProvider(t *testing.T) {
	r, h := testRouter(t)
	remote := &stubProvider{name: "openai", available: true, reply: "Certainly, sir."}
	r.Register("openai", remote)
	r.SetActive("openai")

	_, reply, source := r.Route(context.Background(), "status report")

	assert.Equal(t, "openai", source)
	assert.Equal(t, "Certainly, sir.", reply.Text)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, 2, h.Len())
}

func TestRouteUnconfiguredProviderFallsBackWithoutDialing(t *testing.T) {
	r, _ := testRouter(t)
	remote := &stubProvider{name: "openai", available: false}
	r.Register("openai", remote)
	r.SetActive("openai")

	_, reply, source := r.Route(context.Background(), "hello")

	assert.Equal(t, LocalProviderName, source)
	assert.Equal(t, 0, remote.calls)
	assert.NotEmpty(t, reply.Text)
}

func TestRouteUnknownProviderFallsBack(t *testing.T) {
	r, _ := testRouter(t)
	r.SetActive("openai") // nothing registered under that name

	_, reply, source := r.Route(context.Background(), "hello")
	assert.Equal(t, LocalProviderName, source)
	assert.NotEmpty(t, reply.Text)
}

func TestRouteFallbackIsNotSticky(t *testing.T) {
	r, _ := testRouter(t)
	remote := &stubProvider{name: "openai", available: true, err: errors.New("boom")}
	r.Register("openai", remote)
	r.SetActive("openai")

	_, _, source := r.Route(context.Background(), "first")
	assert.Equal(t, LocalProviderName, source)
	require.Equal(t, 1, remote.calls)

	// Provider recovers; the very next turn goes remote again.
	remote.err = nil
	remote.reply = "Back online, sir."
	_, reply, source := r.Route(context.Background(), "second")
	assert.Equal(t, "openai", source)
	assert.Equal(t, "Back online, sir.", reply.Text)
	assert.Equal(t, 2, remote.calls)
}

func TestRouteFailedTurnStillRecordsBothSides(t *testing.T) {
	r, h := testRouter(t)
	remote := &stubProvider{name: "openai", available: true, err: errors.New("boom")}
	r.Register("openai", remote)
	r.SetActive("openai")

	r.Route(context.Background(), "hello")

	turns := h.Snapshot()
	require.Len(t, turns, 2)
	assert.Equal(t, llm.RoleUser, turns[0].Role)
	assert.Equal(t, llm.RoleAssistant, turns[1].Role)
}

func TestRespondCancelledContextRecordsNoReply(t *testing.T) {
	r, h := testRouter(t)
	r.RecordUser("hello")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := r.Respond(ctx, "hello")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, h.Len(), "stale reply must not be recorded")
}

func TestRespondCancelledDuringProviderCallRecordsNoReply(t *testing.T) {
	r, h := testRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	remote := &stubProvider{name: "openai", available: true, reply: "late", onReply: cancel}
	r.Register("openai", remote)
	r.SetActive("openai")

	r.RecordUser("hello")
	_, _, err := r.Respond(ctx, "hello")

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, 1, h.Len(), "reply produced after cancellation must be dropped")
}

func TestSetActiveClearsHistory(t *testing.T) {
	r, h := testRouter(t)
	r.Register("openai", &stubProvider{name: "openai", available: true, reply: "ok"})

	r.Route(context.Background(), "hello")
	require.Equal(t, 2, h.Len())

	r.SetActive("openai")
	assert.Equal(t, 0, h.Len())
}

func TestSetActiveSameProviderKeepsHistory(t *testing.T) {
	r, h := testRouter(t)
	r.Route(context.Background(), "hello")
	require.Equal(t, 2, h.Len())

	r.SetActive(LocalProviderName)
	assert.Equal(t, 2, h.Len())
}
