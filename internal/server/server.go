// Package server exposes the assistant over a websocket gateway. The
// connected client renders the conversation and doubles as the speech
// capture backend: the server tells it when to start recognizing, and
// the client streams results back as events.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/inertz/Jarvis/internal/bus"
	"github.com/inertz/Jarvis/internal/config"
	"github.com/inertz/Jarvis/internal/orchestrator"
)

// inbound is a client-to-server frame.
type inbound struct {
	Type  string        `json:"type"`
	Text  string        `json:"text,omitempty"`
	Error string        `json:"error,omitempty"`
	Patch *config.Patch `json:"patch,omitempty"`
}

// outbound frame types not derived from bus events.
const (
	frameSettings    = "settings"
	frameListenBegin = "listen.begin"
	frameListenStop  = "listen.stop"
	frameError       = "error"
)

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Server is the websocket gateway.
type Server struct {
	addr     string
	orch     *orchestrator.Orchestrator
	events   *bus.Bus
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*client

	httpServer *http.Server
	subID      bus.SubscriptionID
}

// New creates a gateway bound to the given address.
func New(addr string, orch *orchestrator.Orchestrator, events *bus.Bus, log zerolog.Logger) *Server {
	return &Server{
		addr:   addr,
		orch:   orch,
		events: events,
		log:    log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*client),
	}
}

// Start begins serving and subscribes to the event bus. It returns
// once the listener is running; ctx cancellation shuts it down.
func (s *Server) Start(ctx context.Context) error {
	s.subID = s.events.Subscribe("", func(ev bus.Event) {
		s.Broadcast(ev)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.wsHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		s.log.Info().Str("addr", s.addr).Msg("gateway listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("gateway server error")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
		s.events.Unsubscribe(s.subID)
	}()

	return nil
}

// Broadcast sends a frame to every connected client.
func (s *Server) Broadcast(v any) {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.conns))
	for _, c := range s.conns {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(v); err != nil {
			s.log.Debug().Err(err).Str("client", c.id).Msg("broadcast write failed")
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.log.Info().Str("client", c.id).Msg("client connected")

	defer func() {
		s.mu.Lock()
		delete(s.conns, c.id)
		s.mu.Unlock()
		conn.Close()
		s.log.Info().Str("client", c.id).Msg("client disconnected")
	}()

	s.sendSnapshot(c)

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Str("client", c.id).Msg("websocket read error")
			}
			return
		}
		s.handle(c, msg)
	}
}

// sendSnapshot brings a fresh client up to date: current settings and
// state, plus the recent turn events retained by the bus.
func (s *Server) sendSnapshot(c *client) {
	c.send(s.settingsFrame())

	stateEv := bus.NewEvent(bus.EventStateChanged)
	stateEv.State = s.orch.State().String()
	c.send(stateEv)

	for _, ev := range s.events.History() {
		if ev.Type == bus.EventTurnAdded {
			c.send(ev)
		}
	}
}

func (s *Server) handle(c *client, msg inbound) {
	switch msg.Type {
	case "message":
		if !s.orch.SubmitText(msg.Text) {
			s.sendError(c, "a turn is already in progress")
		}
	case "listen.start":
		if !s.orch.StartListening() {
			s.sendError(c, "listening unavailable right now")
		}
	case "listen.result":
		s.orch.CaptureResult(msg.Text)
	case "listen.error":
		s.orch.CaptureError(errors.New(msg.Error))
	case "listen.cancelled":
		s.orch.CaptureCancelled()
	case "audio.toggle":
		s.orch.ToggleAudio()
	case "history.clear":
		s.orch.ClearHistory()
	case "settings.get":
		c.send(s.settingsFrame())
	case "settings.update":
		if msg.Patch != nil {
			s.orch.ApplySettings(*msg.Patch)
		}
		c.send(s.settingsFrame())
	default:
		s.sendError(c, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (s *Server) sendError(c *client, text string) {
	ev := bus.NewEvent(bus.EventError)
	ev.Error = text
	c.send(ev)
}
