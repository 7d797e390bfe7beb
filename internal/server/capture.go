package server

import (
	"fmt"
	"sync"
)

// broadcaster is the slice of Server that ClientCapture needs.
type broadcaster interface {
	Broadcast(v any)
	ClientCount() int
}

// captureFrame instructs clients to start or stop speech recognition.
type captureFrame struct {
	Type string `json:"type"`
}

// ClientCapture implements voice.Capture over the gateway: the
// connected client runs the platform speech recognizer and streams
// results back as listen events. The capture is created before the
// server exists and attached once it does.
type ClientCapture struct {
	mu  sync.RWMutex
	dst broadcaster
}

// NewClientCapture creates a detached capture backend.
func NewClientCapture() *ClientCapture {
	return &ClientCapture{}
}

// Attach binds the capture to its gateway.
func (c *ClientCapture) Attach(dst broadcaster) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dst = dst
}

// Available reports whether any client is connected to recognize.
func (c *ClientCapture) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dst != nil && c.dst.ClientCount() > 0
}

// Start asks the connected clients to begin recognition.
func (c *ClientCapture) Start() error {
	c.mu.RLock()
	dst := c.dst
	c.mu.RUnlock()
	if dst == nil || dst.ClientCount() == 0 {
		return fmt.Errorf("no client connected for capture")
	}
	dst.Broadcast(captureFrame{Type: frameListenBegin})
	return nil
}

// Stop asks the connected clients to abandon recognition.
func (c *ClientCapture) Stop() {
	c.mu.RLock()
	dst := c.dst
	c.mu.RUnlock()
	if dst != nil {
		dst.Broadcast(captureFrame{Type: frameListenStop})
	}
}
