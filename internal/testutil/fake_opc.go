// Package testutil holds fakes and fixture builders shared by package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/plc-filebridge/backend/internal/tagwriter"
)

// Write is one tag write observed by a FakeServer.
type Write struct {
	Session int
	NodeID  string
	Value   string
}

// FakeServer implements tagwriter.Dialer in memory. Every Dial opens a new
// session; writes from all sessions are recorded in arrival order.
type FakeServer struct {
	mu       sync.Mutex
	writes   []Write
	sessions int
	open     int
	peak     int
	closed   int

	// DialErr makes every Dial fail.
	DialErr error
	// DialDelay holds each session open for at least this long, to observe concurrency.
	DialDelay time.Duration
	// FailNodes rejects writes to these node ids.
	FailNodes map[string]bool
	// DropOnNode disconnects the session when this node id is written.
	DropOnNode string
}

func NewFakeServer() *FakeServer {
	return &FakeServer{FailNodes: map[string]bool{}}
}

func (s *FakeServer) Dial(ctx context.Context) (tagwriter.Client, error) {
	if s.DialErr != nil {
		return nil, fmt.Errorf("%w: %v", tagwriter.ErrConnect, s.DialErr)
	}
	s.mu.Lock()
	s.sessions++
	s.open++
	if s.open > s.peak {
		s.peak = s.open
	}
	id := s.sessions
	s.mu.Unlock()

	if s.DialDelay > 0 {
		select {
		case <-time.After(s.DialDelay):
		case <-ctx.Done():
		}
	}
	return &fakeClient{server: s, id: id, connected: true}, nil
}

// Writes returns a copy of all recorded writes.
func (s *FakeServer) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// Values returns the latest value written to each node.
func (s *FakeServer) Values() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for _, w := range s.writes {
		out[w.NodeID] = w.Value
	}
	return out
}

// Sessions reports how many sessions were opened.
func (s *FakeServer) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

// Peak reports the largest number of simultaneously open sessions.
func (s *FakeServer) Peak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// OpenSessions reports sessions dialed but not yet closed.
func (s *FakeServer) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Reset clears recorded writes and counters.
func (s *FakeServer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = nil
	s.sessions, s.peak, s.closed = 0, 0, 0
}

var errRejected = errors.New("BadNodeIdUnknown")

type fakeClient struct {
	server    *FakeServer
	id        int
	mu        sync.Mutex
	connected bool
	closed    bool
}

func (c *fakeClient) Write(_ context.Context, nodeID, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return errors.New("session closed")
	}

	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DropOnNode != "" && nodeID == s.DropOnNode {
		c.connected = false
		return errors.New("connection reset by peer")
	}
	if s.FailNodes[nodeID] {
		return errRejected
	}
	s.writes = append(s.writes, Write{Session: c.id, NodeID: nodeID, Value: value})
	return nil
}

func (c *fakeClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.connected = false

	c.server.mu.Lock()
	c.server.open--
	c.server.closed++
	c.server.mu.Unlock()
	return nil
}
