// Package hub fans out store change notifications to connected clients.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// ErrSlowSubscriber is returned when a subscriber's buffer is full.
var ErrSlowSubscriber = errors.New("subscriber too slow")

// Message is pushed to every subscriber.
type Message struct {
	Kind string `json:"kind"`
	Data any    `json:"data,omitempty"`
}

// Subscriber receives broadcast messages.
type Subscriber interface {
	Send(ctx context.Context, msg Message) error
}

// Hub routes messages to registered subscribers.
type Hub struct {
	subs   map[string]Subscriber
	mu     sync.RWMutex
	nextID atomic.Uint64
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		subs: make(map[string]Subscriber),
	}
}

// Register adds a subscriber under id, replacing any previous one.
func (h *Hub) Register(id string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[id] = sub
	slog.Debug("hub subscriber registered", "subscriber", id)
}

// Unregister removes the subscriber with the given id.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast sends msg to every subscriber and returns how many accepted it.
// A failing subscriber is logged and skipped.
func (h *Hub) Broadcast(ctx context.Context, msg Message) int {
	h.mu.RLock()
	targets := make(map[string]Subscriber, len(h.subs))
	for id, sub := range h.subs {
		targets[id] = sub
	}
	h.mu.RUnlock()

	delivered := 0
	for id, sub := range targets {
		if err := sub.Send(ctx, msg); err != nil {
			slog.Warn("hub delivery failed", "subscriber", id, "kind", msg.Kind, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// ServeWS upgrades the request to a WebSocket and streams broadcast messages
// as JSON until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	id := fmt.Sprintf("ws-%d", h.nextID.Add(1))
	sub := &queue{ch: make(chan Message, sendBuffer)}
	h.Register(id, sub)
	defer h.Unregister(id)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sub.ch:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, msg)
			cancel()
			if err != nil {
				slog.Debug("websocket write failed", "subscriber", id, "error", err)
				return
			}
		}
	}
}

// queue buffers messages for one WebSocket connection.
type queue struct {
	ch chan Message
}

func (q *queue) Send(_ context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrSlowSubscriber
	}
}

// MockSubscriber records messages for tests.
type MockSubscriber struct {
	mu       sync.Mutex
	Messages []Message
	Err      error
}

func (m *MockSubscriber) Send(_ context.Context, msg Message) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msg)
	return nil
}

// Received returns a copy of the recorded messages.
func (m *MockSubscriber) Received() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Messages...)
}
