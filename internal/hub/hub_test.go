package hub_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-portal/internal/hub"
)

func TestHub_Broadcast(t *testing.T) {
	h := hub.New()
	a := &hub.MockSubscriber{}
	b := &hub.MockSubscriber{}
	broken := &hub.MockSubscriber{Err: errors.New("gone")}
	h.Register("a", a)
	h.Register("b", b)
	h.Register("broken", broken)

	n := h.Broadcast(context.Background(), hub.Message{Kind: "stats_refreshed"})
	if n != 2 {
		t.Errorf("Broadcast() delivered = %d, want 2", n)
	}
	for name, sub := range map[string]*hub.MockSubscriber{"a": a, "b": b} {
		got := sub.Received()
		if len(got) != 1 || got[0].Kind != "stats_refreshed" {
			t.Errorf("%s received %+v", name, got)
		}
	}
}

func TestHub_Unregister(t *testing.T) {
	h := hub.New()
	sub := &hub.MockSubscriber{}
	h.Register("x", sub)
	h.Unregister("x")
	h.Unregister("never-registered")

	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
	if n := h.Broadcast(context.Background(), hub.Message{Kind: "k"}); n != 0 {
		t.Errorf("Broadcast() delivered = %d, want 0", n)
	}
	if len(sub.Received()) != 0 {
		t.Error("unregistered subscriber should receive nothing")
	}
}

func TestHub_ServeWS(t *testing.T) {
	h := hub.New()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	waitFor(t, func() bool { return h.Len() == 1 })

	h.Broadcast(ctx, hub.Message{Kind: "progress_updated", Data: map[string]any{"module_id": "java"}})

	var got struct {
		Kind string         `json:"kind"`
		Data map[string]any `json:"data"`
	}
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Kind != "progress_updated" || got.Data["module_id"] != "java" {
		t.Errorf("message = %+v", got)
	}

	conn.Close(websocket.StatusNormalClosure, "")
	waitFor(t, func() bool { return h.Len() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
