package cache

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/0", false},
		{"empty", "", true},
		{"wrong-scheme", "http://localhost:6379", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKey(t *testing.T) {
	c := &Cache{prefix: "portal:"}
	if got := c.Key("session:abc"); got != "portal:session:abc" {
		t.Errorf("Key() = %q, want portal:session:abc", got)
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx := t.Context()
	_, err := New(ctx, "redis://localhost:59999")
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}

func TestSetJSON_MarshalError(t *testing.T) {
	c := &Cache{Client: redis.NewClient(&redis.Options{Addr: "localhost:59999"}), prefix: "portal:"}
	defer c.Close()

	err := c.SetJSON(t.Context(), "bad", make(chan int), time.Minute)
	if err == nil || !strings.Contains(err.Error(), "marshal") {
		t.Errorf("SetJSON() error = %v, want marshal error", err)
	}
}

func TestGetJSON_UnreachableIsNotMiss(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	c := &Cache{
		Client: redis.NewClient(&redis.Options{Addr: "localhost:59999", DialTimeout: 200 * time.Millisecond, MaxRetries: -1}),
		prefix: "portal:",
	}
	defer c.Close()

	var v map[string]string
	err := c.GetJSON(t.Context(), "k", &v)
	if err == nil || errors.Is(err, ErrMiss) {
		t.Errorf("GetJSON() error = %v, want connection error", err)
	}
}
