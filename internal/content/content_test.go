package content_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-portal/internal/content"
	"github.com/p-n-ai/pai-portal/internal/platform/cache"
)

type fakeService struct {
	modules      string
	modulesCode  int
	topics       string
	topicsCode   int
	topicsHijack bool
	topic        string
	modulesCalls int
	mu           sync.Mutex
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/learning-modules", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.modulesCalls++
		f.mu.Unlock()
		writeBody(w, f.modulesCode, f.modules)
	})
	mux.HandleFunc("GET /api/learning-modules/{id}/topics", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "42" {
			http.NotFound(w, r)
			return
		}
		if f.topicsHijack {
			dropConnection(w)
			return
		}
		writeBody(w, f.topicsCode, f.topics)
	})
	mux.HandleFunc("GET /api/topics/{id}", func(w http.ResponseWriter, r *http.Request) {
		if f.topic == "" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeBody(w, http.StatusOK, f.topic)
	})
	return mux
}

func (f *fakeService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modulesCalls
}

func writeBody(w http.ResponseWriter, code int, body string) {
	if code == 0 {
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// dropConnection closes the client connection without writing a response.
func dropConnection(w http.ResponseWriter) {
	conn, _, err := http.NewResponseController(w).Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}

func newLoader(t *testing.T, f *fakeService, opts ...content.LoaderOption) *content.Loader {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	client, err := content.NewClient(srv.URL, content.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	loader, err := content.NewLoader(client, opts...)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	return loader
}

const modulesJSON = `[
  {"id": 7, "name": "Java Mastery"},
  {"id": 42, "name": "Advanced NodeJS Patterns", "difficultyLevel": "ADVANCED"}
]`

const topicsJSON = `[
  {"id": 1, "title": "Streams"},
  {"id": 2, "title": "Cluster"}
]`

func TestLoader_RemoteMatch(t *testing.T) {
	loader := newLoader(t, &fakeService{modules: modulesJSON, topics: topicsJSON})

	view := loader.Load(context.Background(), content.NodeJS)

	if view.Error != "" {
		t.Fatalf("Error = %q, want none", view.Error)
	}
	if view.Source != content.SourceRemote {
		t.Errorf("Source = %q, want remote", view.Source)
	}
	if view.Module.ID != "42" {
		t.Errorf("Module.ID = %q, want 42", view.Module.ID)
	}
	if len(view.Topics) != 2 || view.Topics[0].Title != "Streams" {
		t.Errorf("Topics = %+v", view.Topics)
	}
}

func TestLoader_NoMatch(t *testing.T) {
	loader := newLoader(t, &fakeService{modules: `[{"id": 7, "name": "Java Mastery"}]`})

	view := loader.Load(context.Background(), content.NodeJS)

	if view.Error != "Node.js module not found" {
		t.Errorf("Error = %q, want Node.js module not found", view.Error)
	}
	if view.Source != "" {
		t.Errorf("Source = %q, want empty", view.Source)
	}
}

func TestLoader_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeService
	}{
		{"server error", &fakeService{modules: `oops`, modulesCode: http.StatusInternalServerError}},
		{"invalid json", &fakeService{modules: `{not json`}},
		{"schema mismatch", &fakeService{modules: `[{"title": "no id or name"}]`}},
		{"wrong top-level type", &fakeService{modules: `{"id": 1, "name": "Node.js"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newLoader(t, tt.svc)

			view := loader.Load(context.Background(), content.NodeJS)

			if view.Source != content.SourceFallback {
				t.Fatalf("Source = %q, want fallback", view.Source)
			}
			if view.Error != "" {
				t.Errorf("Error = %q, want none", view.Error)
			}
			if view.Module.Name != "Node.js Fundamentals to Expert" {
				t.Errorf("Module.Name = %q", view.Module.Name)
			}
			if len(view.Topics) != 2 {
				t.Fatalf("len(Topics) = %d, want 2", len(view.Topics))
			}
			if view.Topics[0].Title != "Node.js Basics and Event Loop" || view.Topics[1].Title != "Express.js Framework" {
				t.Errorf("Topics = %q, %q", view.Topics[0].Title, view.Topics[1].Title)
			}
		})
	}
}

func TestLoader_FallbackWhenUnreachable(t *testing.T) {
	client, err := content.NewClient("http://127.0.0.1:1", content.WithHTTPClient(&http.Client{Timeout: time.Second}))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	loader, err := content.NewLoader(client)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	view := loader.Load(context.Background(), content.NodeJS)
	if view.Source != content.SourceFallback {
		t.Errorf("Source = %q, want fallback", view.Source)
	}
}

func TestLoader_TopicsFailureKeepsModule(t *testing.T) {
	loader := newLoader(t, &fakeService{modules: modulesJSON, topicsCode: http.StatusServiceUnavailable})

	view := loader.Load(context.Background(), content.NodeJS)

	if view.Source != content.SourceRemote || view.Module.ID != "42" {
		t.Fatalf("view = %+v, want remote module 42", view)
	}
	if view.Topics == nil || len(view.Topics) != 0 {
		t.Errorf("Topics = %#v, want empty non-nil", view.Topics)
	}
}

func TestLoader_TopicsNetworkFailureFallsBack(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeService
	}{
		{"connection dropped", &fakeService{modules: modulesJSON, topicsHijack: true}},
		{"body is not json", &fakeService{modules: modulesJSON, topics: `<html>not json`}},
		{"schema mismatch", &fakeService{modules: modulesJSON, topics: `[{"name": "no title"}]`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newLoader(t, tt.svc)

			view := loader.Load(context.Background(), content.NodeJS)

			if view.Source != content.SourceFallback {
				t.Fatalf("Source = %q, want fallback", view.Source)
			}
			if view.Module.Name != "Node.js Fundamentals to Expert" {
				t.Errorf("Module.Name = %q", view.Module.Name)
			}
			if len(view.Topics) != 2 {
				t.Errorf("len(Topics) = %d, want 2", len(view.Topics))
			}
		})
	}
}

type memoryViewCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memoryViewCache) GetJSON(_ context.Context, key string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(b, v)
}

func (c *memoryViewCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func TestLoader_CachesRemoteView(t *testing.T) {
	svc := &fakeService{modules: modulesJSON, topics: topicsJSON}
	vc := &memoryViewCache{data: map[string][]byte{}}
	loader := newLoader(t, svc, content.WithCache(vc, time.Minute))

	first := loader.Load(context.Background(), content.NodeJS)
	second := loader.Load(context.Background(), content.NodeJS)

	if n := svc.calls(); n != 1 {
		t.Errorf("modules fetched %d times, want 1", n)
	}
	if second.Module.ID != first.Module.ID || len(second.Topics) != len(first.Topics) {
		t.Errorf("cached view = %+v, want %+v", second, first)
	}
}

func TestLoader_DoesNotCacheFallback(t *testing.T) {
	svc := &fakeService{modules: `x`, modulesCode: http.StatusBadGateway}
	vc := &memoryViewCache{data: map[string][]byte{}}
	loader := newLoader(t, svc, content.WithCache(vc, time.Minute))

	loader.Load(context.Background(), content.NodeJS)
	if len(vc.data) != 0 {
		t.Errorf("cache holds %d entries, want 0", len(vc.data))
	}
}

func TestLoader_Topic(t *testing.T) {
	remote := newLoader(t, &fakeService{topic: `{"id": 9, "title": "Worker Threads", "content": "# Workers"}`})
	topic, source, ok := remote.Topic(context.Background(), "9")
	if !ok || source != content.SourceRemote || topic.Title != "Worker Threads" {
		t.Errorf("Topic() = %+v, %q, %v", topic, source, ok)
	}

	down := newLoader(t, &fakeService{})
	topic, source, ok = down.Topic(context.Background(), "2")
	if !ok || source != content.SourceFallback || topic.Title != "Express.js Framework" {
		t.Errorf("fallback Topic() = %+v, %q, %v", topic, source, ok)
	}

	if _, _, ok := down.Topic(context.Background(), "99"); ok {
		t.Error("Topic() should report false for an unknown id")
	}
}

func TestClient_ErrUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := content.NewClient(srv.URL + "/")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := client.ListModules(context.Background()); !errors.Is(err, content.ErrUnavailable) {
		t.Errorf("ListModules() error = %v, want ErrUnavailable", err)
	}
	if _, err := client.ListModules(context.Background()); !errors.Is(err, content.ErrStatus) {
		t.Errorf("ListModules() error = %v, want ErrStatus", err)
	}
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail")
	}
}

func TestClient_RejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1, "name": "`))
		_, _ = w.Write(bytes.Repeat([]byte("x"), 5<<20))
		_, _ = w.Write([]byte(`"}]`))
	}))
	defer srv.Close()

	client, err := content.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	_, err = client.ListModules(context.Background())
	if !errors.Is(err, content.ErrUnavailable) || errors.Is(err, content.ErrStatus) {
		t.Errorf("ListModules() error = %v, want ErrUnavailable without ErrStatus", err)
	}
}

func TestID_UnmarshalJSON(t *testing.T) {
	var got []content.Module
	if err := json.Unmarshal([]byte(`[{"id": 12, "name": "a"}, {"id": "nodejs", "name": "b"}]`), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got[0].ID != "12" || got[1].ID != "nodejs" {
		t.Errorf("IDs = %q, %q", got[0].ID, got[1].ID)
	}
}

func TestMatcher(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Node.js Fundamentals to Expert", true},
		{"NODEJS deep dive", true},
		{"Node JS", false},
		{"Java Mastery", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := content.NodeJS.Match(tt.name); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
