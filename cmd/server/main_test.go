package main

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-portal/internal/platform/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.StorageConfig{Mode: "memory"},
		Auth:    config.AuthConfig{Mode: "open", SessionTTL: time.Hour},
		Content: config.ContentConfig{URL: "http://127.0.0.1:1", Timeout: time.Second},
		Prefs:   config.PrefsConfig{Path: filepath.Join(t.TempDir(), "prefs.db")},
		Study:   config.StudyConfig{Tick: time.Second},
		Log:     config.LogConfig{Level: "info", Format: "json"},
	}
}

func TestHealthEndpoints(t *testing.T) {
	a, err := newApp(t.Context(), testConfig(t))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "readyz returns 200 without startup delay",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			a.handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestNewApp_ServesDashboard(t *testing.T) {
	a, err := newApp(t.Context(), testConfig(t))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Dashboard") {
		t.Errorf("GET / = %d", rec.Code)
	}
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"malformed catalog", func(c *config.Config) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "modules.yaml"), []byte("modules: ["), 0o644); err != nil {
				t.Fatal(err)
			}
			c.CatalogPath = dir
		}},
		{"missing credentials file", func(c *config.Config) {
			c.Auth.Mode = "bcrypt"
			c.Auth.CredentialsFile = filepath.Join(t.TempDir(), "missing.yaml")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			if _, err := newApp(t.Context(), cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		cfg       config.LogConfig
		wantDebug bool
		wantJSON  bool
	}{
		{config.LogConfig{Level: "debug", Format: "json"}, true, true},
		{config.LogConfig{Level: "info", Format: "text"}, false, false},
		{config.LogConfig{Level: "bogus", Format: "json"}, false, true},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := newLogger(&buf, tt.cfg)

		if got := logger.Enabled(t.Context(), slog.LevelDebug); got != tt.wantDebug {
			t.Errorf("%+v: debug enabled = %v, want %v", tt.cfg, got, tt.wantDebug)
		}
		logger.Info("hello")
		if got := strings.HasPrefix(buf.String(), "{"); got != tt.wantJSON {
			t.Errorf("%+v: output %q, json = %v", tt.cfg, buf.String(), got)
		}
	}
}
