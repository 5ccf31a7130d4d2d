// Package web serves the portal pages and its JSON API.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/p-n-ai/pai-portal/internal/activity"
	"github.com/p-n-ai/pai-portal/internal/catalog"
	"github.com/p-n-ai/pai-portal/internal/content"
	"github.com/p-n-ai/pai-portal/internal/hub"
	"github.com/p-n-ai/pai-portal/internal/learning"
	"github.com/p-n-ai/pai-portal/internal/prefs"
	"github.com/p-n-ai/pai-portal/internal/session"
)

// HealthCheck is a backing service probed by /readyz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators a Server needs. Activity, Checks and Now are
// optional.
type Deps struct {
	Sessions *session.Provider
	Learning learning.Store
	Catalog  *catalog.Catalog
	Content  *content.Loader
	Prefs    *prefs.Service
	Timer    *learning.StudyTimer
	Hub      *hub.Hub
	Activity activity.Logger
	Checks   []HealthCheck

	// StartupDelay holds /readyz at "loading" after the server is created.
	StartupDelay time.Duration
	Now          func() time.Time
}

// Server holds the HTTP handlers.
type Server struct {
	sessions *session.Provider
	learning learning.Store
	catalog  *catalog.Catalog
	content  *content.Loader
	prefs    *prefs.Service
	timer    *learning.StudyTimer
	hub      *hub.Hub
	activity activity.Logger
	checks   []HealthCheck

	pages map[string]*template.Template

	startupDelay time.Duration
	started      time.Time
	now          func() time.Time
	unsubscribe  func()
}

// NewServer validates deps, parses the page templates and subscribes the hub
// to learning store changes.
func NewServer(d Deps) (*Server, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if d.Activity == nil {
		d.Activity = activity.NopLogger{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	pages, err := parsePages(newMarkdown(), newTrustedMarkdown())
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		sessions:     d.Sessions,
		learning:     d.Learning,
		catalog:      d.Catalog,
		content:      d.Content,
		prefs:        d.Prefs,
		timer:        d.Timer,
		hub:          d.Hub,
		activity:     d.Activity,
		checks:       d.Checks,
		pages:        pages,
		startupDelay: d.StartupDelay,
		started:      d.Now(),
		now:          d.Now,
	}
	s.unsubscribe = d.Learning.Subscribe(func(c learning.Change) {
		s.hub.Broadcast(context.Background(), hub.Message{Kind: string(c.Kind), Data: c})
	})
	return s, nil
}

func (d Deps) validate() error {
	var missing []error
	if d.Sessions == nil {
		missing = append(missing, errors.New("Sessions"))
	}
	if d.Learning == nil {
		missing = append(missing, errors.New("Learning"))
	}
	if d.Catalog == nil {
		missing = append(missing, errors.New("Catalog"))
	}
	if d.Content == nil {
		missing = append(missing, errors.New("Content"))
	}
	if d.Prefs == nil {
		missing = append(missing, errors.New("Prefs"))
	}
	if d.Timer == nil {
		missing = append(missing, errors.New("Timer"))
	}
	if d.Hub == nil {
		missing = append(missing, errors.New("Hub"))
	}
	if len(missing) > 0 {
		return fmt.Errorf("web: missing dependencies: %w", errors.Join(missing...))
	}
	return nil
}

// Close detaches the server from the learning store.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Router returns the HTTP handler for pages, API and health checks.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleGetSession)
		r.Post("/session/login", s.handleLogin)
		r.Post("/session/logout", s.handleLogout)

		r.Get("/learning/stats", s.handleStats)
		r.Get("/learning/modules", s.handleModules)
		r.Put("/learning/modules/{moduleID}/progress", s.handleUpdateProgress)
		r.Post("/learning/refresh", s.handleRefresh)

		r.Get("/content/nodejs", s.handleContentView)
		r.Get("/interview/questions", s.handleQuestions)

		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handlePutPreferences)
		r.Post("/preferences/theme/toggle", s.handleToggleTheme)
		r.Post("/preferences/font-size/{direction}", s.handleFontSize)
		r.Post("/preferences/reduced-motion/toggle", s.handleToggleReducedMotion)
		r.Post("/preferences/high-contrast/toggle", s.handleToggleHighContrast)
		r.Post("/preferences/reset", s.handleResetPreferences)

		r.Get("/study", s.handleStudy)
		r.Post("/study/toggle", s.handleToggleStudy)

		r.Get("/progress/export", s.handleExport)
		r.Get("/ws", s.hub.ServeWS)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/", s.handleDashboard)
		r.Get("/learning-path", s.handleLearningPath)
		r.Get("/modules/nodejs", s.handleNodeJS)
		r.Get("/modules/nodejs/topics/{topicID}", s.handleNodeJSTopic)
		r.Get("/modules/{moduleID}", s.handleModule)
		r.Get("/topics/{topicID}", s.handleTopic)
		r.Get("/interview-prep", s.handleInterviewPrep)
		r.Get("/code-playground", s.handlePlayground)
		r.Get("/progress", s.handleProgress)
		r.Get("/notes", s.handleNotes)
		r.Get("/profile", s.handleProfile)
		r.Get("/settings", s.handleSettings)

		r.Post("/login", s.handleLoginForm)
		r.Post("/logout", s.handleLogoutForm)
	})

	// Any other page path falls back to the dashboard.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}
		s.handleDashboard(w, r)
	})

	return r
}

const readyTimeout = 2 * time.Second

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.now().Sub(s.started) < s.startupDelay {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"loading"}`))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			slog.Warn("readiness check failed", "check", c.Name, "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
