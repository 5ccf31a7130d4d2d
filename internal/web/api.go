package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/pai-portal/internal/activity"
	"github.com/p-n-ai/pai-portal/internal/content"
	"github.com/p-n-ai/pai-portal/internal/hub"
	"github.com/p-n-ai/pai-portal/internal/interview"
	"github.com/p-n-ai/pai-portal/internal/prefs"
	"github.com/p-n-ai/pai-portal/internal/report"
	"github.com/p-n-ai/pai-portal/internal/session"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// --- Session ---

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]*session.Session{"session": s.currentSession(r)})
}

type loginRequest struct {
	Handle string `json:"handle"`
	Secret string `json:"secret"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, ok := s.login(w, r, req.Handle, req.Secret)
	if !ok {
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, res)
}

// login runs the provider login, sets the cookie and records the event. It
// reports false when a response has already been written.
func (s *Server) login(w http.ResponseWriter, r *http.Request, handle, secret string) (session.Result, bool) {
	res, err := s.sessions.Login(r.Context(), sessionID(r), handle, secret)
	if err != nil {
		serverError(w, err)
		return session.Result{}, false
	}
	if !res.Success {
		return res, true
	}

	setSessionCookie(w, res.Session.ID)
	activity.Record(r.Context(), s.activity, activity.Event{
		SessionID: res.Session.ID,
		Handle:    res.Session.Handle,
		Type:      activity.SessionLogin,
		CreatedAt: s.now(),
	})
	return res, true
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.logout(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) bool {
	if sess := s.currentSession(r); sess != nil {
		s.record(r, activity.SessionLogout, nil)
	}
	if err := s.sessions.Logout(r.Context(), sessionID(r)); err != nil {
		serverError(w, err)
		return false
	}
	clearSessionCookie(w)
	return true
}

// --- Learning ---

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.learning.Stats())
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.learning.Modules())
}

type progressRequest struct {
	Completion *int `json:"completion"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "moduleID")

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Completion == nil {
		writeError(w, http.StatusBadRequest, "completion is required")
		return
	}

	updated, err := s.learning.UpdateProgress(r.Context(), id, *req.Completion)
	if err != nil {
		serverError(w, err)
		return
	}
	if !updated {
		writeJSON(w, http.StatusOK, map[string]any{"updated": false})
		return
	}

	s.record(r, activity.ProgressUpdated, map[string]any{
		"module_id":  id,
		"completion": *req.Completion,
	})
	m, _ := s.learning.Module(id)
	writeJSON(w, http.StatusOK, map[string]any{"updated": true, "module": m})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.learning.Refresh(r.Context()); err != nil {
		serverError(w, err)
		return
	}
	s.record(r, activity.StatsRefreshed, nil)
	writeJSON(w, http.StatusOK, s.learning.Stats())
}

// --- Content ---

func (s *Server) handleContentView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.content.Load(r.Context(), content.NodeJS))
}

// --- Interview ---

func questionFilter(r *http.Request) interview.Filter {
	q := r.URL.Query()
	return interview.Filter{
		Difficulty: interview.ParseAxis(q.Get("difficulty")),
		Company:    interview.ParseAxis(q.Get("company")),
		Query:      q.Get("q"),
	}
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	all := s.catalog.Questions()
	f := questionFilter(r)

	writeJSON(w, http.StatusOK, map[string]any{
		"questions":    interview.Apply(all, f),
		"total":        len(all),
		"difficulties": interview.Difficulties(all),
		"companies":    interview.Companies(all),
		"filter": map[string]string{
			"difficulty": f.Difficulty.String(),
			"company":    f.Company.String(),
			"q":          f.Query,
		},
	})
}

// --- Preferences ---

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := s.prefs.Get(r.Context())
	if err != nil {
		serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var p prefs.Preferences
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.writePreferences(w, r, func() (prefs.Preferences, error) {
		return s.prefs.Apply(r.Context(), p)
	})
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	s.writePreferences(w, r, func() (prefs.Preferences, error) {
		return s.prefs.ToggleTheme(r.Context())
	})
}

func (s *Server) handleFontSize(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "direction") {
	case "increase":
		s.writePreferences(w, r, func() (prefs.Preferences, error) {
			return s.prefs.IncreaseFontSize(r.Context())
		})
	case "decrease":
		s.writePreferences(w, r, func() (prefs.Preferences, error) {
			return s.prefs.DecreaseFontSize(r.Context())
		})
	default:
		writeError(w, http.StatusBadRequest, "direction must be increase or decrease")
	}
}

func (s *Server) handleToggleReducedMotion(w http.ResponseWriter, r *http.Request) {
	s.writePreferences(w, r, func() (prefs.Preferences, error) {
		return s.prefs.ToggleReducedMotion(r.Context())
	})
}

func (s *Server) handleToggleHighContrast(w http.ResponseWriter, r *http.Request) {
	s.writePreferences(w, r, func() (prefs.Preferences, error) {
		return s.prefs.ToggleHighContrast(r.Context())
	})
}

func (s *Server) handleResetPreferences(w http.ResponseWriter, r *http.Request) {
	s.writePreferences(w, r, func() (prefs.Preferences, error) {
		return s.prefs.Reset(r.Context())
	})
}

// writePreferences runs a preferences mutation and reports the result.
func (s *Server) writePreferences(w http.ResponseWriter, r *http.Request, mutate func() (prefs.Preferences, error)) {
	p, err := mutate()
	if errors.Is(err, prefs.ErrInvalidPreference) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	s.record(r, activity.PreferencesChanged, map[string]any{
		"theme":          p.Theme,
		"font_size":      p.FontSize,
		"reduced_motion": p.ReducedMotion,
		"high_contrast":  p.HighContrast,
	})
	s.hub.Broadcast(r.Context(), hub.Message{Kind: activity.PreferencesChanged, Data: p})
	writeJSON(w, http.StatusOK, p)
}

// --- Study timer ---

func (s *Server) handleStudy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timer.Snapshot())
}

func (s *Server) handleToggleStudy(w http.ResponseWriter, r *http.Request) {
	running := s.timer.Toggle()
	snap := s.timer.Snapshot()

	s.record(r, activity.StudyToggled, map[string]any{"running": running})
	s.hub.Broadcast(r.Context(), hub.Message{Kind: activity.StudyToggled, Data: snap})
	writeJSON(w, http.StatusOK, snap)
}

// --- Export ---

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := report.WriteProgress(&buf, s.learning.Stats(), s.learning.Modules()); err != nil {
		serverError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="progress.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
