package web

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/pai-portal/internal/catalog"
	"github.com/p-n-ai/pai-portal/internal/content"
	"github.com/p-n-ai/pai-portal/internal/interview"
	"github.com/p-n-ai/pai-portal/internal/learning"
	"github.com/p-n-ai/pai-portal/internal/prefs"
	"github.com/p-n-ai/pai-portal/internal/session"
)

type navItem struct {
	Href  string
	Label string
}

var nav = []navItem{
	{"/", "Dashboard"},
	{"/learning-path", "Learning Path"},
	{"/modules/nodejs", "Node.js"},
	{"/interview-prep", "Interview Prep"},
	{"/code-playground", "Code Playground"},
	{"/progress", "Progress"},
	{"/notes", "Notes"},
	{"/profile", "Profile"},
	{"/settings", "Settings"},
}

// pageData is what every page template receives.
type pageData struct {
	Title   string
	Path    string
	Nav     []navItem
	Session *session.Session
	Prefs   prefs.Preferences
	Data    any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title, path string, data any) {
	p, err := s.prefs.Get(r.Context())
	if err != nil {
		slog.Warn("failed to load preferences", "error", err)
		p = prefs.Defaults
	}

	var buf bytes.Buffer
	err = s.pages[name].ExecuteTemplate(&buf, "layout", pageData{
		Title:   title,
		Path:    path,
		Nav:     nav,
		Session: s.currentSession(r),
		Prefs:   p,
		Data:    data,
	})
	if err != nil {
		serverError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// --- Pages ---

type dashboardData struct {
	Stats   learning.Stats
	Modules []catalog.Module
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "dashboard.html", "Dashboard", "/", dashboardData{
		Stats:   s.learning.Stats(),
		Modules: s.learning.Modules(),
	})
}

func (s *Server) handleLearningPath(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "learning_path.html", "Learning Path", "/learning-path", s.learning.Modules())
}

type moduleData struct {
	Module    catalog.Module
	Completed int
	Found     bool
}

func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "moduleID")

	m, ok := s.learning.Module(id)
	status := http.StatusOK
	if !ok {
		m = catalog.NotFoundModule(id)
		status = http.StatusNotFound
	}
	s.render(w, r, status, "module.html", m.Name, "/learning-path", moduleData{
		Module:    m,
		Completed: m.CompletedTopics(),
		Found:     ok,
	})
}

type topicData struct {
	Topic  catalog.Topic
	Module catalog.Module
	Found  bool
	Source string
	// Trusted bodies come from the content service and may carry HTML.
	Trusted bool
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "topicID")

	t, owner, ok := s.catalog.Topic(id)
	status := http.StatusOK
	if !ok {
		t = catalog.NotFoundTopic(id)
		status = http.StatusNotFound
	}
	s.render(w, r, status, "topic.html", t.Title, "/learning-path", topicData{Topic: t, Module: owner, Found: ok})
}

func (s *Server) handleNodeJS(w http.ResponseWriter, r *http.Request) {
	view := s.content.Load(r.Context(), content.NodeJS)
	title := view.Module.Name
	if view.Error != "" {
		title = "Node.js"
	}
	s.render(w, r, http.StatusOK, "nodejs.html", title, "/modules/nodejs", view)
}

func (s *Server) handleNodeJSTopic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "topicID")

	t, source, ok := s.content.Topic(r.Context(), content.ID(id))
	status := http.StatusOK
	data := topicData{Found: ok, Source: source, Trusted: ok}
	if ok {
		data.Topic = catalog.Topic{ID: string(t.ID), Title: t.Title, Body: t.Content}
		data.Module = catalog.Module{ID: "nodejs", Name: "Node.js"}
	} else {
		data.Topic = catalog.NotFoundTopic(id)
		status = http.StatusNotFound
	}
	s.render(w, r, status, "topic.html", data.Topic.Title, "/modules/nodejs", data)
}

type interviewData struct {
	Questions    []catalog.Question
	Total        int
	Difficulties []string
	Companies    []string
	Difficulty   string
	Company      string
	Query        string
}

func (s *Server) handleInterviewPrep(w http.ResponseWriter, r *http.Request) {
	all := s.catalog.Questions()
	f := questionFilter(r)

	s.render(w, r, http.StatusOK, "interview.html", "Interview Prep", "/interview-prep", interviewData{
		Questions:    interview.Apply(all, f),
		Total:        len(all),
		Difficulties: interview.Difficulties(all),
		Companies:    interview.Companies(all),
		Difficulty:   f.Difficulty.String(),
		Company:      f.Company.String(),
		Query:        f.Query,
	})
}

func (s *Server) handlePlayground(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "playground.html", "Code Playground", "/code-playground", nil)
}

type progressData struct {
	Stats   learning.Stats
	Modules []catalog.Module
	Study   learning.StudySnapshot
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "progress.html", "Progress", "/progress", progressData{
		Stats:   s.learning.Stats(),
		Modules: s.learning.Modules(),
		Study:   s.timer.Snapshot(),
	})
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "notes.html", "Notes", "/notes", nil)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "profile.html", "Profile", "/profile", map[string]string{
		"Error": r.URL.Query().Get("error"),
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "settings.html", "Settings", "/settings", nil)
}

// --- Forms ---

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/profile?error="+url.QueryEscape("invalid form"), http.StatusSeeOther)
		return
	}
	res, ok := s.login(w, r, r.PostFormValue("handle"), r.PostFormValue("secret"))
	if !ok {
		return
	}
	if !res.Success {
		http.Redirect(w, r, "/profile?error="+url.QueryEscape(res.Error), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogoutForm(w http.ResponseWriter, r *http.Request) {
	if !s.logout(w, r) {
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
