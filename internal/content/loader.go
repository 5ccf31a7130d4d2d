package content

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-portal/internal/platform/cache"
)

//go:embed fallback/*.yaml
var fallbackFS embed.FS

// View sources.
const (
	SourceRemote   = "remote"
	SourceFallback = "fallback"
)

// View is the result of a load. Either Error is set, or Module is.
type View struct {
	Module Module  `json:"module"`
	Topics []Topic `json:"topics"`
	Source string  `json:"source,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Matcher selects a module by case-insensitive substrings of its name.
type Matcher struct {
	Label    string
	Keywords []string
}

// NodeJS matches the Node.js curriculum.
var NodeJS = Matcher{Label: "Node.js", Keywords: []string{"node.js", "nodejs"}}

func (m Matcher) Match(name string) bool {
	name = strings.ToLower(name)
	for _, kw := range m.Keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func (m Matcher) key() string {
	return "content:" + strings.ToLower(m.Label)
}

// Source is the remote side of a Loader. *Client implements it.
type Source interface {
	ListModules(ctx context.Context) ([]Module, error)
	ModuleTopics(ctx context.Context, moduleID ID) ([]Topic, error)
	Topic(ctx context.Context, topicID ID) (Topic, error)
}

// ViewCache stores successful remote views. *cache.Cache implements it.
type ViewCache interface {
	GetJSON(ctx context.Context, key string, v any) error
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Loader resolves a module view from the content service, falling back to
// embedded content when the service cannot be used.
type Loader struct {
	source   Source
	fallback Module
	cache    ViewCache
	cacheTTL time.Duration
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithCache caches remote views for ttl.
func WithCache(c ViewCache, ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		l.cache = c
		l.cacheTTL = ttl
	}
}

// NewLoader creates a loader over source with the embedded Node.js fallback.
func NewLoader(source Source, opts ...LoaderOption) (*Loader, error) {
	fb, err := LoadFallback()
	if err != nil {
		return nil, err
	}
	l := &Loader{source: source, fallback: fb}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LoadFallback parses the embedded fallback module.
func LoadFallback() (Module, error) {
	data, err := fallbackFS.ReadFile("fallback/nodejs.yaml")
	if err != nil {
		return Module{}, fmt.Errorf("reading fallback: %w", err)
	}
	var m Module
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Module{}, fmt.Errorf("parsing fallback: %w", err)
	}
	return m, nil
}

// Load returns the view for the first module matched by m. It always
// terminates with a view: a failed fetch yields the fallback, an unmatched
// listing yields a view with Error set.
func (l *Loader) Load(ctx context.Context, m Matcher) View {
	if l.cache != nil {
		var cached View
		err := l.cache.GetJSON(ctx, m.key(), &cached)
		if err == nil {
			return cached
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("content cache read failed", "error", err)
		}
	}

	modules, err := l.source.ListModules(ctx)
	if err != nil {
		slog.Warn("content service unavailable, using fallback",
			"module", m.Label,
			"error", err,
		)
		return l.fallbackView()
	}

	var found *Module
	for i := range modules {
		if m.Match(modules[i].Name) {
			found = &modules[i]
			break
		}
	}
	if found == nil {
		return View{Error: m.Label + " module not found"}
	}

	// A non-200 topic listing keeps the module. Transport and decode
	// failures show the fallback.
	topics, err := l.source.ModuleTopics(ctx, found.ID)
	switch {
	case err == nil:
	case errors.Is(err, ErrStatus):
		slog.Warn("failed to fetch module topics",
			"module_id", found.ID,
			"error", err,
		)
		topics = []Topic{}
	default:
		slog.Warn("content service unavailable, using fallback",
			"module", m.Label,
			"module_id", found.ID,
			"error", err,
		)
		return l.fallbackView()
	}

	view := View{Module: *found, Topics: topics, Source: SourceRemote}
	if l.cache != nil && err == nil {
		if err := l.cache.SetJSON(ctx, m.key(), view, l.cacheTTL); err != nil {
			slog.Warn("content cache write failed", "error", err)
		}
	}
	return view
}

// Topic returns the full topic with the given ID, consulting the fallback
// module when the service fails.
func (l *Loader) Topic(ctx context.Context, id ID) (Topic, string, bool) {
	t, err := l.source.Topic(ctx, id)
	if err == nil {
		return t, SourceRemote, true
	}
	slog.Warn("failed to fetch topic", "topic_id", id, "error", err)

	for _, t := range l.fallback.Topics {
		if t.ID == id {
			return t, SourceFallback, true
		}
	}
	return Topic{}, "", false
}

func (l *Loader) fallbackView() View {
	m := l.fallback
	m.Topics = append([]Topic(nil), l.fallback.Topics...)
	return View{
		Module: m,
		Topics: append([]Topic(nil), l.fallback.Topics...),
		Source: SourceFallback,
	}
}
