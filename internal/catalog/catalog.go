// Package catalog holds the immutable reference content of the portal:
// modules with their topics and the interview question bank.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed content/*.yaml
var embedded embed.FS

const (
	modulesFileName   = "modules.yaml"
	questionsFileName = "questions.yaml"
)

// Catalog is loaded once and never mutated afterwards, so it is safe for
// concurrent readers without locking.
type Catalog struct {
	modules   []Module
	byID      map[string]int
	topics    map[string]topicRef
	questions []Question
}

type topicRef struct {
	module int
	topic  int
}

// Embedded loads the catalog shipped inside the binary.
func Embedded() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "content")
	if err != nil {
		return nil, fmt.Errorf("open embedded content: %w", err)
	}
	return Load(sub)
}

// LoadDir loads a catalog from a directory holding modules.yaml and
// questions.yaml. Missing files fall back to the embedded copy.
func LoadDir(dir string) (*Catalog, error) {
	sub, err := fs.Sub(embedded, "content")
	if err != nil {
		return nil, fmt.Errorf("open embedded content: %w", err)
	}
	return Load(overlayFS{primary: os.DirFS(dir), fallback: sub})
}

// Load reads modules.yaml and questions.yaml from fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	var mf modulesFile
	if err := decodeYAML(fsys, modulesFileName, &mf); err != nil {
		return nil, err
	}
	var qf questionsFile
	if err := decodeYAML(fsys, questionsFileName, &qf); err != nil {
		return nil, err
	}

	c := &Catalog{
		byID:   make(map[string]int, len(mf.Modules)),
		topics: make(map[string]topicRef),
	}
	for _, m := range mf.Modules {
		if m.ID == "" {
			slog.Warn("skipping module without id", "name", m.Name)
			continue
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate module id %q", m.ID)
		}
		if m.TopicCount == 0 {
			m.TopicCount = len(m.Topics)
		}
		c.byID[m.ID] = len(c.modules)
		for ti, t := range m.Topics {
			if t.ID == "" {
				return nil, fmt.Errorf("module %q: topic %d has no id", m.ID, ti)
			}
			if _, dup := c.topics[t.ID]; dup {
				return nil, fmt.Errorf("duplicate topic id %q", t.ID)
			}
			c.topics[t.ID] = topicRef{module: len(c.modules), topic: ti}
		}
		c.modules = append(c.modules, m)
	}
	c.questions = qf.Questions

	slog.Info("catalog loaded",
		"modules", len(c.modules),
		"topics", len(c.topics),
		"questions", len(c.questions),
	)
	return c, nil
}

// Modules returns the modules in display order. Callers get their own copy.
func (c *Catalog) Modules() []Module {
	out := make([]Module, len(c.modules))
	for i, m := range c.modules {
		out[i] = cloneModule(m)
	}
	return out
}

// Module returns a module by ID.
func (c *Catalog) Module(id string) (Module, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Module{}, false
	}
	return cloneModule(c.modules[i]), true
}

// Topic returns a topic and the module that owns it.
func (c *Catalog) Topic(id string) (Topic, Module, bool) {
	ref, ok := c.topics[id]
	if !ok {
		return Topic{}, Module{}, false
	}
	m := c.modules[ref.module]
	return m.Topics[ref.topic], cloneModule(m), true
}

// Questions returns the question bank in its original order.
func (c *Catalog) Questions() []Question {
	return append([]Question(nil), c.questions...)
}

func cloneModule(m Module) Module {
	m.Topics = append([]Topic(nil), m.Topics...)
	return m
}

func decodeYAML(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

// overlayFS serves files from primary and falls back to fallback when a file
// does not exist there.
type overlayFS struct {
	primary  fs.FS
	fallback fs.FS
}

func (o overlayFS) Open(name string) (fs.File, error) {
	f, err := o.primary.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return o.fallback.Open(name)
	}
	return f, err
}
