// Package learning tracks module completion and the aggregate learning statistics.
package learning

import (
	"context"
	"sync"

	"github.com/p-n-ai/pai-portal/internal/catalog"
)

// Stats is the aggregate summary shown on overview pages. It is seeded, not
// derived from per-module completion.
type Stats struct {
	CompletedModules int     `json:"completed_modules"`
	CurrentStreak    int     `json:"current_streak"`
	TotalTimeSpent   int     `json:"total_time_spent"` // minutes
	OverallProgress  float64 `json:"overall_progress"`
}

// SeedStats are the values re-issued on every refresh.
var SeedStats = Stats{
	CompletedModules: 3,
	CurrentStreak:    7,
	TotalTimeSpent:   1250,
	OverallProgress:  45.5,
}

// ChangeKind names a store mutation.
type ChangeKind string

const (
	ChangeProgress ChangeKind = "progress_updated"
	ChangeRefresh  ChangeKind = "stats_refreshed"
)

// Change describes a completed mutation.
type Change struct {
	Kind       ChangeKind `json:"kind"`
	ModuleID   string     `json:"module_id,omitempty"`
	Completion int        `json:"completion,omitempty"`
	Stats      Stats      `json:"stats"`
}

// Store is the learning progress store.
type Store interface {
	Stats() Stats
	Modules() []catalog.Module
	Module(id string) (catalog.Module, bool)
	// UpdateProgress sets the completion of the module with the given ID. It
	// reports false and changes nothing when the ID is unknown.
	UpdateProgress(ctx context.Context, id string, percent int) (bool, error)
	// Refresh re-issues SeedStats. It is not a full reload: module
	// completion is kept rather than reset to the catalog values, so the
	// stats and per-module percentages may disagree afterwards.
	Refresh(ctx context.Context) error
	Subscribe(fn func(Change)) (unsubscribe func())
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu      sync.RWMutex
	seed    Stats
	stats   Stats
	modules []catalog.Module
	index   map[string]int

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

// NewMemoryStore creates a store over a copy of modules.
func NewMemoryStore(modules []catalog.Module, seed Stats) *MemoryStore {
	s := &MemoryStore{
		seed:    seed,
		stats:   seed,
		modules: make([]catalog.Module, len(modules)),
		index:   make(map[string]int, len(modules)),
		subs:    make(map[int]func(Change)),
	}
	for i, m := range modules {
		m.Topics = append([]catalog.Topic(nil), m.Topics...)
		s.modules[i] = m
		s.index[m.ID] = i
	}
	return s
}

func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *MemoryStore) Modules() []catalog.Module {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Module, len(s.modules))
	for i, m := range s.modules {
		m.Topics = append([]catalog.Topic(nil), m.Topics...)
		out[i] = m
	}
	return out
}

func (s *MemoryStore) Module(id string) (catalog.Module, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return catalog.Module{}, false
	}
	m := s.modules[i]
	m.Topics = append([]catalog.Topic(nil), m.Topics...)
	return m, true
}

func (s *MemoryStore) UpdateProgress(_ context.Context, id string, percent int) (bool, error) {
	change, ok := s.apply(id, percent)
	if !ok {
		return false, nil
	}
	s.notify(change)
	return true, nil
}

// Refresh restores the seed stats and keeps every module's completion.
func (s *MemoryStore) Refresh(_ context.Context) error {
	s.mu.Lock()
	s.stats = s.seed
	stats := s.stats
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRefresh, Stats: stats})
	return nil
}

// Subscribe registers fn to run after every successful mutation. Callbacks run
// outside the store lock, on the mutating goroutine.
func (s *MemoryStore) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// apply mutates the module and re-issues the seeded stats, mirroring how a
// progress update reloads the aggregate.
func (s *MemoryStore) apply(id string, percent int) (Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Change{}, false
	}
	s.modules[i].Completion = percent
	s.stats = s.seed
	return Change{Kind: ChangeProgress, ModuleID: id, Completion: percent, Stats: s.stats}, true
}

func (s *MemoryStore) has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

func (s *MemoryStore) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
