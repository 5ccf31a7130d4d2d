package learning

import (
	"context"
	"sync"
	"time"
)

// StudySnapshot is the observable state of a StudyTimer.
type StudySnapshot struct {
	Running        bool  `json:"running"`
	ElapsedSeconds int64 `json:"elapsed_seconds"`
}

// StudyTimer accumulates study time while it is running. Time only advances
// inside Run, one tick at a time.
type StudyTimer struct {
	mu      sync.Mutex
	tick    time.Duration
	running bool
	elapsed time.Duration
}

// NewStudyTimer creates a paused timer that advances by tick.
func NewStudyTimer(tick time.Duration) *StudyTimer {
	if tick <= 0 {
		tick = time.Second
	}
	return &StudyTimer{tick: tick}
}

func (t *StudyTimer) Start() {
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()
}

func (t *StudyTimer) Pause() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Toggle flips the running state and returns the new state.
func (t *StudyTimer) Toggle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = !t.running
	return t.running
}

func (t *StudyTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *StudyTimer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

func (t *StudyTimer) Snapshot() StudySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return StudySnapshot{
		Running:        t.running,
		ElapsedSeconds: int64(t.elapsed / time.Second),
	}
}

// Run advances the timer until ctx is cancelled.
func (t *StudyTimer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.advance()
		}
	}
}

func (t *StudyTimer) advance() {
	t.mu.Lock()
	if t.running {
		t.elapsed += t.tick
	}
	t.mu.Unlock()
}
