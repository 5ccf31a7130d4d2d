package learning

import (
	"context"
	"testing"
	"time"
)

func TestStudyTimer_AdvancesOnlyWhileRunning(t *testing.T) {
	timer := NewStudyTimer(time.Second)

	timer.advance()
	if timer.Elapsed() != 0 {
		t.Errorf("paused timer advanced to %v", timer.Elapsed())
	}

	timer.Start()
	timer.advance()
	timer.advance()
	if timer.Elapsed() != 2*time.Second {
		t.Errorf("Elapsed() = %v, want 2s", timer.Elapsed())
	}

	timer.Pause()
	timer.advance()
	if got := timer.Snapshot(); got.ElapsedSeconds != 2 || got.Running {
		t.Errorf("Snapshot() = %+v, want 2s paused", got)
	}
}

func TestStudyTimer_Toggle(t *testing.T) {
	timer := NewStudyTimer(0)

	if !timer.Toggle() {
		t.Error("first Toggle() should start the timer")
	}
	if !timer.Running() {
		t.Error("Running() should be true")
	}
	if timer.Toggle() {
		t.Error("second Toggle() should pause the timer")
	}
}

func TestStudyTimer_RunStopsOnCancel(t *testing.T) {
	timer := NewStudyTimer(time.Millisecond)
	timer.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		timer.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for timer.Elapsed() == 0 {
		select {
		case <-deadline:
			t.Fatal("timer did not advance")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
