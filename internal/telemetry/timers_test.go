package telemetry

import (
	"testing"
	"time"
)

func TestTimerSet_StartStop(t *testing.T) {
	ts := NewTimerSet()
	base := time.Unix(1000, 0)
	now := base
	ts.now = func() time.Time { return now }

	ts.Start("processing")
	now = base.Add(250 * time.Millisecond)

	if got := ts.Stop("processing"); got != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", got)
	}
}

func TestTimerSet_StopWithoutStart(t *testing.T) {
	ts := NewTimerSet()
	if got := ts.Stop("processing"); got != NoTimer {
		t.Errorf("expected NoTimer, got %v", got)
	}
}

func TestTimerSet_SecondStopReturnsNoTimer(t *testing.T) {
	ts := NewTimerSet()
	ts.Start("processing")

	if got := ts.Stop("processing"); got == NoTimer {
		t.Fatal("first stop should report elapsed time")
	}
	if got := ts.Stop("processing"); got != NoTimer {
		t.Errorf("second stop without matching start: expected NoTimer, got %v", got)
	}
}

func TestTimerSet_RestartResetsBaseline(t *testing.T) {
	ts := NewTimerSet()
	base := time.Unix(1000, 0)
	now := base
	ts.now = func() time.Time { return now }

	ts.Start("t")
	now = base.Add(time.Second)
	ts.Start("t")
	now = base.Add(1500 * time.Millisecond)

	if got := ts.Stop("t"); got != 500*time.Millisecond {
		t.Errorf("expected 500ms after restart, got %v", got)
	}
}
