package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxhalo/halo/pkg/frame"
	playermock "github.com/voxhalo/halo/pkg/player/mock"
)

// pauseRecorder records Pause/Resume calls in order.
type pauseRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *pauseRecorder) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "pause")
}

func (r *pauseRecorder) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "resume")
}

func (r *pauseRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func runScheduler(t *testing.T, s *Scheduler) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Run(ctx); err != nil {
			t.Errorf("Run() = %v", err)
		}
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSchedulerPlaysInOrder(t *testing.T) {
	q := frame.NewQueue[Clip]()
	p := &playermock.Player{}
	s := NewScheduler(SchedulerConfig{Queue: q, Player: p})
	stop := runScheduler(t, s)
	defer stop()

	clips := []Clip{
		{ResponseID: "T1", VoiceURL: "http://srv/a.wav"},
		{ResponseID: "T1", VoiceURL: "http://srv/b.wav"},
		{ResponseID: "T2", VoiceURL: "http://srv/c.wav"},
	}
	for _, c := range clips {
		if err := q.Push(c); err != nil {
			t.Fatalf("Push() = %v", err)
		}
	}

	waitFor(t, func() bool { return len(p.Played()) == 3 }, "clips not all played")
	got := p.Played()
	want := []string{"http://srv/a.wav", "http://srv/b.wav", "http://srv/c.wav"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("played = %v, want %v", got, want)
		}
	}
}

func TestSchedulerDropsBannedClipAtDequeue(t *testing.T) {
	q := frame.NewQueue[Clip]()
	p := &playermock.Player{}

	var mu sync.Mutex
	banned := ""
	s := NewScheduler(SchedulerConfig{
		Queue:  q,
		Player: p,
		Banned: func(id string) bool {
			mu.Lock()
			defer mu.Unlock()
			return id == banned
		},
	})

	// Queue clips before starting, then ban T1: the ban landed while the
	// clips sat in the queue and must still suppress them.
	q.Push(Clip{ResponseID: "T1", VoiceURL: "http://srv/a.wav"})
	q.Push(Clip{ResponseID: "T1", VoiceURL: "http://srv/b.wav"})
	q.Push(Clip{ResponseID: "T2", VoiceURL: "http://srv/c.wav"})
	mu.Lock()
	banned = "T1"
	mu.Unlock()

	stop := runScheduler(t, s)
	defer stop()

	waitFor(t, func() bool { return len(p.Played()) == 1 }, "surviving clip not played")
	time.Sleep(20 * time.Millisecond)
	if got := p.Played(); len(got) != 1 || got[0] != "http://srv/c.wav" {
		t.Errorf("played = %v, want only c.wav", got)
	}
}

func TestSchedulerPausesCaptureDuringPlayback(t *testing.T) {
	q := frame.NewQueue[Clip]()
	p := &playermock.Player{PlayDuration: 20 * time.Millisecond}
	rec := &pauseRecorder{}
	s := NewScheduler(SchedulerConfig{Queue: q, Player: p, Capture: []Pauser{rec}})
	stop := runScheduler(t, s)
	defer stop()

	q.Push(Clip{ResponseID: "T1", VoiceURL: "http://srv/a.wav"})

	waitFor(t, func() bool { return len(rec.recorded()) == 2 }, "capture not resumed")
	got := rec.recorded()
	if got[0] != "pause" || got[1] != "resume" {
		t.Errorf("capture calls = %v, want [pause resume]", got)
	}
}

func TestSchedulerResumesCaptureAfterPlayError(t *testing.T) {
	q := frame.NewQueue[Clip]()
	p := &playermock.Player{PlayError: errors.New("decode failed")}
	rec := &pauseRecorder{}
	s := NewScheduler(SchedulerConfig{Queue: q, Player: p, Capture: []Pauser{rec}})
	stop := runScheduler(t, s)
	defer stop()

	q.Push(Clip{ResponseID: "T1", VoiceURL: "http://srv/bad.wav"})
	q.Push(Clip{ResponseID: "T1", VoiceURL: "http://srv/good.wav"})

	// The failed clip must not stall the queue or leave capture paused.
	waitFor(t, func() bool { return len(p.Played()) == 2 }, "scheduler stalled after play error")
	waitFor(t, func() bool {
		calls := rec.recorded()
		return len(calls) == 4 && calls[3] == "resume"
	}, "capture left paused after play error")
}

func TestSchedulerStopHaltsCurrentClipOnly(t *testing.T) {
	q := frame.NewQueue[Clip]()
	p := &playermock.Player{BlockUntilStopped: true}
	s := NewScheduler(SchedulerConfig{Queue: q, Player: p})
	stop := runScheduler(t, s)
	defer stop()

	q.Push(Clip{ResponseID: "T1", VoiceURL: "http://srv/a.wav"})
	waitFor(t, p.IsPlaying, "clip did not start")

	q.Push(Clip{ResponseID: "T2", VoiceURL: "http://srv/b.wav"})
	s.Stop()

	// The next queued clip still plays.
	waitFor(t, func() bool { return len(p.Played()) == 2 }, "queued clip not played after Stop")
	if got := p.StopCalls(); got != 1 {
		t.Errorf("StopCalls() = %d, want 1", got)
	}
}

func TestSchedulerClearQueue(t *testing.T) {
	q := frame.NewQueue[Clip]()
	p := &playermock.Player{}
	s := NewScheduler(SchedulerConfig{Queue: q, Player: p})

	q.Push(Clip{ResponseID: "T1", VoiceURL: "http://srv/a.wav"})
	q.Push(Clip{ResponseID: "T1", VoiceURL: "http://srv/b.wav"})

	if got := s.ClearQueue(); got != 2 {
		t.Errorf("ClearQueue() = %d, want 2", got)
	}
	if got := q.Len(); got != 0 {
		t.Errorf("Len() = %d after clear, want 0", got)
	}
}

func TestSchedulerStopsOnQueueClose(t *testing.T) {
	q := frame.NewQueue[Clip]()
	p := &playermock.Player{}
	s := NewScheduler(SchedulerConfig{Queue: q, Player: p})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	q.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v after queue close, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after queue close")
	}
}
