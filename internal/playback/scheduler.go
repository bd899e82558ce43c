// Package playback drains the pending voice-clip queue and plays each clip
// to completion in arrival order. Microphone capture is paused while a clip
// plays so the agent does not hear its own voice.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxhalo/halo/internal/telemetry"
	"github.com/voxhalo/halo/pkg/frame"
	"github.com/voxhalo/halo/pkg/player"
)

// Clip is one voice segment of a server reply, tagged with the identity of
// the response it belongs to so interrupted replies can be suppressed.
type Clip struct {
	ResponseID string
	VoiceURL   string
}

// Pauser pauses and resumes an input source around playback. Implemented by
// the capture sources.
type Pauser interface {
	Pause()
	Resume()
}

// SchedulerConfig wires a [Scheduler].
type SchedulerConfig struct {
	Queue  *frame.Queue[Clip]
	Player player.Player

	// Banned reports whether a response id was interrupted. Clips of a
	// banned response are dropped instead of played.
	Banned func(id string) bool

	// Capture sources paused while a clip plays. May be empty.
	Capture []Pauser

	Monitor *telemetry.Monitor
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Scheduler is the single consumer of the voice-clip queue. Run one per
// session; clips play strictly one at a time.
type Scheduler struct {
	queue   *frame.Queue[Clip]
	player  player.Player
	banned  func(string) bool
	capture []Pauser

	monitor *telemetry.Monitor
	metrics *telemetry.Metrics
	log     *slog.Logger
}

// NewScheduler builds a Scheduler. Queue and Player are required; a nil
// Banned predicate means no clip is ever suppressed.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Banned == nil {
		cfg.Banned = func(string) bool { return false }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		queue:   cfg.Queue,
		player:  cfg.Player,
		banned:  cfg.Banned,
		capture: cfg.Capture,
		monitor: cfg.Monitor,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}
}

// Run consumes the queue until ctx is cancelled or the queue is closed.
// Playback failures are logged and the next clip is taken; a broken clip
// must not stall the conversation.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		clip, err := s.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, frame.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("playback: pop clip: %w", err)
		}
		if s.metrics != nil {
			s.metrics.QueueDepth.Add(ctx, -1)
		}

		// The ban may have landed while the clip sat in the queue.
		if s.banned(clip.ResponseID) {
			s.log.Debug("dropping clip of banned response",
				slog.String("response_id", clip.ResponseID))
			if s.metrics != nil {
				s.metrics.ClipsDropped.Add(ctx, 1, telemetry.WithDropReason("banned"))
			}
			continue
		}

		s.play(ctx, clip)
	}
}

// Stop halts the clip currently playing, if any. Queued clips are untouched;
// interrupt handling clears the queue separately.
func (s *Scheduler) Stop() {
	s.player.Stop()
}

// ClearQueue discards every queued clip and returns how many were dropped.
func (s *Scheduler) ClearQueue() int {
	n := s.queue.Clear()
	if s.metrics != nil && n > 0 {
		s.metrics.QueueDepth.Add(context.Background(), -int64(n))
	}
	return n
}

func (s *Scheduler) play(ctx context.Context, clip Clip) {
	for _, c := range s.capture {
		c.Pause()
	}
	defer func() {
		for _, c := range s.capture {
			c.Resume()
		}
	}()

	start := time.Now()
	if err := s.player.Play(ctx, clip.VoiceURL); err != nil {
		s.log.Warn("clip playback failed",
			slog.String("response_id", clip.ResponseID),
			slog.String("voice_url", clip.VoiceURL),
			slog.String("error", err.Error()))
		return
	}

	elapsed := time.Since(start)
	if s.monitor != nil {
		s.monitor.RecordPlayback(elapsed)
	}
	if s.metrics != nil {
		s.metrics.PlaybackDuration.Record(ctx, elapsed.Seconds())
	}
}
