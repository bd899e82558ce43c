package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxhalo/halo/internal/telemetry"
)

// Notifier tells the server that the user cut off the current reply.
// Implemented by the API client.
type Notifier interface {
	Interrupt(ctx context.Context, uid string) error
}

// InterruptorConfig wires an [Interruptor] to the playback side and the
// hot-word detector without importing either package.
type InterruptorConfig struct {
	State    *State
	Notifier Notifier

	// StopPlayback halts the clip being played, if any.
	StopPlayback func()
	// ClearQueue discards every queued clip and returns how many were
	// dropped.
	ClearQueue func() int
	// Rearm re-enables hot-word detection after the interrupt completed.
	Rearm func()

	// NotifyTimeout bounds the server notification. Defaults to 5s.
	NotifyTimeout time.Duration

	Monitor *telemetry.Monitor
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Interruptor performs the barge-in sequence when the hot-word fires.
type Interruptor struct {
	state    *State
	notifier Notifier

	stopPlayback func()
	clearQueue   func() int
	rearm        func()

	notifyTimeout time.Duration

	monitor *telemetry.Monitor
	metrics *telemetry.Metrics
	log     *slog.Logger
}

// NewInterruptor builds an Interruptor. State, Notifier, StopPlayback,
// ClearQueue and Rearm are required.
func NewInterruptor(cfg InterruptorConfig) *Interruptor {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Interruptor{
		state:         cfg.State,
		notifier:      cfg.Notifier,
		stopPlayback:  cfg.StopPlayback,
		clearQueue:    cfg.ClearQueue,
		rearm:         cfg.Rearm,
		notifyTimeout: cfg.NotifyTimeout,
		monitor:       cfg.Monitor,
		metrics:       cfg.Metrics,
		log:           cfg.Logger,
	}
}

// Interrupt cuts off the reply in flight: it snapshots the current response
// id, stops playback, drains the clip queue, bans the snapped id and notifies
// the server in the background. The snapshot comes first so a new response
// arriving mid-interrupt can never be banned by mistake.
//
// Interrupt returns once the local side is quiet; the server notification
// completes asynchronously and failures are only logged.
func (i *Interruptor) Interrupt(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "session.interrupt")
	defer span.End()

	// Snapshot before touching playback: stopping the player can let the
	// consumer advance the current id underneath us.
	id := i.state.CurrentResponseID()

	i.stopPlayback()
	dropped := i.clearQueue()

	if id != NoResponse {
		i.state.Ban(id)
	}

	if i.metrics != nil {
		i.metrics.Interrupts.Add(ctx, 1)
		if dropped > 0 {
			i.metrics.ClipsDropped.Add(ctx, int64(dropped), telemetry.WithDropReason("interrupt"))
		}
	}
	if i.monitor != nil {
		i.monitor.IncrInterrupts()
	}

	i.log.Info("interrupted reply",
		slog.String("response_id", id),
		slog.Int("clips_dropped", dropped))

	go i.notify(id)

	i.rearm()
}

// notify is fire and forget. Losing the notification means the server keeps
// generating a reply the client will ignore, which only wastes bandwidth.
func (i *Interruptor) notify(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), i.notifyTimeout)
	defer cancel()
	if err := i.notifier.Interrupt(ctx, i.state.UID()); err != nil {
		i.log.Warn("interrupt notification failed",
			slog.String("response_id", id),
			slog.String("error", err.Error()))
	}
}
