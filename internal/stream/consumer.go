package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/voxhalo/halo/internal/api"
	"github.com/voxhalo/halo/internal/playback"
	"github.com/voxhalo/halo/internal/session"
	"github.com/voxhalo/halo/internal/telemetry"
	"github.com/voxhalo/halo/pkg/frame"
)

// maxLineSize bounds a single stream line. Replies are chunked by the server;
// a line past this size is a protocol violation, not a longer reply.
const maxLineSize = 1 << 20

// processingTimer names the [UNDER_PROCESSING] → first-content latency timer.
const processingTimer = "processing"

// Client is the slice of the API client the consumer needs.
type Client interface {
	FetchOpening(ctx context.Context, uid string, isFirst bool) (*api.Opening, error)
	OpenStream(ctx context.Context, uid string) (io.ReadCloser, error)
}

// Sink receives display text decoded from the stream. Implemented by the
// transcript view.
type Sink interface {
	// Response appends a chunk of the agent's spoken reply.
	Response(text string)
	// UserEcho shows the user's own transcribed words.
	UserEcho(text string)
	// State shows a transient status line such as [UNDER_PROCESSING].
	State(text string)
}

// ConsumerConfig wires a [Consumer].
type ConsumerConfig struct {
	Client Client
	State  *session.State
	Queue  *frame.Queue[playback.Clip]
	Sink   Sink

	// Backoff is the fixed delay between reconnect attempts. Defaults to 1s.
	Backoff time.Duration

	Timers  *telemetry.TimerSet
	Monitor *telemetry.Monitor
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Consumer owns the response stream connection. Run one per session; line
// processing is strictly sequential.
type Consumer struct {
	client Client
	state  *session.State
	queue  *frame.Queue[playback.Clip]
	sink   Sink

	backoff time.Duration

	timers  *telemetry.TimerSet
	monitor *telemetry.Monitor
	metrics *telemetry.Metrics
	log     *slog.Logger

	connected atomic.Bool

	// Per-turn packet counters, touched only by the read loop.
	pkgCount int
	firstPkg time.Time
}

// NewConsumer builds a Consumer. Client, State, Queue and Sink are required.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Timers == nil {
		cfg.Timers = telemetry.NewTimerSet()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Consumer{
		client:  cfg.Client,
		state:   cfg.State,
		queue:   cfg.Queue,
		sink:    cfg.Sink,
		backoff: cfg.Backoff,
		timers:  cfg.Timers,
		monitor: cfg.Monitor,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}
}

// Run connects and reads the stream until ctx is cancelled, reconnecting
// after a fixed backoff on every failure or stream end. A reconnect request
// (uid or server switch) cancels the live connection at once and skips the
// backoff so the new session starts immediately.
func (c *Consumer) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil
		}

		if c.state.FirstTurn() {
			c.fetchOpening(ctx)
		}

		requested, err := c.consumeOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !requested {
			c.log.Warn("response stream dropped",
				slog.String("uid", c.state.UID()),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
		}
		if c.metrics != nil {
			c.metrics.StreamReconnects.Add(ctx, 1)
		}
		if c.monitor != nil {
			c.monitor.IncrReconnects()
		}

		if requested {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-c.state.ReconnectRequests():
		case <-time.After(c.backoff):
		}
	}
}

// Connected reports whether a stream connection is currently open. Used by
// the readiness probe.
func (c *Consumer) Connected() bool {
	return c.connected.Load()
}

// consumeOnce runs one connect-and-read pass. It reports whether the pass
// ended because a reconnect was requested rather than by a stream failure.
func (c *Consumer) consumeOnce(ctx context.Context) (requested bool, err error) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var cut atomic.Bool
	go func() {
		select {
		case <-c.state.ReconnectRequests():
			cut.Store(true)
			cancel()
		case <-connCtx.Done():
		}
	}()

	body, err := c.client.OpenStream(connCtx, c.state.UID())
	if err != nil {
		return cut.Load(), err
	}
	defer body.Close()

	c.connected.Store(true)
	defer c.connected.Store(false)

	c.resetPacketCounters()

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		c.handleLine(connCtx, line)
	}
	if err := sc.Err(); err != nil {
		return cut.Load(), err
	}
	return cut.Load(), errors.New("stream: connection closed by server")
}

// handleLine processes one stream line in arrival order.
func (c *Consumer) handleLine(ctx context.Context, line []byte) {
	msg, err := Decode(line)
	if err != nil {
		c.log.Warn("skipping malformed stream line", slog.String("error", err.Error()))
		c.countLine(ctx, "malformed")
		return
	}
	if !msg.OK {
		c.countLine(ctx, "ignored")
		return
	}

	if msg.ResponseID != "" {
		c.state.SetCurrentResponseID(msg.ResponseID)
		if c.state.Banned(msg.ResponseID) {
			// Stale chunk of an interrupted reply. Consumed, never surfaced.
			c.countLine(ctx, "banned")
			return
		}
	}

	switch ev := Classify(msg).(type) {
	case Command:
		c.countLine(ctx, "command")
		c.handleCommand(ctx, ev)
	case UserEcho:
		c.countLine(ctx, "user_echo")
		if ev.Text != "" {
			c.sink.UserEcho(ev.Text)
		}
	case Content:
		c.countLine(ctx, "content")
		c.handleContent(ctx, msg.ResponseID, ev)
	}

	c.forwardExtra(ctx, msg.Extra)
}

func (c *Consumer) handleCommand(ctx context.Context, cmd Command) {
	// Every command marks a turn boundary: the next content chunk seeds a
	// fresh latency baseline instead of folding inter-turn silence into
	// the packet gap average.
	c.resetPacketCounters()

	switch cmd.Kind {
	case CommandInterrupt:
		dropped := c.queue.Clear()
		if c.metrics != nil && dropped > 0 {
			c.metrics.QueueDepth.Add(ctx, -int64(dropped))
			c.metrics.ClipsDropped.Add(ctx, int64(dropped), telemetry.WithDropReason("interrupt"))
		}
		c.log.Info("server interrupt command", slog.Int("clips_dropped", dropped))
	case CommandUnderProcessing:
		c.timers.Start(processingTimer)
		c.sink.State(cmd.Raw)
	default:
		c.sink.State(cmd.Raw)
	}
}

func (c *Consumer) handleContent(ctx context.Context, responseID string, ev Content) {
	if ev.Text != "" {
		c.sink.Response(ev.Text)
	}

	if d := c.timers.Stop(processingTimer); d != telemetry.NoTimer {
		if c.monitor != nil {
			c.monitor.RecordProcessing(d)
		}
		if c.metrics != nil {
			c.metrics.ProcessingDuration.Record(ctx, d.Seconds())
		}
	}

	c.recordPacketGap(ctx)

	if ev.VoiceURL != "" {
		clip := playback.Clip{ResponseID: responseID, VoiceURL: ev.VoiceURL}
		if err := c.queue.Push(clip); err != nil {
			c.log.Warn("dropping voice clip, queue closed",
				slog.String("voice_url", ev.VoiceURL))
			return
		}
		if c.metrics != nil {
			c.metrics.QueueDepth.Add(ctx, 1)
		}
	}
}

// recordPacketGap updates the rolling per-packet arrival latency: the first
// content chunk after connect or an interrupt seeds the baseline, each later
// chunk reports the average gap since that baseline.
func (c *Consumer) recordPacketGap(ctx context.Context) {
	now := time.Now()
	if c.pkgCount == 0 {
		c.firstPkg = now
		c.pkgCount = 1
		return
	}
	c.pkgCount++
	gap := now.Sub(c.firstPkg) / time.Duration(c.pkgCount)
	if c.monitor != nil {
		c.monitor.RecordPacketGap(gap)
	}
	if c.metrics != nil {
		c.metrics.PacketGap.Record(ctx, gap.Seconds())
	}
}

func (c *Consumer) resetPacketCounters() {
	c.pkgCount = 0
	c.firstPkg = time.Time{}
}

// forwardExtra passes server-reported stage delays through, key by key. The
// key set is server-defined and open; values that do not parse as seconds
// still land in the monitor snapshot as raw strings.
func (c *Consumer) forwardExtra(ctx context.Context, extra map[string]string) {
	for k, v := range extra {
		if c.monitor != nil {
			c.monitor.SetExtra(k, v)
		}
		if c.metrics != nil {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.metrics.StageDelay.Record(ctx, f, telemetry.WithStage(k))
			}
		}
	}
}

// fetchOpening pulls the one-shot opening turn before the stream session
// starts. Failures leave the first-turn flag set so the next pass retries.
func (c *Consumer) fetchOpening(ctx context.Context) {
	op, err := c.client.FetchOpening(ctx, c.state.UID(), true)
	if err != nil {
		if errors.Is(err, api.ErrNotReady) {
			c.log.Debug("opening turn not ready yet")
		} else {
			c.log.Warn("opening turn fetch failed", slog.String("error", err.Error()))
		}
		return
	}
	c.state.MarkOpeningReceived()

	ev := Classify(Message{Text: op.Text, VoiceURL: op.VoiceURL})
	switch ev := ev.(type) {
	case Command:
		c.handleCommand(ctx, ev)
	case UserEcho:
		if ev.Text != "" {
			c.sink.UserEcho(ev.Text)
		}
	case Content:
		// The opening turn carries no response identity.
		c.handleContent(ctx, session.NoResponse, ev)
	}
}

func (c *Consumer) countLine(ctx context.Context, kind string) {
	if c.metrics != nil {
		c.metrics.StreamLines.Add(ctx, 1, telemetry.WithLineKind(kind))
	}
}
