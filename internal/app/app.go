// Package app wires all Halo subsystems into a running client.
//
// The App struct owns the full lifecycle: New creates and connects the
// session state, queues, loops and diagnostics server; Run supervises the
// loops until the context ends; Shutdown tears the rest down in order.
//
// For testing, inject doubles via the Providers struct and functional
// options. When an option is not provided, New creates real implementations
// from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/voxhalo/halo/internal/api"
	"github.com/voxhalo/halo/internal/asr"
	"github.com/voxhalo/halo/internal/asr/nls"
	"github.com/voxhalo/halo/internal/config"
	"github.com/voxhalo/halo/internal/health"
	"github.com/voxhalo/halo/internal/hotword"
	"github.com/voxhalo/halo/internal/playback"
	"github.com/voxhalo/halo/internal/session"
	"github.com/voxhalo/halo/internal/stream"
	"github.com/voxhalo/halo/internal/telemetry"
	"github.com/voxhalo/halo/internal/ui"
	"github.com/voxhalo/halo/internal/uploader"
	"github.com/voxhalo/halo/pkg/audio"
	"github.com/voxhalo/halo/pkg/capture"
	"github.com/voxhalo/halo/pkg/frame"
	"github.com/voxhalo/halo/pkg/player"
)

// monitorWindow is the latency monitor's per-stage sample window.
const monitorWindow = 256

// asrRestartDelay paces recognizer session restarts after a failure.
const asrRestartDelay = 2 * time.Second

// Providers holds the platform adapters. Nil fields disable that
// capability: a nil Player plays clips silently, nil capture sources mean
// no frames are produced, a nil Recognizer disables hot-word interrupts by
// voice.
type Providers struct {
	Player     player.Player
	Microphone capture.Source
	Camera     capture.Source
	Recognizer asr.Recognizer
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	state      *session.State
	client     *api.Client
	transcript *ui.Transcript

	audioQ *frame.Queue[frame.Frame]
	imageQ *frame.Queue[frame.Frame]
	asrQ   *frame.Queue[frame.Frame]
	clipQ  *frame.Queue[playback.Clip]

	monitor *telemetry.Monitor
	metrics *telemetry.Metrics

	uploader    *uploader.Uploader
	consumer    *stream.Consumer
	scheduler   *playback.Scheduler
	interruptor *session.Interruptor
	detector    *hotword.Detector
	tokens      *asr.TokenManager

	httpSrv *http.Server

	// closers run in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithQueues injects pre-built capture queues so platform sources can be
// bound to them before New runs.
func WithQueues(audio, image *frame.Queue[frame.Frame]) Option {
	return func(a *App) {
		a.audioQ = audio
		a.imageQ = image
	}
}

// WithASRQueue injects the queue feeding the recognizer session.
func WithASRQueue(q *frame.Queue[frame.Frame]) Option {
	return func(a *App) { a.asrQ = q }
}

// WithAPIClient injects an API client instead of building one from config.
func WithAPIClient(c *api.Client) Option {
	return func(a *App) { a.client = c }
}

// WithMonitor injects a latency monitor.
func WithMonitor(m *telemetry.Monitor) Option {
	return func(a *App) { a.monitor = m }
}

// WithMetrics injects pre-built metric instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New wires the client together. providers may be nil when every platform
// capability is absent, as in tests.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	a.state = session.NewState(cfg.UID, cfg.Server)
	a.transcript = ui.NewTranscript()

	if a.audioQ == nil {
		a.audioQ = frame.NewQueue[frame.Frame]()
	}
	if a.imageQ == nil {
		a.imageQ = frame.NewQueue[frame.Frame]()
	}
	a.clipQ = frame.NewQueue[playback.Clip]()

	if a.monitor == nil {
		a.monitor = telemetry.NewMonitor(monitorWindow)
	}
	if a.metrics == nil {
		m, err := telemetry.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("app: init metrics: %w", err)
		}
		a.metrics = m
	}

	if a.client == nil {
		a.client = api.NewClient(a.state.ServerURL)
	}

	if a.providers.Player == nil {
		slog.Warn("no playback adapter attached, voice replies are discarded")
		a.providers.Player = player.Discard{}
	}

	// ── Playback ─────────────────────────────────────────────────────────
	var pausers []playback.Pauser
	if a.providers.Microphone != nil {
		pausers = append(pausers, a.providers.Microphone)
	}
	a.scheduler = playback.NewScheduler(playback.SchedulerConfig{
		Queue:   a.clipQ,
		Player:  a.providers.Player,
		Banned:  a.state.Banned,
		Capture: pausers,
		Monitor: a.monitor,
		Metrics: a.metrics,
	})

	// ── Interrupt path ───────────────────────────────────────────────────
	a.interruptor = session.NewInterruptor(session.InterruptorConfig{
		State:        a.state,
		Notifier:     a.client,
		StopPlayback: a.scheduler.Stop,
		ClearQueue:   a.scheduler.ClearQueue,
		Rearm:        func() { a.detector.Arm() },
		Monitor:      a.monitor,
		Metrics:      a.metrics,
	})
	matcher := hotword.NewMatcher(cfg.Hotword.Keywords,
		hotword.WithPhoneticThreshold(cfg.Hotword.PhoneticThreshold),
		hotword.WithFuzzyThreshold(cfg.Hotword.FuzzyThreshold),
	)
	a.detector = hotword.NewDetector(matcher, func(string) {
		a.interruptor.Interrupt(context.Background())
	}, nil)

	// ── Stream + uploader ────────────────────────────────────────────────
	a.consumer = stream.NewConsumer(stream.ConsumerConfig{
		Client:  a.client,
		State:   a.state,
		Queue:   a.clipQ,
		Sink:    a.transcript,
		Backoff: cfg.Stream.Backoff,
		Monitor: a.monitor,
		Metrics: a.metrics,
	})
	a.uploader = uploader.New(uploader.Config{
		Client:     a.client,
		State:      a.state,
		Audio:      a.audioQ,
		Image:      a.imageQ,
		Interval:   cfg.Upload.Interval,
		StagingDir: cfg.Upload.StagingDir,
		Monitor:    a.monitor,
		Metrics:    a.metrics,
	})

	// ── Recognizer ───────────────────────────────────────────────────────
	if cfg.ASR.Enabled {
		a.tokens = asr.NewTokenManager(a.client, cfg.ASR.RefreshMargin, nil)
		if a.providers.Recognizer == nil {
			rec, err := nls.New(cfg.ASR.Endpoint, a.tokens,
				nls.WithSampleRate(cfg.ASR.SampleRate))
			if err != nil {
				return nil, fmt.Errorf("app: init recognizer: %w", err)
			}
			a.providers.Recognizer = rec
		}
		if a.asrQ == nil {
			a.asrQ = frame.NewQueue[frame.Frame]()
		}
	}

	a.initDiagnostics()

	a.closers = append(a.closers,
		func() error { a.clipQ.Close(); return nil },
		func() error { a.audioQ.Close(); return nil },
		func() error { a.imageQ.Close(); return nil },
	)
	if a.asrQ != nil {
		a.closers = append(a.closers, func() error { a.asrQ.Close(); return nil })
	}

	return a, nil
}

func (a *App) initDiagnostics() {
	if a.cfg.Diagnostics.ListenAddr == "" {
		return
	}
	checkers := []health.Checker{
		{Name: "stream", Check: func(context.Context) error {
			if !a.consumer.Connected() {
				return errors.New("response stream disconnected")
			}
			return nil
		}},
	}
	if a.tokens != nil {
		checkers = append(checkers, health.Checker{
			Name: "token",
			Check: func(context.Context) error {
				if !a.tokens.Fresh() {
					return errors.New("recognizer token missing or due for refresh")
				}
				return nil
			},
		})
	}
	mux := http.NewServeMux()
	health.New(a.monitor, checkers...).Register(mux)
	a.httpSrv = &http.Server{
		Addr:              a.cfg.Diagnostics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// State exposes the session record for runtime uid/server switching.
func (a *App) State() *session.State { return a.state }

// Transcript exposes the conversation log for display.
func (a *App) Transcript() *ui.Transcript { return a.transcript }

// Interrupt triggers the barge-in sequence, as if the hot-word had fired.
func (a *App) Interrupt(ctx context.Context) { a.interruptor.Interrupt(ctx) }

// Run starts every loop and blocks until ctx is cancelled or a loop fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.providers.Microphone != nil {
		if err := a.providers.Microphone.Start(ctx); err != nil {
			return fmt.Errorf("app: start microphone: %w", err)
		}
		a.closers = append(a.closers, a.providers.Microphone.Stop)
	}
	if a.providers.Camera != nil {
		if err := a.providers.Camera.Start(ctx); err != nil {
			return fmt.Errorf("app: start camera: %w", err)
		}
		a.closers = append(a.closers, a.providers.Camera.Stop)
	}

	g.Go(func() error { return a.uploader.Run(ctx) })
	g.Go(func() error { return a.consumer.Run(ctx) })
	g.Go(func() error { return a.scheduler.Run(ctx) })
	if a.tokens != nil {
		g.Go(func() error { return a.tokens.Run(ctx) })
	}
	if a.providers.Recognizer != nil {
		g.Go(func() error { return a.recognizeLoop(ctx) })
	}
	if a.httpSrv != nil {
		g.Go(func() error {
			err := a.httpSrv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("app: diagnostics server: %w", err)
		})
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.httpSrv.Shutdown(shutCtx)
		})
	}

	return g.Wait()
}

// recognizeLoop keeps one recognizer session open: captured utterance frames
// go in, final transcripts feed the hot-word detector. Session failures are
// retried; recognition is never allowed to take the client down.
func (a *App) recognizeLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := a.recognizeOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("recognizer session failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(asrRestartDelay):
		}
	}
}

func (a *App) recognizeOnce(ctx context.Context) error {
	sess, err := a.providers.Recognizer.StartSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	conv := &audio.Converter{
		Source: audio.Format{
			SampleRate: a.cfg.Capture.SampleRate,
			Channels:   a.cfg.Capture.Channels,
		},
		Target: audio.Format{SampleRate: a.cfg.ASR.SampleRate, Channels: 1},
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			fr, err := a.asrQ.Pop(ctx)
			if err != nil {
				if errors.Is(err, frame.ErrClosed) || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			pcm := conv.Convert(fr.Data)
			if len(pcm) == 0 {
				continue
			}
			if err := sess.SendAudio(pcm); err != nil {
				return err
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case t, ok := <-sess.Finals():
				if !ok {
					return errors.New("recognizer closed the session")
				}
				if t.Text != "" {
					a.detector.OnTranscript(t.Text)
					a.transcript.State("asr: " + t.Text)
				}
			}
		}
	})
	return g.Wait()
}

// Shutdown runs the closers in order. It respects the context deadline:
// remaining closers are skipped once ctx expires.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
