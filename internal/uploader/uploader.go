// Package uploader ships captured frames to the server as a periodic
// heartbeat. Each tick drains at most one audio and one image frame, stages
// them on disk and fires an asynchronous multipart upload; the tick loop
// never waits on the network. Staging files are removed after every attempt
// so storage cannot grow without bound.
package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voxhalo/halo/internal/session"
	"github.com/voxhalo/halo/internal/telemetry"
	"github.com/voxhalo/halo/pkg/frame"
)

// Staging file name patterns. The startup sweep matches on these prefixes.
const (
	voicePattern = "halo-voice-*.pcm"
	scenePattern = "halo-scene-*.jpg"
	stagePrefix  = "halo-"
)

// Client is the slice of the API client the uploader needs.
type Client interface {
	Heartbeat(ctx context.Context, uid string, voicePath, scenePath string) error
}

// Config wires an [Uploader].
type Config struct {
	Client Client
	State  *session.State

	// Audio and Image are the capture queues. Either may be nil when that
	// modality is disabled.
	Audio *frame.Queue[frame.Frame]
	Image *frame.Queue[frame.Frame]

	// Interval is the heartbeat tick period. Defaults to 100ms.
	Interval time.Duration

	// StagingDir is where frames are written before upload. Defaults to the
	// OS temp directory.
	StagingDir string

	Monitor *telemetry.Monitor
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Uploader is the heartbeat loop. Run one per session.
type Uploader struct {
	client Client
	state  *session.State
	audio  *frame.Queue[frame.Frame]
	image  *frame.Queue[frame.Frame]

	interval   time.Duration
	stagingDir string

	monitor *telemetry.Monitor
	metrics *telemetry.Metrics
	log     *slog.Logger
}

// New builds an Uploader. Client and State are required.
func New(cfg Config) *Uploader {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Uploader{
		client:     cfg.Client,
		state:      cfg.State,
		audio:      cfg.Audio,
		image:      cfg.Image,
		interval:   cfg.Interval,
		stagingDir: cfg.StagingDir,
		monitor:    cfg.Monitor,
		metrics:    cfg.Metrics,
		log:        cfg.Logger,
	}
}

// Run ticks until ctx is cancelled. Upload failures are logged and counted,
// never surfaced; the heartbeat is best effort.
func (u *Uploader) Run(ctx context.Context) error {
	u.sweepStaging()

	t := time.NewTicker(u.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			u.tick(ctx)
		}
	}
}

// tick stages at most one frame per modality and uploads them in the
// background. Absence of one modality never blocks the other.
func (u *Uploader) tick(ctx context.Context) {
	voicePath := u.stage(u.audio, voicePattern)
	scenePath := u.stage(u.image, scenePattern)
	if voicePath == "" && scenePath == "" {
		return
	}
	go u.upload(ctx, voicePath, scenePath)
}

// stage pops one frame and writes it to a staging file, returning the path
// or "" when no frame was available or staging failed. A failed staging
// attempt drops the frame; the next capture replaces it.
func (u *Uploader) stage(q *frame.Queue[frame.Frame], pattern string) string {
	if q == nil {
		return ""
	}
	fr, ok := q.TryPop()
	if !ok {
		return ""
	}

	f, err := os.CreateTemp(u.stagingDir, pattern)
	if err != nil {
		u.log.Warn("staging file creation failed", slog.String("error", err.Error()))
		return ""
	}
	_, werr := f.Write(fr.Data)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(f.Name())
		u.log.Warn("staging file write failed",
			slog.String("path", f.Name()),
			slog.String("error", fmt.Sprintf("%v", firstErr(werr, cerr))))
		return ""
	}
	return f.Name()
}

// upload performs one heartbeat attempt and always removes the staging
// files afterwards.
func (u *Uploader) upload(ctx context.Context, voicePath, scenePath string) {
	defer func() {
		if voicePath != "" {
			os.Remove(voicePath)
		}
		if scenePath != "" {
			os.Remove(scenePath)
		}
	}()

	start := time.Now()
	err := u.client.Heartbeat(ctx, u.state.UID(), voicePath, scenePath)
	if err != nil {
		if ctx.Err() == nil {
			u.log.Warn("heartbeat upload failed", slog.String("error", err.Error()))
		}
		if u.metrics != nil {
			u.metrics.UploadErrors.Add(ctx, 1)
		}
		return
	}

	elapsed := time.Since(start)
	if u.monitor != nil {
		u.monitor.RecordUpload(elapsed)
	}
	if u.metrics != nil {
		if voicePath != "" {
			u.metrics.UploadDuration.Record(ctx, elapsed.Seconds(), telemetry.WithMedia("audio"))
		}
		if scenePath != "" {
			u.metrics.UploadDuration.Record(ctx, elapsed.Seconds(), telemetry.WithMedia("image"))
		}
	}
}

// sweepStaging removes staging files left behind by a previous run.
func (u *Uploader) sweepStaging() {
	entries, err := os.ReadDir(u.stagingDir)
	if err != nil {
		u.log.Warn("staging sweep failed", slog.String("error", err.Error()))
		return
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), stagePrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(u.stagingDir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		u.log.Info("swept stale staging files", slog.Int("removed", removed))
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
