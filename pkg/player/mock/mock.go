// Package mock provides an in-memory mock implementation of [player.Player]
// for use in unit tests.
//
// The mock records every Play and Stop call so tests can assert on order and
// arguments, and it exposes exported fields controlling how long each clip
// "plays" and what error Play returns.
//
// Typical usage:
//
//	p := &mock.Player{PlayDuration: 10 * time.Millisecond}
//	sched := playback.NewScheduler(playback.SchedulerConfig{Player: p, ...})
//	...
//	if got := p.Played(); len(got) != 1 || got[0] != "http://x/a.wav" {
//	    t.Errorf("unexpected plays: %v", got)
//	}
package mock

import (
	"context"
	"sync"
	"time"
)

// Player is a mock implementation of [player.Player].
// Set the exported fields before use; inspect recorded calls after.
type Player struct {
	mu sync.Mutex

	// PlayDuration is how long each Play call blocks when neither Stop nor
	// context cancellation ends it first. Zero means Play returns immediately.
	PlayDuration time.Duration

	// PlayError is returned by Play after the clip finishes. Stopped clips
	// always return nil, mirroring the real contract.
	PlayError error

	// BlockUntilStopped makes Play block until Stop is called or the context
	// is cancelled, ignoring PlayDuration. Useful for interrupt tests.
	BlockUntilStopped bool

	playedRefs []string
	stopCalls  int
	playing    bool
	stopCh     chan struct{}
}

// Play records ref and blocks per the configured behaviour.
func (p *Player) Play(ctx context.Context, ref string) error {
	p.mu.Lock()
	p.playedRefs = append(p.playedRefs, ref)
	p.playing = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	if p.BlockUntilStopped {
		select {
		case <-stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if p.PlayDuration > 0 {
		select {
		case <-stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.PlayDuration):
		}
	}
	return p.PlayError
}

// Stop unblocks a pending Play call and increments the stop counter.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopCalls++
	if p.playing && p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
}

// IsPlaying reports whether a mock clip is currently "playing".
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Played returns a copy of the clip refs passed to Play, in call order.
func (p *Player) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.playedRefs))
	copy(out, p.playedRefs)
	return out
}

// StopCalls returns how many times Stop was called.
func (p *Player) StopCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCalls
}
