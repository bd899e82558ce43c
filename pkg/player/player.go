// Package player defines the playback-engine boundary for Halo.
//
// The playback scheduler drives exactly one implementation of [Player] at a
// time: it plays synthesized voice clips strictly in queue order, one at a
// time, and must be able to cut a clip short the instant the user interrupts.
//
// This package lives under pkg/ because platform-specific playback adapters
// (Android media player bridge, desktop audio sink, …) are expected to
// implement [Player] outside this repository.
package player

import "context"

// Player plays one voice clip at a time.
//
// Implementations must be safe for concurrent use: Stop and IsPlaying may be
// called from a different goroutine while Play is blocked.
type Player interface {
	// Play fetches and plays the clip identified by ref (a URL or local
	// path), blocking until playback finishes naturally, Stop is called, or
	// ctx is cancelled. A stopped clip is not an error: Play returns nil.
	//
	// After Play returns — for any reason — the player must be ready to
	// accept the next Play call.
	Play(ctx context.Context, ref string) error

	// Stop cuts the current clip immediately. It must never panic, must be
	// safe to call when nothing is playing, and must not block on playback
	// teardown.
	Stop()

	// IsPlaying reports whether a clip is currently being played.
	IsPlaying() bool
}

// Discard is a Player that consumes clips without producing audio. It stands
// in when no platform playback adapter is attached, keeping the scheduler
// and interrupt path fully functional.
type Discard struct{}

func (Discard) Play(context.Context, string) error { return nil }

func (Discard) Stop() {}

func (Discard) IsPlaying() bool { return false }

var _ Player = Discard{}
