// Package capture defines the boundary to the raw media capture collaborators:
// the microphone and the scene camera.
//
// A [Source] produces a lazy, infinite, non-restartable sequence of frames
// into a [frame.Queue] owned by the application. Acquisition details (device
// selection, encoding, permissions) belong to the implementation; the
// application only starts, pauses, resumes, and stops the flow.
//
// Pausing exists for one reason: the playback scheduler pauses audio capture
// while a voice clip plays so the device does not hear — and re-upload — its
// own reply.
//
// This package lives under pkg/ because platform-specific capture adapters
// are expected to implement [Source] outside this repository.
package capture

import "context"

// Source is a start/stoppable producer of captured media frames.
//
// Implementations must be safe for concurrent use; Pause and Resume are
// called from the playback goroutine while the capture goroutine is running.
type Source interface {
	// Start begins capturing. Frames are pushed into the queue supplied at
	// construction until Stop is called or ctx is cancelled. Calling Start
	// again after Stop is undefined; sources are not restartable.
	Start(ctx context.Context) error

	// Pause suspends frame production without releasing the device.
	// Safe to call when already paused.
	Pause()

	// Resume restarts frame production after a Pause.
	// Safe to call when not paused.
	Resume()

	// Stop releases the device and permanently ends frame production.
	// Safe to call more than once.
	Stop() error
}
