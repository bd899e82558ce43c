package frame

import "time"

// Frame is a single captured media buffer flowing from a capture source to
// the uploader: one chunk of raw PCM audio or one encoded scene image.
// A frame is consumed by exactly one upload attempt and then discarded,
// whether or not the upload succeeded.
type Frame struct {
	// Data is the raw frame payload (PCM bytes or JPEG bytes).
	Data []byte

	// CapturedAt marks when the frame was captured.
	CapturedAt time.Time
}
