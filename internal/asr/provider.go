// Package asr defines the interface to the external speech recognizer and
// manages its time-boxed access credential. The recognizer turns captured
// utterances into transcripts; finals feed the hot-word detector and the
// transcript view. Recognition failures degrade ASR only, never the session.
package asr

import "context"

// Transcript is one recognition result.
type Transcript struct {
	// Text is the recognized speech.
	Text string

	// IsFinal marks an authoritative result. Partials may be revised.
	IsFinal bool

	// Confidence is the recognizer's score (0.0-1.0), zero when unreported.
	Confidence float64
}

// Session is an open streaming recognition session. Callers must Close the
// session when done; all methods are safe for concurrent use.
type Session interface {
	// SendAudio delivers a chunk of raw PCM bytes for recognition. Returns
	// an error after Close.
	SendAudio(chunk []byte) error

	// Partials emits interim results, for display only. Best effort: a
	// session may drop partials nobody is reading. Closed when the
	// session ends.
	Partials() <-chan Transcript

	// Finals emits committed results. Closed when the session ends.
	Finals() <-chan Transcript

	// Close ends the session, flushes pending audio and releases the
	// connection. Safe to call more than once.
	Close() error
}

// Recognizer opens streaming recognition sessions.
type Recognizer interface {
	StartSession(ctx context.Context) (Session, error)
}
