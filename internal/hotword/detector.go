package hotword

import (
	"log/slog"
	"sync/atomic"
)

// Detector feeds final transcripts through a [Matcher] and fires the
// interrupt callback when armed. It disarms itself on every trigger; the
// interrupt coordinator re-arms it once the barge-in completes, so a single
// utterance cannot fire twice.
type Detector struct {
	matcher *Matcher
	onMatch func(keyword string)
	armed   atomic.Bool
	log     *slog.Logger
}

// NewDetector builds an armed Detector. onMatch is invoked synchronously
// from OnTranscript with the keyword that fired.
func NewDetector(matcher *Matcher, onMatch func(keyword string), logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		matcher: matcher,
		onMatch: onMatch,
		log:     logger,
	}
	d.armed.Store(true)
	return d
}

// OnTranscript tests one finalized transcript. Transcripts arriving while
// disarmed are dropped, keeping detection quiet during an in-flight
// interrupt.
func (d *Detector) OnTranscript(text string) {
	if !d.armed.Load() {
		return
	}
	kw, ok := d.matcher.Match(text)
	if !ok {
		return
	}
	// Disarm before firing so a rapid transcript burst triggers once.
	if !d.armed.CompareAndSwap(true, false) {
		return
	}
	d.log.Info("hot-word detected", slog.String("keyword", kw))
	d.onMatch(kw)
}

// Arm re-enables detection.
func (d *Detector) Arm() {
	d.armed.Store(true)
}

// Disarm suspends detection.
func (d *Detector) Disarm() {
	d.armed.Store(false)
}

// Armed reports whether detection is active.
func (d *Detector) Armed() bool {
	return d.armed.Load()
}
