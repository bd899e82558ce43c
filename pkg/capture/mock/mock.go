// Package mock provides an in-memory mock implementation of [capture.Source]
// for use in unit tests. It records lifecycle calls and optionally feeds
// canned frames into a queue on Start.
package mock

import (
	"context"
	"sync"

	"github.com/voxhalo/halo/pkg/frame"
)

// Source is a mock implementation of [capture.Source].
// Set the exported fields before use; inspect the call counters after.
type Source struct {
	mu sync.Mutex

	// Queue receives the canned Frames on Start when non-nil.
	Queue *frame.Queue[frame.Frame]

	// Frames are pushed into Queue, in order, when Start is called.
	Frames []frame.Frame

	// StartError is returned by Start.
	StartError error

	// StopError is returned by Stop.
	StopError error

	startCalls  int
	pauseCalls  int
	resumeCalls int
	stopCalls   int
	paused      bool
}

// Start pushes the canned frames and records the call.
func (s *Source) Start(_ context.Context) error {
	s.mu.Lock()
	s.startCalls++
	err := s.StartError
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.Queue != nil {
		for _, f := range s.Frames {
			_ = s.Queue.Push(f)
		}
	}
	return nil
}

// Pause records the call and marks the source paused.
func (s *Source) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseCalls++
	s.paused = true
}

// Resume records the call and marks the source unpaused.
func (s *Source) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumeCalls++
	s.paused = false
}

// Stop records the call.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	return s.StopError
}

// Paused reports whether the source is currently paused.
func (s *Source) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// StartCalls returns how many times Start was called.
func (s *Source) StartCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startCalls
}

// PauseCalls returns how many times Pause was called.
func (s *Source) PauseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseCalls
}

// ResumeCalls returns how many times Resume was called.
func (s *Source) ResumeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeCalls
}

// StopCalls returns how many times Stop was called.
func (s *Source) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}
