package telemetry

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Monitor collects session latency samples and server-reported statistics
// for diagnostics display. It maintains a bounded ring buffer of recent
// observations per stage, from which percentiles are computed on demand,
// plus the most recent value of every server-defined extra key.
//
// Thread-safe for concurrent use.
type Monitor struct {
	mu sync.Mutex

	upload     latencyBuffer
	packetGap  latencyBuffer
	processing latencyBuffer
	playback   latencyBuffer

	// extra holds the last reported value per server-defined key
	// (asr_delay, prompt_delay, gpt_delay, tts_delay, ...). The key set is
	// open; unknown keys are stored, never rejected.
	extra map[string]string

	interrupts int64
	reconnects int64
}

// NewMonitor creates a Monitor with the given window size (maximum number of
// latency samples retained per stage).
func NewMonitor(windowSize int) *Monitor {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &Monitor{
		upload:     newLatencyBuffer(windowSize),
		packetGap:  newLatencyBuffer(windowSize),
		processing: newLatencyBuffer(windowSize),
		playback:   newLatencyBuffer(windowSize),
		extra:      make(map[string]string),
	}
}

// RecordUpload records a heartbeat upload round-trip latency sample.
func (m *Monitor) RecordUpload(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upload.add(d)
}

// RecordPacketGap records an averaged stream packet-gap sample.
func (m *Monitor) RecordPacketGap(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packetGap.add(d)
}

// RecordProcessing records a server-processing latency sample.
func (m *Monitor) RecordProcessing(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processing.add(d)
}

// RecordPlayback records a voice clip playback duration sample.
func (m *Monitor) RecordPlayback(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playback.add(d)
}

// SetExtra stores the latest value for a server-defined statistics key.
func (m *Monitor) SetExtra(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extra[key] = value
}

// IncrInterrupts increments the interrupt counter.
func (m *Monitor) IncrInterrupts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interrupts++
}

// IncrReconnects increments the stream reconnect counter.
func (m *Monitor) IncrReconnects() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}

// LatencyPercentiles holds p50 and p95 values for a latency stage.
type LatencyPercentiles struct {
	P50 time.Duration
	P95 time.Duration
}

// Snapshot captures a point-in-time view of all session statistics.
type Snapshot struct {
	Upload     LatencyPercentiles
	PacketGap  LatencyPercentiles
	Processing LatencyPercentiles
	Playback   LatencyPercentiles
	Extra      map[string]string
	Interrupts int64
	Reconnects int64
}

// Snapshot returns a point-in-time view of all session statistics.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	extra := make(map[string]string, len(m.extra))
	for k, v := range m.extra {
		extra[k] = v
	}

	return Snapshot{
		Upload:     m.upload.percentiles(),
		PacketGap:  m.packetGap.percentiles(),
		Processing: m.processing.percentiles(),
		Playback:   m.playback.percentiles(),
		Extra:      extra,
		Interrupts: m.interrupts,
		Reconnects: m.reconnects,
	}
}

// latencyBuffer is a bounded ring buffer of duration samples.
type latencyBuffer struct {
	data []time.Duration
	size int
	pos  int
	full bool
}

func newLatencyBuffer(size int) latencyBuffer {
	return latencyBuffer{
		data: make([]time.Duration, size),
		size: size,
	}
}

func (lb *latencyBuffer) add(d time.Duration) {
	lb.data[lb.pos] = d
	lb.pos++
	if lb.pos >= lb.size {
		lb.pos = 0
		lb.full = true
	}
}

func (lb *latencyBuffer) percentiles() LatencyPercentiles {
	n := lb.pos
	if lb.full {
		n = lb.size
	}
	if n == 0 {
		return LatencyPercentiles{}
	}

	sorted := make([]time.Duration, n)
	if lb.full {
		copy(sorted, lb.data)
	} else {
		copy(sorted, lb.data[:n])
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return LatencyPercentiles{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
	}
}

// percentile returns the value at the given percentile (0.0-1.0) from a
// sorted slice of durations using nearest-rank.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
