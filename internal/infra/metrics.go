package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	quotesFetched    atomic.Uint64
	fetchErrors      atomic.Uint64
	samplesCommitted atomic.Uint64
	advanceFailures  atomic.Uint64
	streamReconnects atomic.Uint64

	// Gauges
	streamConnected atomic.Int32 // 1 = connected, 0 = disconnected
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordQuoteFetched records a successful external quote fetch.
func (m *Metrics) RecordQuoteFetched() {
	m.quotesFetched.Add(1)
}

// RecordFetchError records a failed external fetch attempt.
func (m *Metrics) RecordFetchError() {
	m.fetchErrors.Add(1)
}

// RecordSampleCommitted records a committed series sample.
func (m *Metrics) RecordSampleCommitted() {
	m.samplesCommitted.Add(1)
}

// RecordAdvanceFailure records a failed engine tick.
func (m *Metrics) RecordAdvanceFailure() {
	m.advanceFailures.Add(1)
}

// RecordStreamReconnect records a live-feed reconnection attempt.
func (m *Metrics) RecordStreamReconnect() {
	m.streamReconnects.Add(1)
}

// SetStreamConnected sets the live-feed connection gauge.
func (m *Metrics) SetStreamConnected(connected bool) {
	if connected {
		m.streamConnected.Store(1)
	} else {
		m.streamConnected.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	QuotesFetched    uint64    `json:"quotes_fetched"`
	FetchErrors      uint64    `json:"fetch_errors"`
	SamplesCommitted uint64    `json:"samples_committed"`
	AdvanceFailures  uint64    `json:"advance_failures"`
	StreamReconnects uint64    `json:"stream_reconnects"`
	StreamConnected  bool      `json:"stream_connected"`
	Timestamp        time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		QuotesFetched:    m.quotesFetched.Load(),
		FetchErrors:      m.fetchErrors.Load(),
		SamplesCommitted: m.samplesCommitted.Load(),
		AdvanceFailures:  m.advanceFailures.Load(),
		StreamReconnects: m.streamReconnects.Load(),
		StreamConnected:  m.streamConnected.Load() == 1,
		Timestamp:        time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.quotesFetched.Store(0)
	m.fetchErrors.Store(0)
	m.samplesCommitted.Store(0)
	m.advanceFailures.Store(0)
	m.streamReconnects.Store(0)
	m.streamConnected.Store(0)
}
