package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	fetchesTotal       atomic.Uint64
	fetchErrors        atomic.Uint64
	staleDropped       atomic.Uint64
	protocolViolations atomic.Uint64
	pushEvents         atomic.Uint64
	pushReconnects     atomic.Uint64
	alertsDetected     atomic.Uint64
	soundsPlayed       atomic.Uint64
	actionConflicts    atomic.Uint64

	// Gauges
	pushConnected atomic.Int32 // 1 = connected, 0 = polling-only
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordFetch records one completed list fetch.
func (m *Metrics) RecordFetch() { m.fetchesTotal.Add(1) }

// RecordFetchError records a failed or timed-out fetch.
func (m *Metrics) RecordFetchError() { m.fetchErrors.Add(1) }

// RecordStaleDropped records a fetch result discarded by sequence check.
func (m *Metrics) RecordStaleDropped() { m.staleDropped.Add(1) }

// RecordProtocolViolation records a status regression or immutable-field
// change observed between snapshots.
func (m *Metrics) RecordProtocolViolation() { m.protocolViolations.Add(1) }

// RecordPushEvent records an inbound push hint.
func (m *Metrics) RecordPushEvent() { m.pushEvents.Add(1) }

// RecordPushReconnect records a push channel reconnection attempt.
func (m *Metrics) RecordPushReconnect() { m.pushReconnects.Add(1) }

// RecordAlerts records n alertable orders detected in one cycle.
func (m *Metrics) RecordAlerts(n int) { m.alertsDetected.Add(uint64(n)) }

// RecordSoundPlayed records one audio notification actually played.
func (m *Metrics) RecordSoundPlayed() { m.soundsPlayed.Add(1) }

// RecordActionConflict records an "already handled" action rejection.
func (m *Metrics) RecordActionConflict() { m.actionConflicts.Add(1) }

// SetPushConnected sets the push channel health gauge.
func (m *Metrics) SetPushConnected(connected bool) {
	if connected {
		m.pushConnected.Store(1)
	} else {
		m.pushConnected.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	FetchesTotal       uint64
	FetchErrors        uint64
	StaleDropped       uint64
	ProtocolViolations uint64
	PushEvents         uint64
	PushReconnects     uint64
	AlertsDetected     uint64
	SoundsPlayed       uint64
	ActionConflicts    uint64
	PushConnected      bool
	Timestamp          time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		FetchesTotal:       m.fetchesTotal.Load(),
		FetchErrors:        m.fetchErrors.Load(),
		StaleDropped:       m.staleDropped.Load(),
		ProtocolViolations: m.protocolViolations.Load(),
		PushEvents:         m.pushEvents.Load(),
		PushReconnects:     m.pushReconnects.Load(),
		AlertsDetected:     m.alertsDetected.Load(),
		SoundsPlayed:       m.soundsPlayed.Load(),
		ActionConflicts:    m.actionConflicts.Load(),
		PushConnected:      m.pushConnected.Load() == 1,
		Timestamp:          time.Now(),
	}
}
