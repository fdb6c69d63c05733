// Package metrics aggregates wake-detection telemetry for the daemon:
// Prometheus instruments plus in-memory session stats for the status API.
package metrics

import (
	"sync"
	"time"
)

// maxRecentEvents bounds the in-memory event ring served by the status API.
const maxRecentEvents = 50

// Collector aggregates session stats from detector callbacks and forwards
// each observation to the Prometheus instruments.
type Collector struct {
	metrics *Metrics

	mu      sync.RWMutex
	session SessionStats
	recent  []Event
}

// SessionStats holds counters for the current daemon run.
type SessionStats struct {
	StartTime     time.Time `json:"start_time"`
	Triggers      int       `json:"triggers"`
	StateChanges  int       `json:"state_changes"`
	EngineErrors  int       `json:"engine_errors"`
	SessionStarts int       `json:"session_starts"`
	LastPhrase    string    `json:"last_phrase,omitempty"`
	LastEvent     string    `json:"last_event,omitempty"`
	LastEventTime time.Time `json:"last_event_time,omitzero"`
}

// Event is one entry in the recent-events ring.
type Event struct {
	Type   string    `json:"type"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// NewCollector creates a collector feeding the given instruments. A nil
// metrics argument falls back to the global instance.
func NewCollector(m *Metrics) *Collector {
	if m == nil {
		m = Default
	}
	return &Collector{
		metrics: m,
		session: SessionStats{StartTime: time.Now()},
		recent:  make([]Event, 0, maxRecentEvents),
	}
}

// WakeDetected records a confirmed wake trigger.
func (c *Collector) WakeDetected(phrase string, distance int) {
	c.metrics.RecordTrigger(phrase, distance)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Triggers++
	c.session.LastPhrase = phrase
	c.note("wake", phrase)
}

// StateChanged records a detector state transition.
func (c *Collector) StateChanged(from, to string) {
	c.metrics.RecordStateChange(from, to)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.StateChanges++
	c.note("state", from+" -> "+to)
}

// EngineFailed records an engine error.
func (c *Collector) EngineFailed(kind, msg string) {
	c.metrics.RecordEngineError(kind)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.EngineErrors++
	c.note("error", kind+": "+msg)
}

// SessionStarted records a recognition session start attempt.
func (c *Collector) SessionStarted(ok bool) {
	c.metrics.RecordSessionStart(ok)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.session.SessionStarts++
		return
	}
	c.note("session-start-failed", "")
}

// Stats returns a copy of the current session stats.
func (c *Collector) Stats() SessionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// RecentEvents returns the most recent n events, oldest first.
func (c *Collector) RecentEvents(n int) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 || n > len(c.recent) {
		n = len(c.recent)
	}
	out := make([]Event, n)
	copy(out, c.recent[len(c.recent)-n:])
	return out
}

// note appends to the event ring. Caller holds c.mu.
func (c *Collector) note(typ, detail string) {
	now := time.Now()
	c.session.LastEvent = typ
	c.session.LastEventTime = now

	c.recent = append(c.recent, Event{Type: typ, Detail: detail, At: now})
	if len(c.recent) > maxRecentEvents {
		c.recent = c.recent[1:]
	}
}
