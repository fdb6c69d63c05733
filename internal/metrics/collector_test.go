package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_WakeDetected(t *testing.T) {
	c := NewCollector(Default)

	before := testutil.ToFloat64(Default.TriggersTotal.WithLabelValues("hey jacq"))
	c.WakeDetected("hey jacq", 1)
	c.WakeDetected("hey jacq", 0)

	stats := c.Stats()
	assert.Equal(t, 2, stats.Triggers)
	assert.Equal(t, "hey jacq", stats.LastPhrase)
	assert.Equal(t, "wake", stats.LastEvent)
	assert.Equal(t, before+2, testutil.ToFloat64(Default.TriggersTotal.WithLabelValues("hey jacq")))
}

func TestCollector_StateChanged(t *testing.T) {
	c := NewCollector(Default)

	c.StateChanged("idle", "listening")
	assert.Equal(t, float64(1), testutil.ToFloat64(Default.ListeningActive))

	c.StateChanged("listening", "cooldown")
	assert.Equal(t, float64(0), testutil.ToFloat64(Default.ListeningActive))

	assert.Equal(t, 2, c.Stats().StateChanges)
}

func TestCollector_EngineFailed(t *testing.T) {
	c := NewCollector(Default)

	c.EngineFailed("transient", "connection lost")
	stats := c.Stats()
	assert.Equal(t, 1, stats.EngineErrors)
	assert.Equal(t, "error", stats.LastEvent)
}

func TestCollector_RecentEventsRing(t *testing.T) {
	c := NewCollector(Default)

	for i := 0; i < maxRecentEvents+10; i++ {
		c.WakeDetected("hey jacq", 0)
	}

	all := c.RecentEvents(0)
	assert.Len(t, all, maxRecentEvents)

	last2 := c.RecentEvents(2)
	assert.Len(t, last2, 2)
	assert.Equal(t, "wake", last2[0].Type)
}

func TestCollector_NilMetricsFallsBack(t *testing.T) {
	c := NewCollector(nil)
	assert.NotPanics(t, func() { c.SessionStarted(true) })
	assert.Equal(t, 1, c.Stats().SessionStarts)
}
