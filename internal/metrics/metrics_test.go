package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EventReceived()
	m.EventReceived()
	m.Heartbeat()
	m.Matched(".xyz")
	m.InsertOutcome("stored")
	m.InsertOutcome("duplicate_ignored")
	m.Relayed(nil)
	m.Relayed(errors.New("broken pipe"))
	m.SessionState(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.heartbeats))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.matches.WithLabelValues(".xyz")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.insertOutcomes.WithLabelValues("stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relayed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relayErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionState))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventReceived()
		m.Heartbeat()
		m.Malformed()
		m.Matched(".fun")
		m.InsertOutcome("failed")
		m.Relayed(nil)
		m.SessionState(4)
	})
}
