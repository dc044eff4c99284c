package pending

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsTrackOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	clock := newMockTimeProvider()
	table := newTestTable(WithMetrics(m), WithTimeProvider(clock), WithTimeout(time.Second))

	noop := func(*testResponse, error) {}
	for seq := uint16(1); seq <= 4; seq++ {
		require.NoError(t, table.TryRegister(testKey{entity: 1, seq: seq}, noop))
	}
	assert.Error(t, table.TryRegister(testKey{entity: 1, seq: 1}, noop))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.Outstanding.WithLabelValues("test")))

	table.Resolve(testKey{entity: 1, seq: 1}, nil, nil)
	table.Resolve(testKey{entity: 1, seq: 1}, nil, nil)
	table.Cancel(testKey{entity: 1, seq: 2})
	require.True(t, table.Extend(testKey{entity: 1, seq: 4}, time.Hour))

	clock.Advance(2 * time.Second)
	table.Expire(clock.Now())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Outstanding.WithLabelValues("test")))

	table.Close()

	counts := map[string]float64{
		OutcomeRegistered: 4,
		OutcomeDuplicate:  1,
		OutcomeResolved:   1,
		OutcomeUnmatched:  1,
		OutcomeCancelled:  1,
		OutcomeExpired:    1,
		OutcomeAbandoned:  1,
	}
	for outcome, want := range counts {
		assert.Equal(t, want, testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("test", outcome)), outcome)
	}
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Outstanding.WithLabelValues("test")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.record("t", OutcomeResolved)
		m.recordN("t", OutcomeExpired, 3)
		m.setOutstanding("t", 1)
	})
}

func TestMetricsWithoutRegisterer(t *testing.T) {
	m := NewMetrics(nil)
	require.NotNil(t, m)
	table := newTestTable(WithMetrics(m))
	require.NoError(t, table.TryRegister(testKey{entity: 1, seq: 1}, func(*testResponse, error) {}))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Outstanding.WithLabelValues("test")))
}
