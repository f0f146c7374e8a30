package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	t.Run("should register every counter under the flare namespace", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := NewMetrics()
		require.Nil(t, m.Register(reg))
		m.EventsCaptured.Inc()
		m.ItemsDropped.WithLabelValues("events", ReasonQueueFull).Add(3)

		expected := `
# HELP flare_items_dropped_total Events or traces discarded before a delivery attempt.
# TYPE flare_items_dropped_total counter
flare_items_dropped_total{kind="events",reason="queue_full"} 3
`
		require.Nil(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "flare_items_dropped_total"))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsCaptured))
	})

	t.Run("should allow two unregistered instances side by side", func(t *testing.T) {
		a := NewMetrics()
		b := NewMetrics()
		a.TracesCompleted.Inc()
		assert.Equal(t, float64(1), testutil.ToFloat64(a.TracesCompleted))
		assert.Equal(t, float64(0), testutil.ToFloat64(b.TracesCompleted))
	})

	t.Run("should return an error instead of panicking on a shared registerer", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		require.Nil(t, NewMetrics().Register(reg))

		var err error
		assert.NotPanics(t, func() { err = NewMetrics().Register(reg) })
		var already prometheus.AlreadyRegisteredError
		assert.True(t, errors.As(err, &already))
	})

	t.Run("should leave nothing behind after a failed registration", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		clash := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_dropped_total",
			Help:      "Events or traces discarded before a delivery attempt.",
		}, []string{"kind", "reason"})
		require.Nil(t, reg.Register(clash))

		m := NewMetrics()
		assert.NotNil(t, m.Register(reg))
		m.EventsCaptured.Inc()

		families, err := reg.Gather()
		require.Nil(t, err)
		for _, family := range families {
			assert.NotEqual(t, "flare_events_captured_total", family.GetName())
		}
	})
}
