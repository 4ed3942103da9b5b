package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.Transition("create", 1)
	m.Transition("create", 2)
	m.CommunicationError("place order")
	m.Emptied()
	m.OrderPlaced(29.97)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CartTransitions.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommunicationErrors.WithLabelValues("place order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CartsEmptied))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersPlaced))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Transition("upsert", 1)
		m.CommunicationError("read cart")
		m.Emptied()
		m.OrderPlaced(1)
	})
}
