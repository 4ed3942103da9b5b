// Package telemetry holds the Prometheus metrics of the cart engine and
// checkout.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics may be nil; every recording method is then a no-op.
type Metrics struct {
	CartTransitions     *prometheus.CounterVec
	CommunicationErrors *prometheus.CounterVec
	CartsEmptied        prometheus.Counter
	CartSize            prometheus.Histogram
	OrdersPlaced        prometheus.Counter
	OrderValue          prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CartTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_cart_transitions_total",
				Help: "Cart quantity changes by resulting transition",
			},
			[]string{"transition"},
		),
		CommunicationErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_store_communication_errors_total",
				Help: "Failed document store operations by cart operation",
			},
			[]string{"operation"},
		),
		CartsEmptied: f.NewCounter(prometheus.CounterOpts{
			Name: "storefront_carts_emptied_total",
			Help: "Carts whose last line item was removed or that were emptied",
		}),
		CartSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_cart_line_items",
			Help:    "Number of line items after a quantity change",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		OrdersPlaced: f.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Orders written",
		}),
		OrderValue: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_order_value",
			Help:    "Order total price",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}
}

func (m *Metrics) Transition(kind string, items int) {
	if m == nil {
		return
	}
	m.CartTransitions.WithLabelValues(kind).Inc()
	m.CartSize.Observe(float64(items))
}

func (m *Metrics) CommunicationError(op string) {
	if m == nil {
		return
	}
	m.CommunicationErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) Emptied() {
	if m == nil {
		return
	}
	m.CartsEmptied.Inc()
}

func (m *Metrics) OrderPlaced(total float64) {
	if m == nil {
		return
	}
	m.OrdersPlaced.Inc()
	m.OrderValue.Observe(total)
}
