package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the pipeline counters. A nil *Registry is valid and records
// nothing, so tests can leave it out.
type Registry struct {
	reg               *prometheus.Registry
	OrdersPlaced      prometheus.Counter
	OrdersRejected    *prometheus.CounterVec // by reason
	Reservations      *prometheus.CounterVec // by outcome
	UnitsRestocked    prometheus.Counter
	Transitions       *prometheus.CounterVec // by target status
	ReviewsSubmitted  *prometheus.CounterVec // by kind: created | updated
	PlaceOrderLatency prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	placed := prometheus.NewCounter(prometheus.CounterOpts{Name: "market_orders_placed_total"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "market_orders_rejected_total"}, []string{"reason"})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "market_stock_reservations_total"}, []string{"outcome"})
	restocked := prometheus.NewCounter(prometheus.CounterOpts{Name: "market_stock_units_restocked_total"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "market_order_transitions_total"}, []string{"status"})
	reviews := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "market_reviews_submitted_total"}, []string{"kind"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "market_place_order_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(placed, rejected, reservations, restocked, transitions, reviews, latency)
	return &Registry{
		reg:               r,
		OrdersPlaced:      placed,
		OrdersRejected:    rejected,
		Reservations:      reservations,
		UnitsRestocked:    restocked,
		Transitions:       transitions,
		ReviewsSubmitted:  reviews,
		PlaceOrderLatency: latency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) OrderPlaced(seconds float64) {
	if r == nil {
		return
	}
	r.OrdersPlaced.Inc()
	r.PlaceOrderLatency.Observe(seconds)
}

func (r *Registry) OrderRejected(reason string) {
	if r == nil {
		return
	}
	r.OrdersRejected.WithLabelValues(reason).Inc()
}

func (r *Registry) Reserved(ok bool) {
	if r == nil {
		return
	}
	outcome := "rejected"
	if ok {
		outcome = "reserved"
	}
	r.Reservations.WithLabelValues(outcome).Inc()
}

func (r *Registry) Restocked(units int) {
	if r == nil {
		return
	}
	r.UnitsRestocked.Add(float64(units))
}

func (r *Registry) Transitioned(status string) {
	if r == nil {
		return
	}
	r.Transitions.WithLabelValues(status).Inc()
}

func (r *Registry) Reviewed(updated bool) {
	if r == nil {
		return
	}
	kind := "created"
	if updated {
		kind = "updated"
	}
	r.ReviewsSubmitted.WithLabelValues(kind).Inc()
}
