package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.OrderPlaced(0.1)
		r.OrderRejected("self_purchase")
		r.Reserved(true)
		r.Restocked(3)
		r.Transitioned("Shipped")
		r.Reviewed(false)
	})
}

func TestRegistryCountsAndExposes(t *testing.T) {
	r := NewRegistry()
	r.OrderPlaced(0.02)
	r.Reserved(false)
	r.Reserved(false)
	r.Restocked(4)
	r.Reviewed(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.OrdersPlaced))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Reservations.WithLabelValues("rejected")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.UnitsRestocked))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ReviewsSubmitted.WithLabelValues("updated")))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "market_orders_placed_total 1")
}
