package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type API struct {
	Orders  *OrdersHandler
	Reviews *ReviewsHandler
	Auth    *auth.Authenticator
	Metrics *metrics.Registry // optional
	Timeout time.Duration
}

func NewRouter(api API) *chi.Mux {
	if api.Timeout <= 0 {
		api.Timeout = 15 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(api.Timeout))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if api.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", api.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		api.Reviews.RegisterPublic(r)
		r.Group(func(r chi.Router) {
			r.Use(api.Auth.Middleware)
			api.Orders.Register(r)
			api.Reviews.Register(r)
		})
	})
	return r
}
