package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Bookings       *BookingsHandler
	Availability   *AvailabilityHandler
	Webhooks       *WebhookHandler
	Tenants        bookings.TenantResolver
	Metrics        http.Handler
	Log            *zap.Logger
	CheckoutRate   int
	RequestTimeout time.Duration
}

func NewRouter(d RouterDeps) *chi.Mux {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, AccessLog(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Method(http.MethodPost, "/webhooks/payment", d.Webhooks)

	r.Group(func(r chi.Router) {
		r.Use(RequireTenant(d.Tenants, d.Log))

		r.With(RateLimit(d.CheckoutRate, d.Log)).Post("/bookings/checkout", d.Bookings.Checkout)
		d.Bookings.Register(r)

		r.Get("/availability", d.Availability.Check)
		r.Get("/availability/unavailable", d.Availability.Unavailable)
	})
	return r
}
