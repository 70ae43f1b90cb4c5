package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "github.com/staybay/backend/docs"
	mW "github.com/staybay/backend/internal/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type RouterDeps struct {
	Ledger    *LedgerHandler
	Payouts   *PayoutHandler
	Webhooks  *WebhookHandler
	JWTSecret string
	Gatherer  prometheus.Gatherer
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Provider callbacks authenticate by signature, not token
		r.Post("/webhooks/paystack", d.Webhooks.Paystack)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(d.JWTSecret))

			r.Route("/internal", func(r chi.Router) {
				r.Use(mW.RequireRole(mW.RoleService, mW.RoleAdmin))

				r.Post("/bookings/{bookingId}/ledger", d.Ledger.RecordBookingLedger)
				r.Post("/bookings/{bookingId}/reversal", d.Ledger.ReverseBookingLedger)
				r.Post("/bookings/{bookingId}/checkout", d.Ledger.CheckOut)
				r.Post("/reconcile", d.Ledger.Reconcile)
			})

			r.With(mW.RequireRole(mW.RoleVendor, mW.RoleUser, mW.RoleService, mW.RoleAdmin)).Get("/balance", d.Payouts.Balance)

			r.Route("/payouts", func(r chi.Router) {
				r.Use(mW.RequireRole(mW.RoleVendor, mW.RoleUser, mW.RoleService, mW.RoleAdmin))

				r.With(mW.RequireRole(mW.RoleVendor, mW.RoleUser)).Post("/", d.Payouts.RequestPayout)
				r.Get("/{payoutId}", d.Payouts.GetPayout)
				r.Post("/{payoutId}/retry", d.Payouts.RetryPayout)
				r.Post("/{payoutId}/cancel", d.Payouts.CancelPayout)
			})
		})
	})

	return r
}
