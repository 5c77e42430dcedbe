package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cleargate/payline/internal/http/export"
	"github.com/cleargate/payline/internal/http/intake"
	"github.com/cleargate/payline/internal/http/item"
	"github.com/cleargate/payline/internal/http/transaction"
)

func New(
	itemsV1 *item.Handler,
	transactionsV1 *transaction.Handler,
	intakeV1 *intake.Handler,
	exportV1 *export.Handler,
	healthCheck func(context.Context) error,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	router.Use(requestMetrics)

	router.Get("/healthz", health(healthCheck))
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			itemsV1.Routes(r)
		})

		r.Route("/transactions", func(r chi.Router) {
			transactionsV1.Routes(r)
		})

		r.Route("/intake", intakeV1.Routes)

		r.Route("/export", func(r chi.Router) {
			exportV1.Routes(r)
		})
	})

	return router
}
