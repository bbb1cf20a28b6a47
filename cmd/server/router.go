package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumenlearn/lumen-api/internal/api"
	apiMiddleware "github.com/lumenlearn/lumen-api/internal/api/middleware"
)

// setupRouter creates the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	jobHandler := api.NewJobHandler(app.manager, app.logger)
	webhookHandler := api.NewWebhookHandler(app.tracker, app.cfg.Webhook.ProviderToken, app.logger)
	dashboardHandler := api.NewDashboardHandler(app.aggregator, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Webhook endpoint: authenticated by the provider's shared token,
		// not a platform JWT.
		r.Post("/webhooks/delivery", webhookHandler.HandleDeliveryEvent)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Job endpoints
			r.Post("/jobs", jobHandler.Enqueue)
			r.Get("/jobs/{id}", jobHandler.GetJob)
			r.Post("/jobs/{id}/cancel", jobHandler.Cancel)
			r.Post("/jobs/{id}/retry", jobHandler.Retry)
			r.Get("/jobs/{id}/delivery", webhookHandler.GetDelivery)

			// Dashboard and queue management endpoints
			r.Get("/dashboard", dashboardHandler.GetSnapshot)
			r.Post("/queues/{name}/pause", dashboardHandler.PauseQueue)
			r.Post("/queues/{name}/resume", dashboardHandler.ResumeQueue)
			r.Post("/queues/{name}/clear", dashboardHandler.ClearQueue)
			r.Post("/queues/{name}/retry-failed", dashboardHandler.RetryFailed)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := app.db.PingContext(r.Context()); err != nil {
			app.logger.Error("health check database ping failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
