package routes

import (
	"net/http"

	"github.com/ofertascauca/senabot/internal/api/handlers"
	"github.com/ofertascauca/senabot/internal/api/middleware"
	"github.com/ofertascauca/senabot/internal/infrastructure/observability"
)

// Router holds all route handlers.
type Router struct {
	mux *http.ServeMux

	webhookHandler *handlers.WebhookHandler
	metrics        *observability.Metrics
}

// NewRouter creates a new router.
func NewRouter(webhookHandler *handlers.WebhookHandler, metrics *observability.Metrics) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		webhookHandler: webhookHandler,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes.
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			return
		}
	})

	r.mux.HandleFunc("GET /webhook", r.webhookHandler.Verify)
	r.mux.HandleFunc("POST /webhook", r.webhookHandler.Receive)

	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)
	return handler
}
