package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventhawk-systems/eventhawk-stack/common/middleware"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/handlers"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/identity"
)

// APIPrefix is the root of the events API.
const APIPrefix = "/events/api/v1"

// NewRouter constructs a ServeMux with the events API routes registered.
func NewRouter(h *handlers.Handler, parser *identity.Parser) http.Handler {
	api := http.NewServeMux()

	// Subscriber API
	api.HandleFunc("POST "+APIPrefix+"/subscriptions", h.CreateSubscription)
	api.HandleFunc("GET "+APIPrefix+"/subscriptions", h.ListSubscriptions)
	api.HandleFunc("GET "+APIPrefix+"/subscriptions/{id}", h.GetSubscription)
	api.HandleFunc("DELETE "+APIPrefix+"/subscriptions/{id}", h.DeleteSubscription)

	// Platform-internal API
	internal := func(next http.HandlerFunc) http.Handler {
		return identity.RequireScope(identity.ScopeInternal, next)
	}
	api.Handle("PUT "+APIPrefix+"/subscriptions/validate/{id}", internal(h.ValidateSubscription))
	api.Handle("POST "+APIPrefix+"/push", internal(h.Push))
	api.Handle("POST "+APIPrefix+"/outbound", internal(h.Outbound))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.HealthCheck)
	mux.HandleFunc("GET /readyz", h.ReadyCheck)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle(APIPrefix+"/", identity.RequireAuth(parser, api))

	return middleware.RequestID(mux)
}
