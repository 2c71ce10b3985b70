// Package handlers maps the events HTTP API onto the registry, distributor and
// dispatcher.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/eventhawk-systems/eventhawk-stack/common/httputil"
	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/identity"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

// Registry is the subscription lifecycle used by the API.
type Registry interface {
	CreateSubscription(ctx context.Context, caller identity.Identity, req *models.SubscriptionRequest) (*models.Subscription, error)
	GetSubscription(ctx context.Context, caller identity.Identity, id int64) (*models.Subscription, error)
	GetAllSubscriptions(ctx context.Context, caller identity.Identity) ([]*models.Subscription, error)
	DeleteSubscription(ctx context.Context, caller identity.Identity, id int64) error
	SetValidSubscription(ctx context.Context, id int64) (*models.Subscription, error)
}

// Publisher fans a published event out to its subscribers.
type Publisher interface {
	PostOutbound(ctx context.Context, evt *models.CloudEvent) error
}

// Sender delivers one envelope.
type Sender interface {
	Send(ctx context.Context, envelope *models.CloudEventEnvelope) error
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the events API.
type Handler struct {
	registry  Registry
	publisher Publisher
	sender    Sender
	store     Pinger
	logger    *logging.Logger
}

// NewHandler creates the API handler.
func NewHandler(registry Registry, publisher Publisher, sender Sender, store Pinger, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		registry:  registry,
		publisher: publisher,
		sender:    sender,
		store:     store,
		logger:    logger,
	}
}

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, models.HealthResponse{Status: "healthy", Service: "events"})
}

// ReadyCheck handles GET /readyz
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "readiness check failed", logging.Error(err))
		httputil.WriteJSON(w, http.StatusServiceUnavailable, models.HealthResponse{Status: "unavailable", Service: "events"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.HealthResponse{Status: "ready", Service: "events"})
}

// CreateSubscription handles POST /events/api/v1/subscriptions
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req models.SubscriptionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, err := h.registry.CreateSubscription(r.Context(), identity.FromContext(r.Context()), &req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", r.URL.Path+"/"+strconv.FormatInt(sub.ID, 10))
	httputil.WriteJSON(w, http.StatusCreated, sub)
}

// ListSubscriptions handles GET /events/api/v1/subscriptions
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.registry.GetAllSubscriptions(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}
	httputil.WriteJSON(w, http.StatusOK, models.SubscriptionList{Count: len(subs), Subscriptions: subs})
}

// GetSubscription handles GET /events/api/v1/subscriptions/{id}
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(w, r)
	if !ok {
		return
	}

	sub, err := h.registry.GetSubscription(r.Context(), identity.FromContext(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

// DeleteSubscription handles DELETE /events/api/v1/subscriptions/{id}
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(w, r)
	if !ok {
		return
	}

	if err := h.registry.DeleteSubscription(r.Context(), identity.FromContext(r.Context()), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ValidateSubscription handles PUT /events/api/v1/subscriptions/validate/{id}
func (h *Handler) ValidateSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(w, r)
	if !ok {
		return
	}

	sub, err := h.registry.SetValidSubscription(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sub)
}

// Push handles POST /events/api/v1/push
func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	var evt models.CloudEvent
	if err := httputil.DecodeJSON(r, &evt); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid cloud event")
		return
	}
	if evt.ID == "" || evt.Source == "" || evt.Type == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Cloud event requires id, source and type")
		return
	}
	if evt.SpecVersion == "" {
		evt.SpecVersion = models.CloudEventSpecVersion
	}
	if evt.Time == nil {
		now := time.Now().UTC()
		evt.Time = &now
	}

	if err := h.publisher.PostOutbound(r.Context(), &evt); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Outbound handles POST /events/api/v1/outbound
func (h *Handler) Outbound(w http.ResponseWriter, r *http.Request) {
	var envelope models.CloudEventEnvelope
	if err := httputil.DecodeJSON(r, &envelope); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid envelope")
		return
	}
	if envelope.Endpoint == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Envelope requires an endpoint")
		return
	}

	if err := h.sender.Send(r.Context(), &envelope); err != nil {
		h.logger.WarnContext(r.Context(), "outbound delivery failed",
			logging.SubscriptionID(envelope.SubscriptionID), logging.Endpoint(envelope.Endpoint), logging.Error(err))
		httputil.WriteError(w, http.StatusServiceUnavailable, "Webhook delivery failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func subscriptionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid subscription id")
		return 0, false
	}
	return id, true
}

// writeServiceError maps a ServiceError to its status; anything else is a 500 whose
// cause is only logged.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if se, ok := models.AsServiceError(err); ok {
		httputil.WriteError(w, se.ErrorCode, se.ErrorMessage)
		return
	}
	h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, logging.Error(err))
	httputil.WriteError(w, http.StatusInternalServerError, "Internal server error")
}
