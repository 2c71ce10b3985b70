package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhawk-systems/eventhawk-stack/common/httputil"
	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/identity"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/queue"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/register"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/repository"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/subscription"
)

const (
	appSource = "https://ttd.apps.altinn.no/ttd/app-x"
	endpoint  = "https://hook.example.com/events"
)

// ============================================================================
// Test Setup
// ============================================================================

type allowGate struct{}

func (allowGate) AuthorizeConsumerForEventsSubscription(context.Context, *models.Subscription) (bool, error) {
	return true, nil
}

func (allowGate) AuthorizeConsumerForAltinnAppEvent(context.Context, *models.CloudEvent, string) (bool, error) {
	return true, nil
}

func (allowGate) AuthorizeConsumerForGenericEvent(context.Context, *models.CloudEvent, string) (bool, error) {
	return true, nil
}

type nopQueue struct{}

func (nopQueue) EnqueueOutbound(context.Context, string) queue.Receipt {
	return queue.Receipt{Success: true}
}

func (nopQueue) EnqueueSubscriptionValidation(context.Context, string) queue.Receipt {
	return queue.Receipt{Success: true}
}

type noParties struct{}

func (noParties) PartyLookup(context.Context, string, string) (int, error) {
	return 0, register.ErrPartyNotFound
}

func (noParties) PartyLookupByURNs(context.Context, []string) ([]register.PartyIdentifiers, error) {
	return nil, nil
}

type fakePublisher struct {
	events []*models.CloudEvent
	err    error
}

func (p *fakePublisher) PostOutbound(_ context.Context, evt *models.CloudEvent) error {
	p.events = append(p.events, evt)
	return p.err
}

type fakeSender struct {
	envelopes []*models.CloudEventEnvelope
	err       error
}

func (s *fakeSender) Send(_ context.Context, envelope *models.CloudEventEnvelope) error {
	s.envelopes = append(s.envelopes, envelope)
	return s.err
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

type testEnv struct {
	handler   *Handler
	repo      *repository.InMemoryRepository
	publisher *fakePublisher
	sender    *fakeSender
}

func setupTestHandler() *testEnv {
	repo := repository.NewInMemoryRepository()
	svc := subscription.NewService(repo, nopQueue{}, allowGate{}, noParties{}, subscription.Config{AppsDomain: "apps.altinn.no"}, logging.Discard())
	env := &testEnv{
		repo:      repo,
		publisher: &fakePublisher{},
		sender:    &fakeSender{},
	}
	env.handler = NewHandler(svc, env.publisher, env.sender, repo, logging.Discard())
	return env
}

func request(t *testing.T, method, target string, body any, caller string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if caller != "" {
		req = req.WithContext(identity.WithIdentity(req.Context(), identity.Identity{Consumer: caller}))
	}
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (e *testEnv) createSubscription(t *testing.T, caller string) *models.Subscription {
	t.Helper()
	req := request(t, http.MethodPost, "/events/api/v1/subscriptions", models.SubscriptionRequest{
		EndPoint:     endpoint,
		SourceFilter: appSource,
	}, caller)
	w := httptest.NewRecorder()
	e.handler.CreateSubscription(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var sub models.Subscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	return &sub
}

// ============================================================================
// Subscription API
// ============================================================================

func TestCreateSubscription(t *testing.T) {
	env := setupTestHandler()

	req := request(t, http.MethodPost, "/events/api/v1/subscriptions", models.SubscriptionRequest{
		EndPoint:     endpoint,
		SourceFilter: appSource,
	}, "/org/ttd")
	w := httptest.NewRecorder()
	env.handler.CreateSubscription(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var sub models.Subscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, "/events/api/v1/subscriptions/"+strconv.FormatInt(sub.ID, 10), w.Header().Get("Location"))
	assert.Equal(t, "/org/ttd", sub.Consumer)
	assert.Equal(t, "/org/ttd", sub.CreatedBy)
	assert.False(t, sub.Validated)
}

func TestCreateSubscription_ValidationError(t *testing.T) {
	env := setupTestHandler()

	req := request(t, http.MethodPost, "/events/api/v1/subscriptions", models.SubscriptionRequest{
		SourceFilter: appSource,
	}, "/org/ttd")
	w := httptest.NewRecorder()
	env.handler.CreateSubscription(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, subscription.MsgInvalidEndpoint, decodeError(t, w).Detail)
}

func TestCreateSubscription_InvalidBody(t *testing.T) {
	env := setupTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/events/api/v1/subscriptions", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	env.handler.CreateSubscription(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSubscription_NoIdentity(t *testing.T) {
	env := setupTestHandler()

	req := request(t, http.MethodPost, "/events/api/v1/subscriptions", models.SubscriptionRequest{
		EndPoint:     endpoint,
		SourceFilter: appSource,
	}, "")
	w := httptest.NewRecorder()
	env.handler.CreateSubscription(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetSubscription(t *testing.T) {
	env := setupTestHandler()
	created := env.createSubscription(t, "/org/ttd")
	id := strconv.FormatInt(created.ID, 10)

	tests := []struct {
		name     string
		id       string
		caller   string
		wantCode int
	}{
		{"owner", id, "/org/ttd", http.StatusOK},
		{"other consumer", id, "/org/skd", http.StatusUnauthorized},
		{"absent", "999", "/org/ttd", http.StatusNotFound},
		{"malformed id", "abc", "/org/ttd", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(t, http.MethodGet, "/events/api/v1/subscriptions/"+tt.id, nil, tt.caller)
			req.SetPathValue("id", tt.id)
			w := httptest.NewRecorder()
			env.handler.GetSubscription(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.NotContains(t, w.Body.String(), endpoint)
				assert.NotContains(t, w.Body.String(), appSource)
			}
		})
	}
}

func TestListSubscriptions(t *testing.T) {
	env := setupTestHandler()
	env.createSubscription(t, "/org/ttd")

	w := httptest.NewRecorder()
	env.handler.ListSubscriptions(w, request(t, http.MethodGet, "/events/api/v1/subscriptions", nil, "/org/ttd"))
	require.Equal(t, http.StatusOK, w.Code)

	var list models.SubscriptionList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	require.Len(t, list.Subscriptions, 1)

	w = httptest.NewRecorder()
	env.handler.ListSubscriptions(w, request(t, http.MethodGet, "/events/api/v1/subscriptions", nil, "/org/skd"))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 0, list.Count)
	assert.NotNil(t, list.Subscriptions)
}

func TestDeleteSubscription(t *testing.T) {
	env := setupTestHandler()
	created := env.createSubscription(t, "/org/ttd")
	id := strconv.FormatInt(created.ID, 10)

	req := request(t, http.MethodDelete, "/events/api/v1/subscriptions/"+id, nil, "/org/skd")
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	env.handler.DeleteSubscription(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = request(t, http.MethodDelete, "/events/api/v1/subscriptions/"+id, nil, "/org/ttd")
	req.SetPathValue("id", id)
	w = httptest.NewRecorder()
	env.handler.DeleteSubscription(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	_, err := env.repo.GetSubscription(context.Background(), created.ID)
	assert.ErrorIs(t, err, repository.ErrSubscriptionNotFound)
}

func TestValidateSubscription(t *testing.T) {
	env := setupTestHandler()
	created := env.createSubscription(t, "/org/ttd")
	id := strconv.FormatInt(created.ID, 10)

	req := request(t, http.MethodPut, "/events/api/v1/subscriptions/validate/"+id, nil, "")
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	env.handler.ValidateSubscription(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.repo.GetSubscription(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, stored.Validated)

	req = request(t, http.MethodPut, "/events/api/v1/subscriptions/validate/999", nil, "")
	req.SetPathValue("id", "999")
	w = httptest.NewRecorder()
	env.handler.ValidateSubscription(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ============================================================================
// Internal API
// ============================================================================

func TestPush(t *testing.T) {
	env := setupTestHandler()

	w := httptest.NewRecorder()
	env.handler.Push(w, request(t, http.MethodPost, "/events/api/v1/push", models.CloudEvent{
		ID:     "e1",
		Source: appSource + "/instances/1/2",
		Type:   "app.instance.created",
	}, ""))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.publisher.events, 1)
	evt := env.publisher.events[0]
	assert.NotNil(t, evt.Time)
	assert.Equal(t, models.CloudEventSpecVersion, evt.SpecVersion)
}

func TestPush_MissingAttributes(t *testing.T) {
	env := setupTestHandler()

	w := httptest.NewRecorder()
	env.handler.Push(w, request(t, http.MethodPost, "/events/api/v1/push", models.CloudEvent{ID: "e1"}, ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.publisher.events)
}

func TestPush_PublisherError(t *testing.T) {
	env := setupTestHandler()
	env.publisher.err = errors.New("database is down")

	w := httptest.NewRecorder()
	env.handler.Push(w, request(t, http.MethodPost, "/events/api/v1/push", models.CloudEvent{
		ID: "e1", Source: appSource, Type: "t",
	}, ""))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "database is down")
}

func TestOutbound(t *testing.T) {
	env := setupTestHandler()
	envelope := models.CloudEventEnvelope{
		CloudEvent:     &models.CloudEvent{ID: "e1"},
		SubscriptionID: 3,
		Endpoint:       endpoint,
	}

	w := httptest.NewRecorder()
	env.handler.Outbound(w, request(t, http.MethodPost, "/events/api/v1/outbound", envelope, ""))
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.sender.envelopes, 1)

	env.sender.err = &models.DeliveryError{StatusCode: http.StatusBadGateway, Endpoint: endpoint}
	w = httptest.NewRecorder()
	env.handler.Outbound(w, request(t, http.MethodPost, "/events/api/v1/outbound", envelope, ""))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	env := setupTestHandler()

	w := httptest.NewRecorder()
	env.handler.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	env.handler.ReadyCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	down := NewHandler(nil, nil, nil, fakePinger{err: errors.New("no route to host")}, logging.Discard())
	w = httptest.NewRecorder()
	down.ReadyCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
