// Package webhook delivers outbound envelopes to subscriber endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/eventhawk-systems/eventhawk-stack/common/audit"
	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/common/tracing"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/metrics"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/tracelog"
)

// DefaultChatHost is the chat webhook host whose endpoints receive a {"text": ...} body.
const DefaultChatHost = "hooks.slack.com"

// maxResponseBody caps how much of a failed response is kept for the error.
const maxResponseBody = 4096

// Config holds dispatcher settings.
type Config struct {
	Timeout   time.Duration
	ChatHosts []string
	UserAgent string

	// Signer signs trace entries; nil leaves them unsigned.
	Signer *audit.Signer
}

// Dispatcher posts envelopes to webhook endpoints. It is safe for concurrent use.
type Dispatcher struct {
	client    *http.Client
	sink      tracelog.Sink
	chatHosts map[string]struct{}
	userAgent string
	signer    *audit.Signer
	logger    *logging.Logger
}

// NewDispatcher creates a dispatcher writing one trace entry per attempt to sink.
func NewDispatcher(cfg Config, sink tracelog.Sink, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	hosts := cfg.ChatHosts
	if len(hosts) == 0 {
		hosts = []string{DefaultChatHost}
	}
	chat := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		chat[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	return &Dispatcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		sink:      sink,
		chatHosts: chat,
		userAgent: cfg.UserAgent,
		signer:    cfg.Signer,
		logger:    logger,
	}
}

// chatPayload is the body accepted by chat webhooks.
type chatPayload struct {
	Text string `json:"text"`
}

// GetPayload renders the request body for envelope. Chat endpoints get the serialized
// event wrapped in a text field; every other endpoint gets the serialized event as is.
func (d *Dispatcher) GetPayload(envelope *models.CloudEventEnvelope) (string, error) {
	serialized, err := envelope.CloudEvent.Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize cloud event: %w", err)
	}
	if !d.isChatEndpoint(envelope.Endpoint) {
		return serialized, nil
	}

	b, err := json.Marshal(chatPayload{Text: serialized})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}
	return string(b), nil
}

func (d *Dispatcher) isChatEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	_, ok := d.chatHosts[strings.ToLower(u.Hostname())]
	return ok
}

// Send posts the envelope to its endpoint. A trace entry is written for every attempt
// before any error is returned. A non-2xx answer yields *models.DeliveryError; transport
// failures, including timeouts and cancellation, are wrapped.
func (d *Dispatcher) Send(ctx context.Context, envelope *models.CloudEventEnvelope) (err error) {
	if envelope == nil {
		return fmt.Errorf("send webhook: nil envelope")
	}

	ctx, span := tracing.StartClientSpan(ctx, "events.webhook.send",
		attribute.Int64("subscription.id", envelope.SubscriptionID),
		attribute.String("webhook.endpoint", envelope.Endpoint),
	)
	defer func() { tracing.EndSpanWithError(span, err) }()

	start := time.Now()
	defer func() { metrics.WebhookDuration.Observe(time.Since(start).Seconds()) }()

	payload, err := d.GetPayload(envelope)
	if err != nil {
		d.trace(ctx, envelope, 0, err)
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, envelope.Endpoint, strings.NewReader(payload))
	if err != nil {
		err = fmt.Errorf("create webhook request: %w", err)
		d.trace(ctx, envelope, 0, err)
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		err = fmt.Errorf("send webhook: %w", err)
		d.trace(ctx, envelope, 0, err)
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		deliveryErr := &models.DeliveryError{
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(body)),
			Endpoint:   envelope.Endpoint,
		}
		d.trace(ctx, envelope, resp.StatusCode, deliveryErr)
		metrics.WebhookDeliveriesTotal.WithLabelValues("failure").Inc()
		return deliveryErr
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	d.trace(ctx, envelope, resp.StatusCode, nil)
	metrics.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
	return nil
}

// trace writes the attempt to the sink. Sink failures are logged and dropped.
func (d *Dispatcher) trace(ctx context.Context, envelope *models.CloudEventEnvelope, status int, sendErr error) {
	entry := &models.LogEntry{
		Consumer:       envelope.Consumer,
		SubscriptionID: envelope.SubscriptionID,
		Endpoint:       envelope.Endpoint,
		StatusCode:     status,
		IsSuccess:      sendErr == nil && status >= 200 && status < 300,
		Created:        time.Now().UTC(),
	}
	if evt := envelope.CloudEvent; evt != nil {
		entry.CloudEventID = evt.ID
		entry.CloudEventType = evt.Type
		entry.CloudEventResource = evt.Resource
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	entry.Signature = d.signer.Sign(audit.Record{
		CloudEventID:   entry.CloudEventID,
		SubscriptionID: entry.SubscriptionID,
		Consumer:       entry.Consumer,
		Endpoint:       entry.Endpoint,
		StatusCode:     entry.StatusCode,
		Success:        entry.IsSuccess,
		Created:        entry.Created,
	})

	// The request context may already be done; the trace entry must still be written.
	if err := d.sink.CreateWebhookResponseEntry(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.WarnContext(ctx, "failed to write webhook trace entry",
			logging.EventID(entry.CloudEventID), logging.SubscriptionID(entry.SubscriptionID), logging.Error(err))
	}
}
