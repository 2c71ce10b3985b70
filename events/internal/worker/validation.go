package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/common/messaging"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

// ValidationConfig holds the validation handshake settings.
type ValidationConfig struct {
	// BaseURL is the public events API root; the handshake event source is
	// {BaseURL}/subscriptions/{id}.
	BaseURL string

	// EventType is the type of the handshake event.
	EventType string
}

// Validation performs the endpoint handshake for new subscriptions: it posts a
// validation event to the endpoint and marks the subscription valid on a 2xx answer.
type Validation struct {
	sender    Sender
	validator Validator
	cfg       ValidationConfig
	logger    *logging.Logger
	now       func() time.Time
}

// NewValidation creates the validation worker.
func NewValidation(sender Sender, validator Validator, cfg ValidationConfig, logger *logging.Logger) *Validation {
	if logger == nil {
		logger = logging.Default()
	}
	return &Validation{
		sender:    sender,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Job returns the validation consumer binding.
func (v *Validation) Job() Job {
	return Job{
		Name:     "validation",
		Stream:   messaging.StreamValidation,
		Consumer: messaging.ConsumerValidationWorkers,
		Handler:  v.Handle,
	}
}

// Handle processes one validation message.
func (v *Validation) Handle(ctx context.Context, msg *messaging.Message) error {
	var sub models.Subscription
	if err := json.Unmarshal(msg.Data, &sub); err != nil {
		v.logger.ErrorContext(ctx, "dropping undecodable subscription", logging.Error(err))
		return fmt.Errorf("decode subscription: %w: %w", messaging.ErrTerminate, err)
	}
	if sub.ID == 0 || sub.EndPoint == "" {
		return fmt.Errorf("subscription %d is missing id or endpoint: %w", sub.ID, messaging.ErrTerminate)
	}

	evt, err := v.handshakeEvent(sub.ID)
	if err != nil {
		return err
	}
	envelope := &models.CloudEventEnvelope{
		CloudEvent:     evt,
		Consumer:       sub.Consumer,
		SubscriptionID: sub.ID,
		Endpoint:       sub.EndPoint,
		Pushed:         v.now().UTC(),
	}

	if err := v.sender.Send(ctx, envelope); err != nil {
		v.logger.WarnContext(ctx, "subscription endpoint did not accept validation event",
			logging.SubscriptionID(sub.ID),
			logging.Endpoint(sub.EndPoint),
			"attempt", msg.Attempt,
			logging.Error(err))
		return err
	}

	if _, err := v.validator.SetValidSubscription(ctx, sub.ID); err != nil {
		if se, ok := models.AsServiceError(err); ok && se.ErrorCode == http.StatusNotFound {
			v.logger.InfoContext(ctx, "subscription removed before validation", logging.SubscriptionID(sub.ID))
			return fmt.Errorf("validate subscription %d: %w", sub.ID, messaging.ErrTerminate)
		}
		return fmt.Errorf("validate subscription %d: %w", sub.ID, err)
	}

	return nil
}

func (v *Validation) handshakeEvent(id int64) (*models.CloudEvent, error) {
	eventID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}
	now := v.now().UTC()
	return &models.CloudEvent{
		ID:          eventID.String(),
		Source:      strings.TrimRight(v.cfg.BaseURL, "/") + "/subscriptions/" + strconv.FormatInt(id, 10),
		SpecVersion: models.CloudEventSpecVersion,
		Type:        v.cfg.EventType,
		Time:        &now,
	}, nil
}
