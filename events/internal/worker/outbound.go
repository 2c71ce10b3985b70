package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/common/messaging"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

// Outbound delivers queued envelopes. A failed delivery is returned to the queue so
// it is redelivered after the configured back-off.
type Outbound struct {
	sender Sender
	logger *logging.Logger
}

// NewOutbound creates the outbound worker.
func NewOutbound(sender Sender, logger *logging.Logger) *Outbound {
	if logger == nil {
		logger = logging.Default()
	}
	return &Outbound{sender: sender, logger: logger}
}

// Job returns the outbound consumer binding.
func (o *Outbound) Job() Job {
	return Job{
		Name:     "outbound",
		Stream:   messaging.StreamOutbound,
		Consumer: messaging.ConsumerOutboundWorkers,
		Handler:  o.Handle,
	}
}

// Handle processes one outbound message.
func (o *Outbound) Handle(ctx context.Context, msg *messaging.Message) error {
	var envelope models.CloudEventEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		o.logger.ErrorContext(ctx, "dropping undecodable envelope", logging.Error(err))
		return fmt.Errorf("decode envelope: %w: %w", messaging.ErrTerminate, err)
	}
	if envelope.Endpoint == "" {
		o.logger.ErrorContext(ctx, "dropping envelope without endpoint", logging.SubscriptionID(envelope.SubscriptionID))
		return fmt.Errorf("envelope for subscription %d has no endpoint: %w", envelope.SubscriptionID, messaging.ErrTerminate)
	}

	var eventID string
	if envelope.CloudEvent != nil {
		eventID = envelope.CloudEvent.ID
	}

	if err := o.sender.Send(ctx, &envelope); err != nil {
		o.logger.WarnContext(ctx, "webhook delivery failed",
			logging.EventID(eventID),
			logging.SubscriptionID(envelope.SubscriptionID),
			logging.Endpoint(envelope.Endpoint),
			"attempt", msg.Attempt,
			logging.Error(err))
		return err
	}
	return nil
}

func isTerminal(err error) bool {
	return errors.Is(err, messaging.ErrTerminate)
}
