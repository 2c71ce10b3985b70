// Package queue enqueues outbound delivery envelopes and subscription validation jobs.
// Transport selection is configuration; the core only sees Client.
package queue

import (
	"context"
	"fmt"

	"github.com/eventhawk-systems/eventhawk-stack/common/messaging"
)

// Receipt reports the outcome of an enqueue.
type Receipt struct {
	Success bool
	Err     error
}

func ok() Receipt {
	return Receipt{Success: true}
}

func failed(err error) Receipt {
	return Receipt{Success: false, Err: err}
}

// Client is the single enqueue capability used by the distributor and the registry.
// Delivery is at-least-once and not transactional with repository writes.
type Client interface {
	EnqueueOutbound(ctx context.Context, serializedEnvelope string) Receipt
	EnqueueSubscriptionValidation(ctx context.Context, serializedSubscription string) Receipt
}

// BrokerClient publishes to the events streams through a messaging.Publisher.
type BrokerClient struct {
	publisher messaging.Publisher
}

// NewBrokerClient creates a queue client over publisher.
func NewBrokerClient(publisher messaging.Publisher) *BrokerClient {
	return &BrokerClient{publisher: publisher}
}

func (c *BrokerClient) EnqueueOutbound(ctx context.Context, serializedEnvelope string) Receipt {
	return c.publish(ctx, messaging.SubjectOutboundEnvelope, serializedEnvelope)
}

func (c *BrokerClient) EnqueueSubscriptionValidation(ctx context.Context, serializedSubscription string) Receipt {
	return c.publish(ctx, messaging.SubjectSubscriptionValidation, serializedSubscription)
}

func (c *BrokerClient) publish(ctx context.Context, subject, payload string) Receipt {
	if payload == "" {
		return failed(fmt.Errorf("refusing to enqueue empty payload on %s", subject))
	}
	if err := c.publisher.Publish(ctx, subject, []byte(payload)); err != nil {
		return failed(fmt.Errorf("enqueue on %s: %w", subject, err))
	}
	return ok()
}
