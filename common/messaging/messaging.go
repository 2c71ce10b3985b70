// Package messaging provides broker-agnostic abstractions for the event queues.
// The events service publishes delivery envelopes and validation jobs through a
// Publisher and processes them in workers through a Consumer, without being coupled
// to a specific broker implementation.
package messaging

import (
	"context"
	"errors"
	"time"
)

// ErrTerminate tells a Consumer the message can never be processed and must not be
// redelivered (for example an undecodable payload). Wrap it with %w.
var ErrTerminate = errors.New("terminate message")

// Message represents a message received from or sent to a message broker.
type Message struct {
	// ID is the broker-assigned identifier, when the broker provides one.
	ID string

	// Subject is the topic/channel the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs for message headers.
	Metadata map[string]string

	// Attempt is the delivery attempt number, starting at 1.
	Attempt uint64

	// Timestamp is when the message was published.
	Timestamp time.Time
}

// MessageHandler processes a received message.
// A non-nil error makes the consumer redeliver the message later, unless it wraps ErrTerminate.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends data to subject and returns once the broker has accepted it.
	Publish(ctx context.Context, subject string, data []byte) error
}

// Consumer delivers messages from a durable consumer to a handler.
type Consumer interface {
	// Consume starts delivering messages and returns a function that stops delivery.
	Consume(ctx context.Context, stream, consumer string, handler MessageHandler) (func(), error)
}
