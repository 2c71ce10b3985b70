package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/eventhawk-systems/eventhawk-stack/common/messaging"
)

// JetStreamClient adds durable publishing and consuming on top of Client.
// It implements messaging.Publisher and messaging.Consumer.
type JetStreamClient struct {
	*Client
	js       jetstream.JetStream
	nakDelay time.Duration
}

// StreamConfig defines a JetStream stream configuration.
type StreamConfig struct {
	Name      string
	Subjects  []string
	MaxAge    time.Duration
	MaxBytes  int64
	MaxMsgs   int64
	Retention jetstream.RetentionPolicy
	Storage   jetstream.StorageType
}

// ConsumerConfig defines a durable JetStream consumer.
type ConsumerConfig struct {
	Name          string
	FilterSubject string

	// AckWait is time to wait for acknowledgment before redelivery.
	AckWait time.Duration

	// MaxDeliver is maximum delivery attempts before giving up.
	MaxDeliver int

	// MaxAckPending bounds how many envelopes a worker pool holds at once.
	MaxAckPending int
}

// NewJetStreamClient creates a JetStream-enabled client.
// nakDelay is how long a failed message waits before redelivery.
func NewJetStreamClient(cfg Config, nakDelay time.Duration) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{Client: client, js: js, nakDelay: nakDelay}, nil
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		MaxAge:    cfg.MaxAge,
		MaxBytes:  cfg.MaxBytes,
		MaxMsgs:   cfg.MaxMsgs,
		Retention: cfg.Retention,
		Storage:   cfg.Storage,
	})
	if err != nil {
		return fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return nil
}

// CreateOrUpdateConsumer creates or updates a durable pull consumer on streamName.
func (c *JetStreamClient) CreateOrUpdateConsumer(ctx context.Context, streamName string, cfg ConsumerConfig) error {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}

	_, err = stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          cfg.Name,
		Durable:       cfg.Name,
		FilterSubject: cfg.FilterSubject,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create/update consumer %s: %w", cfg.Name, err)
	}
	return nil
}

// Publish publishes data and waits for the stream acknowledgment.
func (c *JetStreamClient) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Consume starts delivering messages from a durable consumer to handler.
// Successful messages are acked, failures are NAKed with the configured delay and
// messages failing with messaging.ErrTerminate are terminated.
func (c *JetStreamClient) Consume(ctx context.Context, streamName, consumerName string, handler messaging.MessageHandler) (func(), error) {
	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}

	consumer, err := stream.Consumer(ctx, consumerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer %s: %w", consumerName, err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		m := toMessage(msg)
		if err := handler(consumeCtx, m); err != nil {
			if errors.Is(err, messaging.ErrTerminate) {
				_ = msg.Term()
				return
			}
			_ = msg.NakWithDelay(c.nakDelay)
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	return func() {
		cancel()
		cons.Stop()
	}, nil
}

func toMessage(msg jetstream.Msg) *messaging.Message {
	m := &messaging.Message{
		Subject:   msg.Subject(),
		Data:      msg.Data(),
		Attempt:   1,
		Timestamp: time.Now(),
	}

	if meta, err := msg.Metadata(); err == nil {
		m.ID = fmt.Sprintf("%s-%d", meta.Stream, meta.Sequence.Stream)
		m.Attempt = meta.NumDelivered
		m.Timestamp = meta.Timestamp
	}

	if headers := msg.Headers(); headers != nil {
		m.Metadata = make(map[string]string, len(headers))
		for k := range headers {
			m.Metadata[k] = headers.Get(k)
		}
	}

	return m
}

// Predefined stream configurations for the events service.
var (
	// OutboundStream holds delivery envelopes until a worker delivers them.
	OutboundStream = StreamConfig{
		Name:      messaging.StreamOutbound,
		Subjects:  []string{messaging.SubjectOutboundEnvelope},
		MaxAge:    72 * time.Hour,
		MaxBytes:  1024 * 1024 * 1024, // 1GB
		MaxMsgs:   5000000,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	}

	// ValidationStream holds subscriptions waiting for the endpoint handshake.
	ValidationStream = StreamConfig{
		Name:      messaging.StreamValidation,
		Subjects:  []string{messaging.SubjectSubscriptionValidation},
		MaxAge:    24 * time.Hour,
		MaxBytes:  100 * 1024 * 1024, // 100MB
		MaxMsgs:   100000,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	}
)
