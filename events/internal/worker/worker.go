// Package worker runs the queue consumers that deliver envelopes and perform the
// subscription validation handshake.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/common/messaging"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/metrics"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

// Sender delivers one envelope to its endpoint.
type Sender interface {
	Send(ctx context.Context, envelope *models.CloudEventEnvelope) error
}

// Validator marks a subscription as validated.
type Validator interface {
	SetValidSubscription(ctx context.Context, id int64) (*models.Subscription, error)
}

// Runner manages the lifetime of a set of durable consumers.
type Runner struct {
	consumer messaging.Consumer
	logger   *logging.Logger

	mu    sync.Mutex
	stops []func()
}

// NewRunner creates a runner that consumes through consumer.
func NewRunner(consumer messaging.Consumer, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{consumer: consumer, logger: logger}
}

// Job binds a handler to a durable consumer on a stream.
type Job struct {
	Name     string
	Stream   string
	Consumer string
	Handler  messaging.MessageHandler
}

// Start begins consuming for every job. On failure the jobs already started are
// stopped.
func (r *Runner) Start(ctx context.Context, jobs ...Job) error {
	for _, job := range jobs {
		stop, err := r.consumer.Consume(ctx, job.Stream, job.Consumer, r.instrument(job))
		if err != nil {
			r.Stop()
			return fmt.Errorf("start %s worker: %w", job.Name, err)
		}
		r.mu.Lock()
		r.stops = append(r.stops, stop)
		r.mu.Unlock()
		r.logger.InfoContext(ctx, "worker started", "worker", job.Name, "stream", job.Stream)
	}
	return nil
}

// Stop stops every running consumer.
func (r *Runner) Stop() {
	r.mu.Lock()
	stops := r.stops
	r.stops = nil
	r.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}

func (r *Runner) instrument(job Job) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		err := job.Handler(ctx, msg)
		switch {
		case err == nil:
			metrics.WorkerMessagesTotal.WithLabelValues(job.Name, "ack").Inc()
		case isTerminal(err):
			metrics.WorkerMessagesTotal.WithLabelValues(job.Name, "term").Inc()
		default:
			metrics.WorkerMessagesTotal.WithLabelValues(job.Name, "nak").Inc()
		}
		return err
	}
}
