// Package distributor turns a published cloud event into one queued delivery envelope
// per matching, authorized subscription.
package distributor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/common/tracing"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/authorization"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/cache"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/metrics"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/queue"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/repository"
)

// Config holds distribution settings.
type Config struct {
	// AppsDomain is the host suffix of app event sources, e.g. "apps.altinn.no".
	AppsDomain string

	// Concurrency bounds how many subscriptions are authorized and enqueued at once.
	Concurrency int
}

// Distributor matches events to subscriptions and enqueues delivery envelopes.
type Distributor struct {
	repo          repository.Repository
	gate          authorization.Gate
	queue         queue.Client
	subscriptions *cache.Cache
	decisions     *cache.Cache
	cfg           Config
	logger        *logging.Logger
	now           func() time.Time
}

// New creates a distributor. subscriptions caches match results and decisions caches
// authorization decisions; each carries its own TTL.
func New(repo repository.Repository, gate authorization.Gate, q queue.Client, subscriptions, decisions *cache.Cache, cfg Config, logger *logging.Logger) *Distributor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Distributor{
		repo:          repo,
		gate:          gate,
		queue:         q,
		subscriptions: subscriptions,
		decisions:     decisions,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// SourceKey returns the key subscriptions are matched on. App event sources are cut
// down to scheme, host and the {org}/{app} path; any other source is used unchanged.
func SourceKey(source, appsDomain string) (key string, isApp bool) {
	src, ok := models.ParseAppSource(source)
	if !ok || !src.OnDomain(appsDomain) {
		return source, false
	}
	return src.Key(), true
}

// PostOutbound fans evt out to every matching subscription whose consumer is
// authorized. Authorization and enqueue failures are logged per subscription and never
// returned; only a cancelled context or a failed subscription lookup is.
func (d *Distributor) PostOutbound(ctx context.Context, evt *models.CloudEvent) (err error) {
	if evt == nil {
		return models.NewValidationError("Missing cloud event")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := d.now()
	sourceKey, isApp := SourceKey(evt.Source, d.cfg.AppsDomain)
	kind := "generic"
	if isApp {
		kind = "app"
	}

	ctx, span := tracing.StartSpan(ctx, "events.post_outbound",
		attribute.String("event.id", evt.ID),
		attribute.String("event.type", evt.Type),
		attribute.String("event.kind", kind),
	)
	defer func() { tracing.EndSpanWithError(span, err) }()

	metrics.EventsPublishedTotal.WithLabelValues(kind).Inc()
	defer func() { metrics.DistributionDuration.Observe(time.Since(start).Seconds()) }()

	query := models.MatchQuery{
		SourceKey: sourceKey,
		Subject:   evt.Subject,
		Type:      evt.Type,
		Resource:  evt.Resource,
	}
	subs, err := cache.GetOrLoad(ctx, d.subscriptions, subscriptionKey(query), func(ctx context.Context) ([]*models.Subscription, error) {
		return d.repo.GetSubscriptions(ctx, query)
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to match subscriptions",
			logging.EventID(evt.ID), logging.Error(err))
		return fmt.Errorf("match subscriptions: %w", err)
	}

	span.SetAttributes(attribute.Int("subscriptions.matched", len(subs)))

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for _, sub := range subs {
		g.Go(func() error {
			d.deliver(ctx, evt, sourceKey, isApp, sub)
			return nil
		})
	}
	_ = g.Wait()

	return nil
}

// deliver authorizes one candidate and enqueues its envelope.
func (d *Distributor) deliver(ctx context.Context, evt *models.CloudEvent, sourceKey string, isApp bool, sub *models.Subscription) {
	allowed, err := d.authorize(ctx, evt, sourceKey, isApp, sub.Consumer)
	if err != nil {
		metrics.AuthorizationDecisionsTotal.WithLabelValues("error").Inc()
		d.logger.ErrorContext(ctx, "failed to authorize consumer",
			logging.EventID(evt.ID), logging.SubscriptionID(sub.ID), logging.Consumer(sub.Consumer), logging.Error(err))
		return
	}
	if !allowed {
		metrics.AuthorizationDecisionsTotal.WithLabelValues("deny").Inc()
		return
	}
	metrics.AuthorizationDecisionsTotal.WithLabelValues("permit").Inc()

	envelope := &models.CloudEventEnvelope{
		CloudEvent:     evt,
		Consumer:       sub.Consumer,
		SubscriptionID: sub.ID,
		Endpoint:       sub.EndPoint,
		Pushed:         d.now().UTC(),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		metrics.EnvelopesEnqueuedTotal.WithLabelValues("error").Inc()
		d.logger.ErrorContext(ctx, "failed to serialize envelope",
			logging.EventID(evt.ID), logging.SubscriptionID(sub.ID), logging.Error(err))
		return
	}

	if receipt := d.queue.EnqueueOutbound(ctx, string(payload)); !receipt.Success {
		metrics.EnvelopesEnqueuedTotal.WithLabelValues("error").Inc()
		d.logger.ErrorContext(ctx, "failed to enqueue outbound envelope",
			logging.EventID(evt.ID), logging.SubscriptionID(sub.ID), logging.Error(receipt.Err))
		return
	}

	metrics.EnvelopesEnqueuedTotal.WithLabelValues("success").Inc()
	tracing.AddSpanEvent(ctx, "envelope.enqueued", attribute.Int64("subscription.id", sub.ID))
}

// authorize returns the cached decision for (sourceKey, consumer). The key ignores the
// event subject: decisions are assumed to be source and consumer scoped.
func (d *Distributor) authorize(ctx context.Context, evt *models.CloudEvent, sourceKey string, isApp bool, consumer string) (bool, error) {
	key := authorizationKey(sourceKey, consumer, isApp, evt.Resource)
	return cache.GetOrLoad(ctx, d.decisions, key, func(ctx context.Context) (bool, error) {
		if isApp {
			return d.gate.AuthorizeConsumerForAltinnAppEvent(ctx, evt, consumer)
		}
		return d.gate.AuthorizeConsumerForGenericEvent(ctx, evt, consumer)
	})
}

// Key components are query-escaped so a ':' inside a source, subject or resource cannot
// shift one field into the next.
func subscriptionKey(q models.MatchQuery) string {
	return fmt.Sprintf("subscriptions:so:%s:su:%s:ty:%s:re:%s",
		url.QueryEscape(q.SourceKey), url.QueryEscape(q.Subject), url.QueryEscape(q.Type), url.QueryEscape(q.Resource))
}

func authorizationKey(sourceKey, consumer string, isApp bool, resource string) string {
	key := fmt.Sprintf("authorizationdecision:so:%s:co:%s", url.QueryEscape(sourceKey), url.QueryEscape(consumer))
	if !isApp {
		key += ":re:" + url.QueryEscape(resource)
	}
	return key
}
