package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/eventhawk-systems/eventhawk-stack/common/audit"
	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/common/messaging"
	natsclient "github.com/eventhawk-systems/eventhawk-stack/common/messaging/nats"
	"github.com/eventhawk-systems/eventhawk-stack/common/tracing"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/authorization"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/cache"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/config"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/distributor"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/queue"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/register"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/repository"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/subscription"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/tracelog"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/webhook"
)

// components holds everything the serve and worker commands share.
type components struct {
	repo        repository.Repository
	broker      *natsclient.JetStreamClient
	registry    *subscription.Service
	distributor *distributor.Distributor
	dispatcher  *webhook.Dispatcher

	closers []func(context.Context) error
}

// close releases resources in reverse order of creation.
func (c *components) close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			slog.Warn("shutdown step failed", slog.String("error", err.Error()))
		}
	}
}

func (c *components) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

// buildComponents connects every backing service named in cfg.
func buildComponents(ctx context.Context, cfg *config.Config, logger *logging.Logger) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.close(context.Background())
		}
	}()

	if cfg.Tracing.Enabled {
		exporter := tracing.NewLogExporter(logger.Logger)
		c.onClose(tracing.NewProvider(cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio, exporter))
	}

	// Subscription store
	switch cfg.Database.Backend {
	case "memory":
		logger.Warn("using in-memory subscription store; subscriptions are lost on restart")
		c.repo = repository.NewInMemoryRepository()
	default:
		pg, err := repository.NewPostgresRepository(ctx, cfg.Database.Postgres.ConnString())
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		c.repo = pg
	}
	c.onClose(func(context.Context) error { return c.repo.Close() })

	// Match and authorization caches
	var store cache.Store
	switch cfg.Events.CacheBackend {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.MaxRetries, cfg.Redis.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		c.onClose(func(context.Context) error { return client.Close() })
		store = cache.NewRedisStore(client, "events:")
	default:
		store = cache.NewMemoryStore()
	}
	subscriptionCache := cache.New("subscriptions", store, cfg.Events.SubscriptionCacheTTL, logger)
	decisionCache := cache.New("authorization", store, cfg.Events.AuthorizationCacheTTL, logger)

	// Queue transport
	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = cfg.NATS.URL
	natsCfg.Name = "events"
	natsCfg.MaxReconnects = cfg.NATS.MaxReconnects
	natsCfg.ReconnectWait = cfg.NATS.ReconnectWait
	c.broker, err = natsclient.NewJetStreamClient(natsCfg, cfg.NATS.NakDelay)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	c.onClose(func(context.Context) error { return c.broker.Drain() })
	if err := ensureStreams(ctx, c.broker, cfg); err != nil {
		return nil, err
	}
	q := queue.NewBrokerClient(c.broker)

	// External collaborators
	gate := authorization.NewPDPClient(cfg.Authorization.URL, cfg.Authorization.Timeout)
	parties := register.New(cfg.Register.URL, cfg.Register.Timeout)

	var sink tracelog.Sink = tracelog.NewLogSink(logger)
	if cfg.OpenSearch.Enabled {
		osSink, err := tracelog.NewOpenSearchSink(tracelog.OpenSearchConfig{
			URL:      cfg.OpenSearch.URL,
			Username: cfg.OpenSearch.Username,
			Password: cfg.OpenSearch.Password,
			Insecure: cfg.OpenSearch.Insecure,
			Index:    cfg.OpenSearch.Index,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to opensearch: %w", err)
		}
		sink = osSink
	}

	c.registry = subscription.NewService(c.repo, q, gate, parties, subscription.Config{AppsDomain: cfg.Events.AppsDomain}, logger)
	c.distributor = distributor.New(c.repo, gate, q, subscriptionCache, decisionCache, distributor.Config{
		AppsDomain:  cfg.Events.AppsDomain,
		Concurrency: cfg.Events.FanoutConcurrency,
	}, logger)
	c.dispatcher = webhook.NewDispatcher(webhook.Config{
		Timeout:   cfg.Webhook.Timeout,
		ChatHosts: cfg.Webhook.ChatHosts,
		UserAgent: cfg.Webhook.UserAgent,
		Signer:    audit.NewSigner(cfg.Webhook.TraceSigningKey),
	}, sink, logger)

	return c, nil
}

// ensureStreams declares the outbound and validation streams and their durable consumers.
func ensureStreams(ctx context.Context, broker *natsclient.JetStreamClient, cfg *config.Config) error {
	for _, stream := range []natsclient.StreamConfig{natsclient.OutboundStream, natsclient.ValidationStream} {
		if err := broker.CreateOrUpdateStream(ctx, stream); err != nil {
			return err
		}
	}

	consumers := []struct {
		stream string
		cfg    natsclient.ConsumerConfig
	}{
		{natsclient.OutboundStream.Name, natsclient.ConsumerConfig{
			Name:          messaging.ConsumerOutboundWorkers,
			FilterSubject: natsclient.OutboundStream.Subjects[0],
			AckWait:       cfg.NATS.AckWait,
			MaxDeliver:    cfg.NATS.MaxDeliver,
			MaxAckPending: cfg.Events.OutboundWorkers,
		}},
		{natsclient.ValidationStream.Name, natsclient.ConsumerConfig{
			Name:          messaging.ConsumerValidationWorkers,
			FilterSubject: natsclient.ValidationStream.Subjects[0],
			AckWait:       cfg.NATS.AckWait,
			MaxDeliver:    cfg.NATS.MaxDeliver,
			MaxAckPending: 1,
		}},
	}
	for _, c := range consumers {
		if err := broker.CreateOrUpdateConsumer(ctx, c.stream, c.cfg); err != nil {
			return err
		}
	}
	return nil
}

// runMigrations applies every pending migration from source.
func runMigrations(cfg *config.Config, source string, logger *logging.Logger) error {
	m, err := migrate.New(source, cfg.Database.Postgres.ConnString())
	if err != nil {
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")
	return nil
}
