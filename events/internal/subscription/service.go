// Package subscription implements the subscription registry: validation, enrichment,
// authorization, deduplication and persistence of subscription requests.
package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/eventhawk-systems/eventhawk-stack/common/logging"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/authorization"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/identity"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/metrics"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/queue"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/register"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/repository"
)

// AppResourcePrefix marks resource filters that belong to app events.
const AppResourcePrefix = "urn:altinn:resource:app_"

const (
	msgNoIdentity   = "Unable to resolve the identity of the caller"
	msgNotOwner     = "Not authorized to access this subscription"
	msgNotFound     = "Subscription not found"
	msgNotAuthorize = "Not authorized to create a subscription with subject %s"
)

// Config holds registry settings.
type Config struct {
	// AppsDomain is the host suffix app source filters must be on. Empty accepts any host.
	AppsDomain string
}

// Service handles business logic for subscriptions
type Service struct {
	repo    repository.Repository
	queue   queue.Client
	gate    authorization.Gate
	app     *appVariant
	generic *genericVariant
	logger  *logging.Logger
}

// NewService creates a new subscription service
func NewService(repo repository.Repository, q queue.Client, gate authorization.Gate, parties register.PartyLookup, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		queue:   q,
		gate:    gate,
		app:     &appVariant{gate: gate, parties: parties, appsDomain: cfg.AppsDomain, logger: logger},
		generic: &genericVariant{},
		logger:  logger,
	}
}

// IsAppResource reports whether a resource filter selects the app variant. An empty
// filter does too, since app subscriptions derive theirs from the source filter.
func IsAppResource(resourceFilter string) bool {
	return resourceFilter == "" || strings.HasPrefix(resourceFilter, AppResourcePrefix)
}

// CreateSubscription routes the request to the app or generic variant by its resource filter.
func (s *Service) CreateSubscription(ctx context.Context, caller identity.Identity, req *models.SubscriptionRequest) (*models.Subscription, error) {
	if IsAppResource(req.ResourceFilter) {
		return s.CreateAppSubscription(ctx, caller, req)
	}
	return s.CreateGenericSubscription(ctx, caller, req)
}

// CreateAppSubscription creates a subscription for app events
func (s *Service) CreateAppSubscription(ctx context.Context, caller identity.Identity, req *models.SubscriptionRequest) (*models.Subscription, error) {
	return s.create(ctx, s.app, caller, req)
}

// CreateGenericSubscription creates a subscription for generic resource events
func (s *Service) CreateGenericSubscription(ctx context.Context, caller identity.Identity, req *models.SubscriptionRequest) (*models.Subscription, error) {
	return s.create(ctx, s.generic, caller, req)
}

func (s *Service) create(ctx context.Context, v variant, caller identity.Identity, req *models.SubscriptionRequest) (*models.Subscription, error) {
	if caller.IsEmpty() {
		return nil, models.NewUnauthorizedError(msgNoIdentity)
	}

	sub := &models.Subscription{
		EndPoint:                 strings.TrimSpace(req.EndPoint),
		SourceFilter:             strings.TrimSpace(req.SourceFilter),
		SubjectFilter:            strings.TrimSpace(req.SubjectFilter),
		AlternativeSubjectFilter: strings.TrimSpace(req.AlternativeSubjectFilter),
		TypeFilter:               strings.TrimSpace(req.TypeFilter),
		ResourceFilter:           strings.TrimSpace(req.ResourceFilter),
		Consumer:                 caller.Consumer,
		CreatedBy:                caller.Consumer,
	}

	if msg := validateEndpoint(sub.EndPoint); msg != "" {
		return nil, models.NewValidationError(msg)
	}

	v.enrich(ctx, sub)

	if msg := v.validate(caller, sub); msg != "" {
		return nil, models.NewValidationError(msg)
	}

	gated, err := v.authorize(ctx, caller, sub)
	if err != nil {
		return nil, err
	}

	created, err := s.complete(ctx, sub, gated)
	if err != nil {
		return nil, err
	}
	metrics.SubscriptionsCreatedTotal.WithLabelValues(v.name()).Inc()
	return created, nil
}

// CompleteCreation authorizes the consumer, then returns an existing subscription with the
// same filter set or persists a new one and enqueues its validation handshake.
func (s *Service) CompleteCreation(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	return s.complete(ctx, sub, false)
}

// complete skips the gate when the variant already obtained a permit for sub.
func (s *Service) complete(ctx context.Context, sub *models.Subscription, gated bool) (*models.Subscription, error) {
	if !gated {
		allowed, err := s.gate.AuthorizeConsumerForEventsSubscription(ctx, sub)
		if err != nil {
			return nil, fmt.Errorf("authorize subscription: %w", err)
		}
		if !allowed {
			return nil, models.NewUnauthorizedError(fmt.Sprintf(msgNotAuthorize, sub.SubjectFilter))
		}
	}

	sourceHash := HashSourceFilter(sub.SourceFilter)

	existing, err := s.repo.FindSubscription(ctx, sub, sourceHash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, err
	}

	created, err := s.repo.CreateSubscription(ctx, sub, sourceHash)
	if err != nil {
		return nil, err
	}

	s.enqueueValidation(ctx, created)

	s.logger.InfoContext(ctx, "subscription created",
		logging.SubscriptionID(created.ID),
		logging.Consumer(created.Consumer),
	)
	return created, nil
}

func (s *Service) enqueueValidation(ctx context.Context, sub *models.Subscription) {
	payload, err := json.Marshal(sub)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to serialize subscription for validation",
			logging.SubscriptionID(sub.ID), logging.Error(err))
		return
	}

	// The subscription exists at this point; validation can be re-triggered.
	if receipt := s.queue.EnqueueSubscriptionValidation(ctx, string(payload)); !receipt.Success {
		s.logger.ErrorContext(ctx, "failed to enqueue subscription validation",
			logging.SubscriptionID(sub.ID), logging.Error(receipt.Err))
	}
}

// GetSubscription returns a subscription owned by the caller
func (s *Service) GetSubscription(ctx context.Context, caller identity.Identity, id int64) (*models.Subscription, error) {
	if caller.IsEmpty() {
		return nil, models.NewUnauthorizedError(msgNoIdentity)
	}
	return s.getOwned(ctx, caller, id)
}

// GetAllSubscriptions lists every subscription of the caller, validated or not
func (s *Service) GetAllSubscriptions(ctx context.Context, caller identity.Identity) ([]*models.Subscription, error) {
	if caller.IsEmpty() {
		return nil, models.NewUnauthorizedError(msgNoIdentity)
	}
	return s.repo.GetSubscriptionsByConsumer(ctx, caller.Consumer, true)
}

// DeleteSubscription deletes a subscription owned by the caller
func (s *Service) DeleteSubscription(ctx context.Context, caller identity.Identity, id int64) error {
	if caller.IsEmpty() {
		return models.NewUnauthorizedError(msgNoIdentity)
	}
	if _, err := s.getOwned(ctx, caller, id); err != nil {
		return err
	}

	if err := s.repo.DeleteSubscription(ctx, id); err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return models.NewNotFoundError(msgNotFound)
		}
		return err
	}

	s.logger.InfoContext(ctx, "subscription deleted",
		logging.SubscriptionID(id), logging.Consumer(caller.Consumer))
	return nil
}

// SetValidSubscription marks a subscription as validated. It is only reachable from the
// trusted validation path, so there is no ownership check.
func (s *Service) SetValidSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return nil, models.NewNotFoundError(msgNotFound)
		}
		return nil, err
	}

	if err := s.repo.SetValidSubscription(ctx, id); err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return nil, models.NewNotFoundError(msgNotFound)
		}
		return nil, err
	}
	sub.Validated = true

	metrics.SubscriptionsValidatedTotal.Inc()
	s.logger.InfoContext(ctx, "subscription validated", logging.SubscriptionID(id))
	return sub, nil
}

func (s *Service) getOwned(ctx context.Context, caller identity.Identity, id int64) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return nil, models.NewNotFoundError(msgNotFound)
		}
		return nil, err
	}
	if sub.CreatedBy != caller.Consumer {
		return nil, models.NewUnauthorizedError(msgNotOwner)
	}
	return sub, nil
}
