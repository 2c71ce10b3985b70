package repository

import (
	"context"
	"errors"

	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// Repository defines the interface for subscription persistence
type Repository interface {
	// FindSubscription returns an existing subscription with the same consumer, endpoint
	// and filter set, or ErrSubscriptionNotFound.
	FindSubscription(ctx context.Context, sub *models.Subscription, sourceHash string) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription, sourceHash string) (*models.Subscription, error)
	GetSubscription(ctx context.Context, id int64) (*models.Subscription, error)
	GetSubscriptionsByConsumer(ctx context.Context, consumer string, includeUnvalidated bool) ([]*models.Subscription, error)
	DeleteSubscription(ctx context.Context, id int64) error
	SetValidSubscription(ctx context.Context, id int64) error

	// GetSubscriptions returns validated subscriptions matching an outbound event.
	GetSubscriptions(ctx context.Context, q models.MatchQuery) ([]*models.Subscription, error)

	// Utility
	Ping(ctx context.Context) error
	Close() error
}
