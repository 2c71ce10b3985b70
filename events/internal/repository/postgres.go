package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventhawk-systems/eventhawk-stack/common/database"
	"github.com/eventhawk-systems/eventhawk-stack/events/internal/models"
)

const subscriptionColumns = `
	id, resourcefilter, sourcefilter, subjectfilter, typefilter,
	consumer, endpoint, createdby, created, validated`

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Connection pool configuration
	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// FindSubscription looks up a subscription with an identical filter set
func (r *PostgresRepository) FindSubscription(ctx context.Context, sub *models.Subscription, sourceHash string) (*models.Subscription, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT ` + subscriptionColumns + `
		FROM events.subscription
		WHERE consumer = $1
		  AND endpoint = $2
		  AND resourcefilter IS NOT DISTINCT FROM $3
		  AND sourcefilterhash IS NOT DISTINCT FROM $4
		  AND subjectfilter IS NOT DISTINCT FROM $5
		  AND typefilter IS NOT DISTINCT FROM $6
		ORDER BY id
		LIMIT 1
	`

	row := r.pool.QueryRow(ctx, query,
		sub.Consumer, sub.EndPoint, nullIfEmpty(sub.ResourceFilter), nullIfEmpty(sourceHash),
		nullIfEmpty(sub.SubjectFilter), nullIfEmpty(sub.TypeFilter),
	)
	found, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return found, nil
}

// CreateSubscription inserts a new, unvalidated subscription
func (r *PostgresRepository) CreateSubscription(ctx context.Context, sub *models.Subscription, sourceHash string) (*models.Subscription, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO events.subscription
			(resourcefilter, sourcefilter, sourcefilterhash, subjectfilter, typefilter,
			 consumer, endpoint, createdby, created, validated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), FALSE)
		RETURNING ` + subscriptionColumns

	row := r.pool.QueryRow(ctx, query,
		nullIfEmpty(sub.ResourceFilter), nullIfEmpty(sub.SourceFilter), nullIfEmpty(sourceHash),
		nullIfEmpty(sub.SubjectFilter), nullIfEmpty(sub.TypeFilter),
		sub.Consumer, sub.EndPoint, sub.CreatedBy,
	)
	created, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return created, nil
}

// GetSubscription retrieves a subscription by ID
func (r *PostgresRepository) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `SELECT ` + subscriptionColumns + ` FROM events.subscription WHERE id = $1`

	sub, err := scanSubscription(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// GetSubscriptionsByConsumer lists a consumer's subscriptions, newest first
func (r *PostgresRepository) GetSubscriptionsByConsumer(ctx context.Context, consumer string, includeUnvalidated bool) ([]*models.Subscription, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT ` + subscriptionColumns + `
		FROM events.subscription
		WHERE consumer = $1
		  AND (validated OR $2)
		ORDER BY id DESC
	`

	rows, err := r.pool.Query(ctx, query, consumer, includeUnvalidated)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

// DeleteSubscription removes a subscription
func (r *PostgresRepository) DeleteSubscription(ctx context.Context, id int64) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM events.subscription WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// SetValidSubscription marks a subscription as validated
func (r *PostgresRepository) SetValidSubscription(ctx context.Context, id int64) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `UPDATE events.subscription SET validated = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to validate subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// GetSubscriptions returns validated subscriptions matching an outbound event.
// The source filter matches the source key exactly or as a LIKE pattern. Subscriptions
// without a source filter match on the resource filter alone.
func (r *PostgresRepository) GetSubscriptions(ctx context.Context, q models.MatchQuery) ([]*models.Subscription, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT ` + subscriptionColumns + `
		FROM events.subscription
		WHERE validated
		  AND (
		        sourcefilter = $1
		     OR $1 LIKE sourcefilter
		     OR (sourcefilter IS NULL AND resourcefilter = $4)
		  )
		  AND ($4 = '' OR resourcefilter IS NULL OR resourcefilter = $4)
		  AND (subjectfilter IS NULL OR subjectfilter = $2)
		  AND (typefilter IS NULL OR typefilter = $3)
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, q.SourceKey, q.Subject, q.Type, q.Resource)
	if err != nil {
		return nil, fmt.Errorf("failed to query matching subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var (
		sub                                  models.Subscription
		resource, source, subject, eventType *string
	)
	err := row.Scan(
		&sub.ID, &resource, &source, &subject, &eventType,
		&sub.Consumer, &sub.EndPoint, &sub.CreatedBy, &sub.Created, &sub.Validated,
	)
	if err != nil {
		return nil, err
	}

	sub.ResourceFilter = deref(resource)
	sub.SourceFilter = deref(source)
	sub.SubjectFilter = deref(subject)
	sub.TypeFilter = deref(eventType)
	return &sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]*models.Subscription, error) {
	defer rows.Close()

	subs := make([]*models.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}
	return subs, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
