// Package database holds timeouts shared by the SQL-backed repositories.
package database

import (
	"context"
	"time"
)

const (
	// DefaultQueryTimeout bounds subscription lookups, including the match query on the publish path.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds inserts, deletes and the validated flag update.
	DefaultWriteTimeout = 10 * time.Second
)

// QueryContext creates a context with DefaultQueryTimeout.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultQueryTimeout)
}

// WriteContext creates a context with DefaultWriteTimeout.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultWriteTimeout)
}
