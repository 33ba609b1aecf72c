package store

import (
	"context"
	"errors"

	"countdown.share/internal/models"
)

var (
	ErrNotFound  = errors.New("countdown not found")
	ErrConflict  = errors.New("share id already taken")
	ErrDuplicate = errors.New("share id matches more than one countdown")
)

// Store is the remote record store of shared countdowns. Records are
// insert-once; there is no update or delete. Get does not interpret
// ExpiresAt, expired records are returned like any other.
type Store interface {
	// Create inserts c, failing with ErrConflict if its share id exists.
	Create(ctx context.Context, c *models.SharedCountdown) error
	Get(ctx context.Context, shareID string) (*models.SharedCountdown, error)
	Ping(ctx context.Context) error
	Close() error
}
