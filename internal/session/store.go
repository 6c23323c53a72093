package session

import (
	"context"
	"errors"
	"time"
)

var ErrNoSession = errors.New("session: not found")

// Store defines how sessions are stored and retrieved.
// Implementations must expire entries after the given ttl.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}
