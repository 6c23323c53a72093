package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"

	"github.com/shion-ptpe/oauth/internal/logger"
)

type DB struct {
	*sql.DB
}

// Open connects to PostgreSQL, retrying the initial ping with
// exponential backoff until maxWait elapses or ctx is done.
func Open(ctx context.Context, dsn string, maxWait time.Duration) (*DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return sqlDB.PingContext(pingCtx)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("database not ready, retrying", map[string]any{
			"error": err.Error(),
			"retry": next.String(),
		})
	}

	if err := backoff.RetryNotify(ping, connectBackoff(ctx, maxWait), notify); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}

func connectBackoff(ctx context.Context, maxWait time.Duration) backoff.BackOff {
	return backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     250 * time.Millisecond,
		RandomizationFactor: 0.5,
		Multiplier:          1.7,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      maxWait,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}, ctx)
}
