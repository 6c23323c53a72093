package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/shion-ptpe/oauth/internal/logger"
)

type Client struct {
	*goredis.Client
}

// New connects to Redis and waits up to maxWait for it to answer PING.
func New(ctx context.Context, addr, password string, maxWait time.Duration) (*Client, error) {

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait

	err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		logger.Warn("redis not ready, retrying", map[string]any{
			"addr":  addr,
			"error": err.Error(),
			"retry": next.String(),
		})
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}

	return &Client{Client: client}, nil

}
