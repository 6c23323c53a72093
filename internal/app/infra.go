package app

import (
	"context"
	"errors"
	"time"

	"github.com/shion-ptpe/oauth/internal/config"
	"github.com/shion-ptpe/oauth/internal/db"
	"github.com/shion-ptpe/oauth/internal/logger"
	"github.com/shion-ptpe/oauth/internal/redis"
	"github.com/shion-ptpe/oauth/internal/session"
)

const startupWait = 30 * time.Second

type Infra struct {
	DB       *db.DB
	Redis    *redis.Client
	Sessions session.Store
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	database, err := db.Open(ctx, cfg.DatabaseDSN, startupWait)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx, database.DB); err != nil {
		_ = database.Close()
		return nil, err
	}

	logger.Info("database ready", nil)

	infra := &Infra{DB: database}

	if cfg.RedisAddr == "" {
		store := session.NewMemoryStore(cfg.Session.TTL)
		infra.Sessions = store
		logger.Warn("REDIS_ADDR not set, sessions are kept in memory", map[string]any{
			"store": store.Type(),
		})
		return infra, nil
	}

	redisClient, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, startupWait)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	infra.Redis = redisClient
	infra.Sessions = session.NewRedisStore(redisClient.Client)

	logger.Info("redis ready", map[string]any{
		"addr": cfg.RedisAddr,
	})

	return infra, nil
}

func (i *Infra) Close() error {
	var errs []error
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	errs = append(errs, i.DB.Close())
	return errors.Join(errs...)
}
