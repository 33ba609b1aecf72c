package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"countdown.share/config"
)

// Open connects the store selected by cfg.Store.Type.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Type {
	case config.StoreRedis:
		return NewRedisStore(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		}, cfg.Share.Retention)
	case config.StorePostgres:
		return NewPostgresStore(ctx, cfg.Store.Postgres.DSN)
	case config.StoreREST:
		return NewRESTStore(RESTConfig{
			URL:     cfg.Store.REST.URL,
			Key:     cfg.Store.REST.Key,
			Table:   cfg.Store.REST.Table,
			Timeout: cfg.Share.Timeout,
		})
	default:
		return NewMemoryStore(cfg.Share.Retention, time.Minute), nil
	}
}
