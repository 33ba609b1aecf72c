// redis.go
package store

import (
	"context"
	"errors"
	"time"

	"countdown.share/internal/models"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps each countdown in a hash whose fields are the table
// columns.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore connects to redis. A positive retention lets redis evict a
// record that long after it expires; zero keeps records indefinitely.
func NewRedisStore(options *redis.Options, retention time.Duration) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisStore{client: client, retention: retention}, nil
}

func (r *RedisStore) Create(ctx context.Context, c *models.SharedCountdown) error {
	key := countdownKey(c.ShareID)
	fields := toRow(c).fields()

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			if r.retention > 0 {
				pipe.ExpireAt(ctx, key, c.ExpiresAt.Add(r.retention))
			}
			return nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return redis.TxFailedErr
}

func (r *RedisStore) Get(ctx context.Context, shareID string) (*models.SharedCountdown, error) {
	m, err := r.client.HGetAll(ctx, countdownKey(shareID)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return rowFromFields(m).countdown()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Helpers

func countdownKey(shareID string) string {
	return "countdown:" + shareID
}
