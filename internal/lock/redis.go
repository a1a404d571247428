package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"finassist/internal/logger"
)

const releaseTimeout = 5 * time.Second

// Redis is a Locker shared by every instance pointed at the same Redis.
type Redis struct {
	client  *redis.Client
	locker  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
	log     zerolog.Logger
}

// NewRedis connects to the Redis at url (redis://host:port/db) and checks it
// answers. ttl bounds how long a crashed holder can keep a period locked.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	const op = "NewRedis"

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid redis url: %w", op, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to reach redis at %s: %w", op, opts.Addr, err)
	}

	return &Redis{
		client:  client,
		locker:  redislock.New(client),
		ttl:     ttl,
		backoff: 100 * time.Millisecond,
		log:     logger.WithComponent("lock"),
	}, nil
}

// Acquire retries until the lock is obtained or ctx ends.
func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	const op = "Redis.Acquire"

	l, err := r.locker.Obtain(ctx, "finassist:lock:"+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(r.backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%s: %s: %w", op, key, ErrNotObtained)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := l.Release(releaseCtx); err != nil {
				// An expired TTL already freed the key.
				r.log.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
			}
		})
	}, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
