package lock

import (
	"collection-ledger/internal/config"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisLocker serializes work across service instances with a Redis lease.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	logger *slog.Logger
}

func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("Connected to Redis.", "addr", cfg.Addr)
	return rdb, nil
}

func NewRedisLocker(client redislock.RedisClient, cfg config.LockingConfig, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(client),
		ttl:    cfg.TTL,
		wait:   cfg.Wait,
		logger: logger.With("component", "RedisLocker"),
	}
}

func (r *RedisLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	obtainCtx := ctx
	if r.wait > 0 {
		var cancel context.CancelFunc
		obtainCtx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}

	l, err := r.client.Obtain(obtainCtx, key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.ExponentialBackoff(20*time.Millisecond, 500*time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		r.logger.WarnContext(ctx, "Could not obtain lock", "key", key)
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Error obtaining lock", "key", key, slog.Any("error", err))
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return &redisLock{lock: l, logger: r.logger}, nil
}

type redisLock struct {
	lock   *redislock.Lock
	logger *slog.Logger
}

func (l *redisLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		l.logger.WarnContext(ctx, "Lock expired before release", "key", l.lock.Key())
		return nil
	}
	return err
}
