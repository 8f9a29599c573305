// Package ratestore keeps rate-limiter counters in Redis so limits hold across instances.
package ratestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "ratelimit:"

// Redis implements fiber.Storage on top of go-redis.
type Redis struct {
	rdb     redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, cfg Config) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return New(rdb), nil
}

// New wraps an existing client.
func New(rdb redis.UniversalClient) *Redis {
	return &Redis{rdb: rdb, prefix: defaultPrefix, timeout: 2 * time.Second}
}

func (r *Redis) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

// Get returns nil, nil for a missing key as fiber.Storage requires.
func (r *Redis) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := r.ctx()
	defer cancel()

	val, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (r *Redis) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := r.ctx()
	defer cancel()
	return r.rdb.Set(ctx, r.prefix+key, val, exp).Err()
}

func (r *Redis) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := r.ctx()
	defer cancel()
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

// Reset removes every key under the limiter prefix.
func (r *Redis) Reset() error {
	ctx, cancel := r.ctx()
	defer cancel()

	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.Del(ctx, keys...).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
