// Package redis implements cache.Store on Redis. Every key lives under a
// namespace generation number; Flush bumps the generation so all previous
// keys become unreachable at once and age out through their TTL.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces eventcal keys.
const DefaultPrefix = "eventcal:list:"

// Store is a Redis-backed cache store.
type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// New creates a store. A zero ttl keeps entries until Redis evicts them.
func New(client redis.Cmdable, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (s *Store) generationKey() string {
	return s.prefix + "generation"
}

func (s *Store) generation(ctx context.Context) (int64, error) {
	gen, err := s.client.Get(ctx, s.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cache generation: %w", err)
	}
	return gen, nil
}

func (s *Store) key(ctx context.Context, key string) (string, error) {
	gen, err := s.generation(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d:%s", s.prefix, gen, key), nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	full, err := s.key(ctx, key)
	if err != nil {
		return nil, false, err
	}
	val, err := s.client.Get(ctx, full).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	full, err := s.key(ctx, key)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, full, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Flush moves the namespace to a new generation.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.client.Incr(ctx, s.generationKey()).Err(); err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return nil
}
