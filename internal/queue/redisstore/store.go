// Package redisstore implements the job store contract on Redis: lists for
// the dispatch queue, hashes for job records, and sets for seen-sets.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"spool/internal/queue"
)

// Store is a queue.Store backed by a go-redis client.
type Store struct {
	rdb *redis.Client
}

// Open parses a redis:// URL and returns a connected store. The connection is
// not verified until Ping.
func Open(rawURL string) (*Store, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return New(redis.NewClient(opts)), nil
}

// New wraps an existing client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Dialer returns a queue.Dialer that opens a new client per call.
func Dialer(rawURL string) queue.Dialer {
	return func(context.Context) (queue.Store, error) {
		return Open(rawURL)
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// Push performs LPUSH; BlockingPop uses BRPOP so the list drains FIFO.
func (s *Store) Push(ctx context.Context, list, value string) error {
	return s.rdb.LPush(ctx, list, value).Err()
}

func (s *Store) BlockingPop(ctx context.Context, list string, timeout time.Duration) (string, error) {
	res, err := s.rdb.BRPop(ctx, timeout, list).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	// BRPOP replies with [key, value].
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

func (s *Store) Len(ctx context.Context, list string) (int64, error) {
	return s.rdb.LLen(ctx, list).Result()
}

func (s *Store) SetFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return s.rdb.HSet(ctx, key, values).Err()
}

func (s *Store) GetAllFields(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

func (s *Store) SetAdd(ctx context.Context, key, member string) (bool, error) {
	n, err := s.rdb.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) SetContains(ctx context.Context, key, member string) (bool, error) {
	return s.rdb.SIsMember(ctx, key, member).Result()
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}
