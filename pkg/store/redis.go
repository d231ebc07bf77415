// Package store shares the latest snapshot through Redis so a dashboard in a
// separate process can serve it. Keys expire after a few ticks; nothing
// outlives the sampler that wrote it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ChatDash/pkg/stats"
)

// DefaultKey is where the snapshot is stored.
const DefaultKey = "chatdash:snapshot"

// ErrNoSnapshot means no sampler has published recently.
var ErrNoSnapshot = errors.New("store: no snapshot published")

// Client is the subset of the Redis API the store needs.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore publishes and reads snapshots under a single key.
type RedisStore struct {
	Client Client
	Key    string
	TTL    time.Duration
}

// NewRedisStore is the constructor. A zero ttl means the key never expires.
func NewRedisStore(client Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{
		Client: client,
		Key:    key,
		TTL:    ttl,
	}
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// Publish implements stats.Publisher.
func (s *RedisStore) Publish(ctx context.Context, snap stats.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.Client.Set(ctx, s.Key, payload, s.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.Key, err)
	}
	return nil
}

// Latest reads the most recently published snapshot.
func (s *RedisStore) Latest(ctx context.Context) (stats.Snapshot, error) {
	raw, err := s.Client.Get(ctx, s.Key).Bytes()
	if err == redis.Nil {
		return stats.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return stats.Snapshot{}, fmt.Errorf("redis get %s: %w", s.Key, err)
	}

	var snap stats.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return stats.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
