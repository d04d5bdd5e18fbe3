// Package redis implements store.AgentStore on a Redis server. Records are
// JSON values keyed by agent ID, with a set maintaining the index of all
// registered agents.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agents-forge/forge/store"
)

// Store persists agent records in Redis.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.AgentStore = (*Store)(nil)

// Options configuration for the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "forge:"
	TTL      time.Duration // Expiration for records, default 0 (no expiration)
}

// New creates a Redis-backed agent store.
func New(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "forge:"
	}

	return &Store{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

func (s *Store) agentKey(id string) string {
	return fmt.Sprintf("%sagent:%s", s.prefix, id)
}

func (s *Store) indexKey() string {
	return s.prefix + "agents"
}

func (s *Store) Save(ctx context.Context, record *store.AgentRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal agent: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.agentKey(record.ID), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), record.ID)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save agent to redis: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (*store.AgentRecord, error) {
	data, err := s.client.Get(ctx, s.agentKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load agent from redis: %w", err)
	}

	var record store.AgentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent: %w", err)
	}
	return &record, nil
}

func (s *Store) List(ctx context.Context) ([]*store.AgentRecord, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	if len(ids) == 0 {
		return []*store.AgentRecord{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.agentKey(id))
	}

	// MGet returns nil for expired keys; those are skipped.
	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agents: %w", err)
	}

	var records []*store.AgentRecord
	for _, result := range results {
		strData, ok := result.(string)
		if !ok {
			continue
		}
		var record store.AgentRecord
		if err := json.Unmarshal([]byte(strData), &record); err != nil {
			continue
		}
		records = append(records, &record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	del := pipe.Del(ctx, s.agentKey(id))
	pipe.SRem(ctx, s.indexKey(), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	if del.Val() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
