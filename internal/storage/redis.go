package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"domainwatch/internal/models"
)

const saveBatchSize = 500

// RedisHistory keeps the domain history in a redis set.
type RedisHistory struct {
	rdb *redis.Client
	key string
}

// NewRedisHistory wraps an existing client; key names the set.
func NewRedisHistory(rdb *redis.Client, key string) *RedisHistory {
	return &RedisHistory{rdb: rdb, key: key}
}

// Ping checks that the server is reachable.
func (s *RedisHistory) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Load reads every member of the set.
func (s *RedisHistory) Load(ctx context.Context) (models.DomainSet, error) {
	members, err := s.rdb.SMembers(ctx, s.key).Result()
	if err != nil {
		return models.NewDomainSet(), fmt.Errorf("read history set %s: %w", s.key, err)
	}
	return models.NewDomainSet(members...), nil
}

// Save adds the full set. Members are never removed, so SADD is enough.
func (s *RedisHistory) Save(ctx context.Context, domains models.DomainSet) error {
	if domains.Len() == 0 {
		return nil
	}

	members := domains.Sorted()
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for start := 0; start < len(members); start += saveBatchSize {
			end := min(start+saveBatchSize, len(members))
			batch := make([]any, 0, end-start)
			for _, m := range members[start:end] {
				batch = append(batch, m)
			}
			pipe.SAdd(ctx, s.key, batch...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write history set %s: %w", s.key, err)
	}
	return nil
}
