package credential

import (
	"context"
	"errors"
	"fmt"

	"condoadmin/pkg/constraints"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "condoadmin:credentials:"

// RedisStore keeps the pair under two string keys so that several console
// processes on the same host share one login.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) accessKey() string {
	return s.prefix + constraints.KeyAccessToken
}

func (s *RedisStore) refreshKey() string {
	return s.prefix + constraints.KeyRefreshToken
}

func (s *RedisStore) Get(ctx context.Context) (*Pair, error) {
	vals, err := s.client.MGet(ctx, s.accessKey(), s.refreshKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("credential: redis get: %w", err)
	}
	if len(vals) != 2 {
		return nil, nil
	}

	access, _ := vals[0].(string)
	if access == "" {
		return nil, nil
	}
	refresh, _ := vals[1].(string)
	return &Pair{Access: access, Refresh: refresh}, nil
}

func (s *RedisStore) Set(ctx context.Context, p Pair) error {
	if err := validate(p); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.accessKey(), p.Access, 0)
		if p.Refresh == "" {
			pipe.Del(ctx, s.refreshKey())
		} else {
			pipe.Set(ctx, s.refreshKey(), p.Refresh, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("credential: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.accessKey(), s.refreshKey()).Err(); err != nil {
		return fmt.Errorf("credential: redis clear: %w", err)
	}
	return nil
}
