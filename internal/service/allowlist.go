package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AllowList records refresh tokens that are still valid, keyed by JTI.
// Logout and rotation remove entries.
type AllowList interface {
	Add(ctx context.Context, jti string, userID int64, ttl time.Duration) error
	Exists(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string) error
}

const RedisKeyPrefix = "condoadmin:devapi:refresh:"

type RedisAllowList struct {
	redis *redis.Client
}

func NewRedisAllowList(rdb *redis.Client) *RedisAllowList {
	return &RedisAllowList{redis: rdb}
}

func (a *RedisAllowList) Add(ctx context.Context, jti string, userID int64, ttl time.Duration) error {
	return a.redis.Set(ctx, RedisKeyPrefix+jti, strconv.FormatInt(userID, 10), ttl).Err()
}

func (a *RedisAllowList) Exists(ctx context.Context, jti string) (bool, error) {
	err := a.redis.Get(ctx, RedisKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (a *RedisAllowList) Revoke(ctx context.Context, jti string) error {
	return a.redis.Del(ctx, RedisKeyPrefix+jti).Err()
}

type MemoryAllowList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryAllowList() *MemoryAllowList {
	return &MemoryAllowList{entries: make(map[string]time.Time), now: time.Now}
}

func (a *MemoryAllowList) Add(_ context.Context, jti string, _ int64, ttl time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[jti] = a.now().Add(ttl)
	return nil
}

func (a *MemoryAllowList) Exists(_ context.Context, jti string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	exp, ok := a.entries[jti]
	if !ok {
		return false, nil
	}
	if a.now().After(exp) {
		delete(a.entries, jti)
		return false, nil
	}
	return true, nil
}

func (a *MemoryAllowList) Revoke(_ context.Context, jti string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, jti)
	return nil
}
