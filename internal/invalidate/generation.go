// Package invalidate carries the best-effort "round changed" signal from the
// mutation path to the broadcast read path.
package invalidate

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Generations is a monotonic per-round counter bumped on every mutation.
type Generations interface {
	Current(ctx context.Context, roundID int64) (uint64, error)
	Bump(ctx context.Context, roundID int64) (uint64, error)
}

type MemoryGenerations struct {
	mu  sync.Mutex
	gen map[int64]uint64
}

func NewMemoryGenerations() *MemoryGenerations {
	return &MemoryGenerations{gen: make(map[int64]uint64)}
}

func (m *MemoryGenerations) Current(_ context.Context, roundID int64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen[roundID], nil
}

func (m *MemoryGenerations) Bump(_ context.Context, roundID int64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen[roundID]++
	return m.gen[roundID], nil
}

// RedisGenerations shares counters between instances behind a load balancer.
type RedisGenerations struct{ rdb *redis.Client }

func NewRedisGenerations(rdb *redis.Client) *RedisGenerations { return &RedisGenerations{rdb: rdb} }

func keyGeneration(roundID int64) string { return "broadcast:gen:" + strconv.FormatInt(roundID, 10) }

func (r *RedisGenerations) Current(ctx context.Context, roundID int64) (uint64, error) {
	n, err := r.rdb.Get(ctx, keyGeneration(roundID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (r *RedisGenerations) Bump(ctx context.Context, roundID int64) (uint64, error) {
	n, err := r.rdb.Incr(ctx, keyGeneration(roundID)).Result()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}
