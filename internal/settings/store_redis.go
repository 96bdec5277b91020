package settings

import (
	"context"
	"strconv"
	"sync"

	"github.com/park285/chess-broadcast/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keySettings = "broadcast:settings"

// RedisStore keeps settings in a single hash so admin edits are atomic.
type RedisStore struct{ rdb *redis.Client }

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Load(ctx context.Context) (domain.BroadcastSettings, bool, error) {
	m, err := s.rdb.HGetAll(ctx, keySettings).Result()
	if err != nil {
		return domain.BroadcastSettings{}, false, err
	}
	if len(m) == 0 {
		return domain.BroadcastSettings{}, false, nil
	}
	enabled, _ := strconv.ParseBool(m["enabled"])
	return domain.BroadcastSettings{
		Enabled:               enabled,
		BaseURL:               m["base_url"],
		TournamentURLTemplate: m["tournament_url_template"],
		RoundURLTemplate:      m["round_url_template"],
	}, true, nil
}

func (s *RedisStore) Save(ctx context.Context, v domain.BroadcastSettings) error {
	return s.rdb.HSet(ctx, keySettings, map[string]any{
		"enabled":                 strconv.FormatBool(v.Enabled),
		"base_url":                v.BaseURL,
		"tournament_url_template": v.TournamentURLTemplate,
		"round_url_template":      v.RoundURLTemplate,
	}).Err()
}

// MemoryStore is used when no Redis is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	value *domain.BroadcastSettings
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(ctx context.Context) (domain.BroadcastSettings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.value == nil {
		return domain.BroadcastSettings{}, false, nil
	}
	return *s.value, true, nil
}

func (s *MemoryStore) Save(ctx context.Context, v domain.BroadcastSettings) error {
	s.mu.Lock()
	s.value = &v
	s.mu.Unlock()
	return nil
}
