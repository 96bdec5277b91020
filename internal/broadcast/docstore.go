package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/park285/chess-broadcast/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DocumentStore persists the latest document per round. Save replaces the
// whole document; it never writes a document older than the stored one.
type DocumentStore interface {
	Load(ctx context.Context, roundID int64) (*domain.BroadcastDocument, error)
	Save(ctx context.Context, doc *domain.BroadcastDocument) error
}

const ttlDocument = 7 * 24 * time.Hour

func keyDocument(roundID int64) string { return "broadcast:doc:" + strconv.FormatInt(roundID, 10) }

type RedisDocumentStore struct{ rdb *redis.Client }

func NewRedisDocumentStore(rdb *redis.Client) *RedisDocumentStore {
	return &RedisDocumentStore{rdb: rdb}
}

func (s *RedisDocumentStore) Load(ctx context.Context, roundID int64) (*domain.BroadcastDocument, error) {
	raw, err := s.rdb.Get(ctx, keyDocument(roundID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc domain.BroadcastDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *RedisDocumentStore) Save(ctx context.Context, doc *domain.BroadcastDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	key := keyDocument(doc.RoundID)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		prev, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var cur domain.BroadcastDocument
			if json.Unmarshal(prev, &cur) == nil && cur.Generation > doc.Generation {
				return nil
			}
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, raw, ttlDocument)
		_, err = pipe.Exec(ctx)
		return err
	}, key)
	// 동시 저장 경합은 다른 쪽이 이긴 것으로 간주
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[int64]*domain.BroadcastDocument
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[int64]*domain.BroadcastDocument)}
}

func (s *MemoryDocumentStore) Load(ctx context.Context, roundID int64) (*domain.BroadcastDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[roundID]
	if !ok {
		return nil, nil
	}
	cp := *doc
	cp.Errors = append([]string(nil), doc.Errors...)
	return &cp, nil
}

func (s *MemoryDocumentStore) Save(ctx context.Context, doc *domain.BroadcastDocument) error {
	cp := *doc
	cp.Errors = append([]string(nil), doc.Errors...)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.docs[doc.RoundID]; ok && cur.Generation > doc.Generation {
		return nil
	}
	s.docs[doc.RoundID] = &cp
	return nil
}
