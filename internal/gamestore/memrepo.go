package gamestore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/chess-broadcast/internal/domain"
)

// MemoryRepository is an in-process Repository used for local development
// (no DATABASE_URL) and tests.
type MemoryRepository struct {
	mu sync.RWMutex

	seasons map[int64]domain.Season
	rounds  map[int64]domain.RoundMeta
	results map[int64]map[int]domain.GameRecordView // roundID -> board -> record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		seasons: make(map[int64]domain.Season),
		rounds:  make(map[int64]domain.RoundMeta),
		results: make(map[int64]map[int]domain.GameRecordView),
	}
}

// PutSeason inserts or replaces a season.
func (m *MemoryRepository) PutSeason(s domain.Season) {
	m.mu.Lock()
	m.seasons[s.ID] = s
	m.mu.Unlock()
}

// PutRound inserts or replaces a round.
func (m *MemoryRepository) PutRound(r domain.RoundMeta) {
	m.mu.Lock()
	m.rounds[r.ID] = r
	m.mu.Unlock()
}

func (m *MemoryRepository) FindRoundResults(ctx context.Context, roundID int64) ([]domain.GameRecordView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	boards := m.results[roundID]
	out := make([]domain.GameRecordView, 0, len(boards))
	for _, rec := range boards {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoardNumber < out[j].BoardNumber })
	return out, nil
}

func (m *MemoryRepository) FindRound(ctx context.Context, roundID int64) (*domain.RoundMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rounds[roundID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemoryRepository) ActiveSeason(ctx context.Context) (*domain.Season, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *domain.Season
	for _, s := range m.seasons {
		if !s.Active {
			continue
		}
		if best == nil || s.ID > best.ID {
			cp := s
			best = &cp
		}
	}
	return best, nil
}

func (m *MemoryRepository) ListSeasonRounds(ctx context.Context, seasonID int64) ([]domain.RoundSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.RoundSummary
	for _, r := range m.rounds {
		if r.SeasonID != seasonID {
			continue
		}
		verified := 0
		for _, rec := range m.results[r.ID] {
			if rec.Verified {
				verified++
			}
		}
		out = append(out, domain.RoundSummary{Round: r, VerifiedGames: verified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round.Number < out[j].Round.Number })
	return out, nil
}

func (m *MemoryRepository) UpsertResult(ctx context.Context, rec domain.GameRecordView) error {
	if err := validateResult(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rounds[rec.RoundID]; !ok {
		return ErrRoundNotFound
	}
	boards := m.results[rec.RoundID]
	if boards == nil {
		boards = make(map[int]domain.GameRecordView)
		m.results[rec.RoundID] = boards
	}
	rec.WhiteName = strings.TrimSpace(rec.WhiteName)
	rec.BlackName = strings.TrimSpace(rec.BlackName)
	// keep earlier assignments when the submission omits names, like the SQL COALESCE
	if prev, ok := boards[rec.BoardNumber]; ok {
		if rec.WhiteName == "" {
			rec.WhiteName = prev.WhiteName
		}
		if rec.BlackName == "" {
			rec.BlackName = prev.BlackName
		}
	}
	boards[rec.BoardNumber] = rec
	return nil
}

func (m *MemoryRepository) AssignPlayers(ctx context.Context, roundID int64, board int, white, black string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.results[roundID][board]
	if !ok {
		return ErrResultNotFound
	}
	rec.WhiteName = strings.TrimSpace(white)
	rec.BlackName = strings.TrimSpace(black)
	m.results[roundID][board] = rec
	return nil
}

func (m *MemoryRepository) VerifyResult(ctx context.Context, roundID int64, board int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.results[roundID][board]
	if !ok {
		return ErrResultNotFound
	}
	rec.Verified = true
	m.results[roundID][board] = rec
	return nil
}
