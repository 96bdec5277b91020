package gamestore

import (
	"context"
	"errors"
	"time"

	"github.com/park285/chess-broadcast/internal/domain"
	"github.com/park285/chess-broadcast/internal/metrics"
	"github.com/park285/chess-broadcast/internal/obslog"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("game record store unavailable")

// BreakerRepository guards the read path with a circuit breaker so a dead
// database fails fast instead of stalling every poll. Writes pass through.
type BreakerRepository struct {
	Repository
	results *gobreaker.CircuitBreaker[[]domain.GameRecordView]
	rounds  *gobreaker.CircuitBreaker[*domain.RoundMeta]
}

func NewBreakerRepository(inner Repository) *BreakerRepository {
	settings := func(name string) gobreaker.Settings {
		metrics.StoreBreakerState.WithLabelValues(name).Set(0)
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// 호출자 취소는 저장소 장애로 보지 않음
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				obslog.L().Warn("store_breaker_state",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
				metrics.StoreBreakerState.WithLabelValues(name).Set(stateValue(to))
			},
		}
	}
	return &BreakerRepository{
		Repository: inner,
		results:    gobreaker.NewCircuitBreaker[[]domain.GameRecordView](settings("round_results")),
		rounds:     gobreaker.NewCircuitBreaker[*domain.RoundMeta](settings("rounds")),
	}
}

func (b *BreakerRepository) FindRoundResults(ctx context.Context, roundID int64) ([]domain.GameRecordView, error) {
	out, err := b.results.Execute(func() ([]domain.GameRecordView, error) {
		return b.Repository.FindRoundResults(ctx, roundID)
	})
	return out, translateBreakerErr(err)
}

func (b *BreakerRepository) FindRound(ctx context.Context, roundID int64) (*domain.RoundMeta, error) {
	out, err := b.rounds.Execute(func() (*domain.RoundMeta, error) {
		return b.Repository.FindRound(ctx, roundID)
	})
	return out, translateBreakerErr(err)
}

func translateBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	return err
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
