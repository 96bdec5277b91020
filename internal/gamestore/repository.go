package gamestore

import (
	"context"
	"errors"

	"github.com/park285/chess-broadcast/internal/domain"
)

var (
	ErrRoundNotFound  = errors.New("round not found")
	ErrResultNotFound = errors.New("round result not found")
	ErrInvalidResult  = errors.New("invalid round result")
)

// Reader is the narrow query contract the broadcast pipeline depends on.
type Reader interface {
	// FindRoundResults returns the round's results ordered by board number.
	FindRoundResults(ctx context.Context, roundID int64) ([]domain.GameRecordView, error)
	// FindRound returns nil, nil when the round does not exist.
	FindRound(ctx context.Context, roundID int64) (*domain.RoundMeta, error)
}

// Repository adds the listing and mutation operations used by the HTTP layer.
type Repository interface {
	Reader
	ActiveSeason(ctx context.Context) (*domain.Season, error)
	ListSeasonRounds(ctx context.Context, seasonID int64) ([]domain.RoundSummary, error)

	UpsertResult(ctx context.Context, rec domain.GameRecordView) error
	AssignPlayers(ctx context.Context, roundID int64, board int, white, black string) error
	VerifyResult(ctx context.Context, roundID int64, board int) error
}

func validateResult(rec domain.GameRecordView) error {
	if rec.RoundID <= 0 || rec.BoardNumber <= 0 {
		return ErrInvalidResult
	}
	if !rec.Result.Valid() {
		return ErrInvalidResult
	}
	return nil
}
