package gamestore

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/park285/chess-broadcast/internal/domain"
)

// newTestPostgres connects to DATABASE_URL and seeds one season with one round.
func newTestPostgres(t *testing.T) (*PostgresRepository, int64) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := NewPostgresRepository(url)
	if err != nil {
		t.Fatalf("NewPostgresRepository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	var seasonID, roundID int64
	if err := repo.db.QueryRowContext(ctx,
		`INSERT INTO seasons (name, active) VALUES ($1, FALSE) RETURNING id`, "gamestore test").Scan(&seasonID); err != nil {
		t.Fatalf("insert season: %v", err)
	}
	t.Cleanup(func() {
		_, _ = repo.db.ExecContext(context.Background(), `DELETE FROM seasons WHERE id=$1`, seasonID)
	})
	if err := repo.db.QueryRowContext(ctx,
		`INSERT INTO rounds (season_id, number, name, event_name) VALUES ($1, 1, 'Round 1', 'Test Open') RETURNING id`,
		seasonID).Scan(&roundID); err != nil {
		t.Fatalf("insert round: %v", err)
	}
	return repo, roundID
}

func TestPostgresRoundResultsOrderedByBoard(t *testing.T) {
	repo, roundID := newTestPostgres(t)
	ctx := context.Background()

	for _, board := range []int{3, 1, 2} {
		rec := domain.GameRecordView{RoundID: roundID, BoardNumber: board, Result: domain.ResultDraw, WhiteName: "W", BlackName: "B"}
		if err := repo.UpsertResult(ctx, rec); err != nil {
			t.Fatalf("UpsertResult board %d: %v", board, err)
		}
	}

	got, err := repo.FindRoundResults(ctx, roundID)
	if err != nil {
		t.Fatalf("FindRoundResults: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for i, rec := range got {
		if rec.BoardNumber != i+1 {
			t.Fatalf("position %d holds board %d", i, rec.BoardNumber)
		}
	}
}

func TestPostgresUpsertKeepsAssignedNames(t *testing.T) {
	repo, roundID := newTestPostgres(t)
	ctx := context.Background()

	if err := repo.UpsertResult(ctx, domain.GameRecordView{RoundID: roundID, BoardNumber: 1, Result: domain.ResultPending, WhiteName: "Ahn", BlackName: "Baek"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.UpsertResult(ctx, domain.GameRecordView{RoundID: roundID, BoardNumber: 1, Result: domain.ResultWhiteWin}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	got, err := repo.FindRoundResults(ctx, roundID)
	if err != nil || len(got) != 1 {
		t.Fatalf("FindRoundResults: %v %v", got, err)
	}
	if got[0].WhiteName != "Ahn" || got[0].BlackName != "Baek" || got[0].Result != domain.ResultWhiteWin {
		t.Fatalf("unexpected record after resubmit: %+v", got[0])
	}
}

func TestPostgresMissingRound(t *testing.T) {
	repo, _ := newTestPostgres(t)
	round, err := repo.FindRound(context.Background(), math.MaxInt64)
	if err != nil || round != nil {
		t.Fatalf("missing round: got %+v, %v", round, err)
	}
	err = repo.UpsertResult(context.Background(), domain.GameRecordView{RoundID: math.MaxInt64, BoardNumber: 1, Result: domain.ResultDraw})
	if err != ErrRoundNotFound {
		t.Fatalf("expected ErrRoundNotFound, got %v", err)
	}
}
