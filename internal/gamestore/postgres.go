package gamestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/chess-broadcast/internal/domain"
)

// Schema is applied by EnsureSchema on startup.
const Schema = `
CREATE TABLE IF NOT EXISTS seasons (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS rounds (
	id BIGSERIAL PRIMARY KEY,
	season_id BIGINT NOT NULL REFERENCES seasons(id) ON DELETE CASCADE,
	number INTEGER NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	event_name TEXT NOT NULL DEFAULT '',
	site TEXT NOT NULL DEFAULT '',
	starts_on DATE,
	UNIQUE (season_id, number)
);

CREATE TABLE IF NOT EXISTS round_results (
	round_id BIGINT NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
	board_number INTEGER NOT NULL,
	result TEXT NOT NULL DEFAULT 'pending',
	white_name TEXT,
	black_name TEXT,
	move_text TEXT,
	verified BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (round_id, board_number)
);
`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindRoundResults(ctx context.Context, roundID int64) ([]domain.GameRecordView, error) {
	const query = `
		SELECT
			round_id,
			board_number,
			result,
			white_name,
			black_name,
			move_text,
			verified
		FROM round_results
		WHERE round_id = $1
		ORDER BY board_number ASC`

	rows, err := r.db.QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("select round results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.GameRecordView, 0, 16)
	for rows.Next() {
		var (
			rec       domain.GameRecordView
			result    string
			whiteName sql.NullString
			blackName sql.NullString
			moveText  sql.NullString
		)
		if err := rows.Scan(
			&rec.RoundID,
			&rec.BoardNumber,
			&result,
			&whiteName,
			&blackName,
			&moveText,
			&rec.Verified,
		); err != nil {
			return nil, fmt.Errorf("scan round result: %w", err)
		}
		rec.Result = domain.ResultCode(result)
		rec.WhiteName = whiteName.String
		rec.BlackName = blackName.String
		rec.MoveText = moveText.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate round results: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) FindRound(ctx context.Context, roundID int64) (*domain.RoundMeta, error) {
	const query = `
		SELECT id, season_id, number, name, event_name, site, starts_on
		FROM rounds
		WHERE id = $1`

	var (
		round    domain.RoundMeta
		startsOn sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, roundID).Scan(
		&round.ID,
		&round.SeasonID,
		&round.Number,
		&round.Name,
		&round.EventName,
		&round.Site,
		&startsOn,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select round: %w", err)
	}
	if startsOn.Valid {
		round.StartsOn = startsOn.Time
	}
	return &round, nil
}

func (r *PostgresRepository) ActiveSeason(ctx context.Context) (*domain.Season, error) {
	const query = `SELECT id, name, active FROM seasons WHERE active ORDER BY id DESC LIMIT 1`
	var s domain.Season
	err := r.db.QueryRowContext(ctx, query).Scan(&s.ID, &s.Name, &s.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select active season: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) ListSeasonRounds(ctx context.Context, seasonID int64) ([]domain.RoundSummary, error) {
	const query = `
		SELECT
			r.id, r.season_id, r.number, r.name, r.event_name, r.site, r.starts_on,
			COUNT(rr.board_number) FILTER (WHERE rr.verified)
		FROM rounds r
		LEFT JOIN round_results rr ON rr.round_id = r.id
		WHERE r.season_id = $1
		GROUP BY r.id
		ORDER BY r.number ASC`

	rows, err := r.db.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("select season rounds: %w", err)
	}
	defer rows.Close()

	var out []domain.RoundSummary
	for rows.Next() {
		var (
			s        domain.RoundSummary
			startsOn sql.NullTime
		)
		if err := rows.Scan(
			&s.Round.ID,
			&s.Round.SeasonID,
			&s.Round.Number,
			&s.Round.Name,
			&s.Round.EventName,
			&s.Round.Site,
			&startsOn,
			&s.VerifiedGames,
		); err != nil {
			return nil, fmt.Errorf("scan season round: %w", err)
		}
		if startsOn.Valid {
			s.Round.StartsOn = startsOn.Time
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate season rounds: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) UpsertResult(ctx context.Context, rec domain.GameRecordView) error {
	if err := validateResult(rec); err != nil {
		return err
	}
	round, err := r.FindRound(ctx, rec.RoundID)
	if err != nil {
		return err
	}
	if round == nil {
		return ErrRoundNotFound
	}

	const query = `
		INSERT INTO round_results (
			round_id, board_number, result, white_name, black_name, move_text, verified, updated_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, NOW())
		ON CONFLICT (round_id, board_number) DO UPDATE SET
			result=EXCLUDED.result,
			white_name=COALESCE(EXCLUDED.white_name, round_results.white_name),
			black_name=COALESCE(EXCLUDED.black_name, round_results.black_name),
			move_text=EXCLUDED.move_text,
			verified=EXCLUDED.verified,
			updated_at=NOW()`

	_, err = r.db.ExecContext(ctx, query,
		rec.RoundID, rec.BoardNumber, string(rec.Result),
		strings.TrimSpace(rec.WhiteName), strings.TrimSpace(rec.BlackName),
		rec.MoveText, rec.Verified,
	)
	if err != nil {
		return fmt.Errorf("upsert round result: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AssignPlayers(ctx context.Context, roundID int64, board int, white, black string) error {
	const query = `
		UPDATE round_results
		SET white_name = NULLIF($3, ''), black_name = NULLIF($4, ''), updated_at = NOW()
		WHERE round_id = $1 AND board_number = $2`
	return r.execOne(ctx, query, roundID, board, strings.TrimSpace(white), strings.TrimSpace(black))
}

func (r *PostgresRepository) VerifyResult(ctx context.Context, roundID int64, board int) error {
	const query = `
		UPDATE round_results
		SET verified = TRUE, updated_at = NOW()
		WHERE round_id = $1 AND board_number = $2`
	return r.execOne(ctx, query, roundID, board)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update round result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrResultNotFound
	}
	return nil
}
