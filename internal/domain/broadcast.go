package domain

import (
	"fmt"
	"strings"
	"time"
)

// ResultCode is the stored outcome of a board. The set is closed.
type ResultCode string

const (
	ResultWhiteWin      ResultCode = "white"
	ResultBlackWin      ResultCode = "black"
	ResultDraw          ResultCode = "draw"
	ResultPending       ResultCode = "pending"
	ResultWhiteForfeit  ResultCode = "forfeit_white" // white wins by forfeit
	ResultBlackForfeit  ResultCode = "forfeit_black" // black wins by forfeit
	ResultDoubleForfeit ResultCode = "forfeit_double"
)

var resultCodes = map[ResultCode]struct{}{
	ResultWhiteWin:      {},
	ResultBlackWin:      {},
	ResultDraw:          {},
	ResultPending:       {},
	ResultWhiteForfeit:  {},
	ResultBlackForfeit:  {},
	ResultDoubleForfeit: {},
}

// Valid reports whether c belongs to the closed result set.
func (c ResultCode) Valid() bool {
	_, ok := resultCodes[c]
	return ok
}

// ParseResultCode normalizes user input ("1-0", "White", "draw") into a ResultCode.
func ParseResultCode(s string) (ResultCode, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "1-0", "w", "white":
		return ResultWhiteWin, nil
	case "0-1", "b", "black":
		return ResultBlackWin, nil
	case "1/2-1/2", "½-½", "draw", "d":
		return ResultDraw, nil
	case "*", "", "pending", "unresolved":
		return ResultPending, nil
	case "+/-", "1f-0f", "forfeit_white":
		return ResultWhiteForfeit, nil
	case "-/+", "0f-1f", "forfeit_black":
		return ResultBlackForfeit, nil
	case "-/-", "0f-0f", "forfeit_double":
		return ResultDoubleForfeit, nil
	}
	return "", fmt.Errorf("unknown result code %q", s)
}

// GameRecordView is the read projection of one board result.
type GameRecordView struct {
	RoundID     int64      `json:"round_id"`
	BoardNumber int        `json:"board_number"`
	Result      ResultCode `json:"result"`
	WhiteName   string     `json:"white_name,omitempty"`
	BlackName   string     `json:"black_name,omitempty"`
	MoveText    string     `json:"move_text,omitempty"`
	Verified    bool       `json:"verified"`
}

// Assigned reports whether both players are set. Unassigned records are not ready for broadcast.
func (g GameRecordView) Assigned() bool {
	return strings.TrimSpace(g.WhiteName) != "" && strings.TrimSpace(g.BlackName) != ""
}

// RoundMeta describes a round independent of its results.
type RoundMeta struct {
	ID        int64     `json:"id"`
	SeasonID  int64     `json:"season_id"`
	Number    int       `json:"number"`
	Name      string    `json:"name,omitempty"`
	EventName string    `json:"event_name,omitempty"`
	Site      string    `json:"site,omitempty"`
	StartsOn  time.Time `json:"starts_on,omitempty"`
}

// Season groups the rounds of one tournament.
type Season struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// RoundSummary is one row of the season listing.
type RoundSummary struct {
	Round         RoundMeta `json:"round"`
	VerifiedGames int       `json:"verified_games"`
}

// BroadcastDocument is the composed PGN collection for one round.
// A new document supersedes the old one; it is never mutated in place.
type BroadcastDocument struct {
	RoundID     int64     `json:"round_id"`
	Text        string    `json:"text"`
	GameCount   int       `json:"game_count"`
	IsValid     bool      `json:"is_valid"`
	Errors      []string  `json:"errors,omitempty"`
	LastUpdated time.Time `json:"last_updated"`

	Generation uint64 `json:"generation"`
	BuildID    string `json:"build_id,omitempty"`
	Degraded   bool   `json:"degraded,omitempty"`
}

// Meta returns the lightweight projection used by existence checks.
func (d *BroadcastDocument) Meta() DocumentMeta {
	return DocumentMeta{LastUpdated: d.LastUpdated, GameCount: d.GameCount, Generation: d.Generation}
}

// DocumentMeta answers HEAD requests without recomposing.
type DocumentMeta struct {
	LastUpdated time.Time `json:"last_updated"`
	GameCount   int       `json:"game_count"`
	Generation  uint64    `json:"generation"`
}

// BroadcastSettings is the process-wide broadcast configuration.
type BroadcastSettings struct {
	Enabled               bool   `json:"enabled" yaml:"enabled"`
	BaseURL               string `json:"base_url" yaml:"base_url"`
	TournamentURLTemplate string `json:"tournament_url_template" yaml:"tournament_url_template"`
	RoundURLTemplate      string `json:"round_url_template" yaml:"round_url_template"`
}
