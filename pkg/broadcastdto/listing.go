package broadcastdto

import "time"

type Season struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

type Settings struct {
	Enabled               bool   `json:"enabled"`
	BaseURL               string `json:"base_url"`
	TournamentURLTemplate string `json:"tournament_url_template"`
	RoundURLTemplate      string `json:"round_url_template"`
}

type RoundListing struct {
	Season        Season       `json:"season"`
	TournamentURL string       `json:"tournament_url"`
	Settings      Settings     `json:"settings"`
	Rounds        []RoundEntry `json:"rounds"`
}

type RoundEntry struct {
	RoundID       int64  `json:"round_id"`
	Number        int    `json:"number"`
	Name          string `json:"name,omitempty"`
	VerifiedGames int    `json:"verified_games"`
	URL           string `json:"url"`
}

// LiveMessage is pushed on the round's websocket. Type is "hello" once on
// connect, then "invalidated" per generation bump.
type LiveMessage struct {
	Type       string    `json:"type"`
	RoundID    int64     `json:"round_id"`
	Generation uint64    `json:"generation"`
	At         time.Time `json:"at"`
}
