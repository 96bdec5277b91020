package broadcastdto

// ResultRequest submits or replaces one board result. Result accepts PGN
// notation ("1-0", "1/2-1/2", "*") or the stored code names.
type ResultRequest struct {
	BoardNumber int    `json:"board_number"`
	Result      string `json:"result"`
	WhiteName   string `json:"white_name,omitempty"`
	BlackName   string `json:"black_name,omitempty"`
	MoveText    string `json:"move_text,omitempty"`
	Verified    bool   `json:"verified,omitempty"`
}

type PlayersRequest struct {
	WhiteName string `json:"white_name"`
	BlackName string `json:"black_name"`
}

type MutationResponse struct {
	Status  string `json:"status"`
	RoundID int64  `json:"round_id"`
	Board   int    `json:"board_number"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
