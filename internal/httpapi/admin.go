package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/park285/chess-broadcast/internal/domain"
	"github.com/park285/chess-broadcast/pkg/broadcastdto"
	"go.uber.org/zap"
)

const maxAdminBody = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) submitResult(w http.ResponseWriter, r *http.Request) {
	roundID, ok := roundIDParam(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid round id", s.logger)
		return
	}
	var req broadcastdto.ResultRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", s.logger)
		return
	}
	code, err := domain.ParseResultCode(req.Result)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), s.logger)
		return
	}
	rec := domain.GameRecordView{
		RoundID:     roundID,
		BoardNumber: req.BoardNumber,
		Result:      code,
		WhiteName:   req.WhiteName,
		BlackName:   req.BlackName,
		MoveText:    strings.TrimSpace(req.MoveText),
		Verified:    req.Verified,
	}
	if err := s.repo.UpsertResult(r.Context(), rec); err != nil {
		s.storeError(w, r, err)
		return
	}
	s.mutated(w, roundID, req.BoardNumber, "result_submit")
}

func (s *Server) assignPlayers(w http.ResponseWriter, r *http.Request) {
	roundID, ok := roundIDParam(r)
	board, okBoard := boardParam(r)
	if !ok || !okBoard {
		writeError(w, r, http.StatusBadRequest, "invalid round or board", s.logger)
		return
	}
	var req broadcastdto.PlayersRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", s.logger)
		return
	}
	if err := s.repo.AssignPlayers(r.Context(), roundID, board, req.WhiteName, req.BlackName); err != nil {
		s.storeError(w, r, err)
		return
	}
	s.mutated(w, roundID, board, "players_assign")
}

func (s *Server) verifyResult(w http.ResponseWriter, r *http.Request) {
	roundID, ok := roundIDParam(r)
	board, okBoard := boardParam(r)
	if !ok || !okBoard {
		writeError(w, r, http.StatusBadRequest, "invalid round or board", s.logger)
		return
	}
	if err := s.repo.VerifyResult(r.Context(), roundID, board); err != nil {
		s.storeError(w, r, err)
		return
	}
	s.mutated(w, roundID, board, "result_verify")
}

// mutated fires the invalidation without waiting for regeneration.
func (s *Server) mutated(w http.ResponseWriter, roundID int64, board int, event string) {
	if s.signal != nil {
		s.signal.Invalidate(roundID)
	}
	s.logger.Info(event, zap.Int64("round_id", roundID), zap.Int("board", board))
	writeJSON(w, http.StatusOK, broadcastdto.MutationResponse{Status: "ok", RoundID: roundID, Board: board}, s.logger)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSettingsDTO(s.settings.GetSettings(r.Context())), s.logger)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var req broadcastdto.Settings
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", s.logger)
		return
	}
	saved, err := s.settings.Update(r.Context(), domain.BroadcastSettings{
		Enabled:               req.Enabled,
		BaseURL:               req.BaseURL,
		TournamentURLTemplate: req.TournamentURLTemplate,
		RoundURLTemplate:      req.RoundURLTemplate,
	})
	if err != nil {
		s.logger.Warn("broadcast_settings_update_error", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "settings store unavailable", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(saved), s.logger)
}
