package httpapi

import (
	"errors"
	"net/http"

	"github.com/park285/chess-broadcast/internal/domain"
	"github.com/park285/chess-broadcast/internal/gamestore"
	"github.com/park285/chess-broadcast/internal/settings"
	"github.com/park285/chess-broadcast/pkg/broadcastdto"
	"go.uber.org/zap"
)

// listRounds is read-only and uncached.
func (s *Server) listRounds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := s.settings.GetSettings(ctx)
	if !st.Enabled {
		writeError(w, r, http.StatusServiceUnavailable, "broadcasting disabled", s.logger)
		return
	}

	season, err := s.activeSeason(r)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if season == nil {
		writeError(w, r, http.StatusNotFound, "no active season", s.logger)
		return
	}

	rounds, err := s.repo.ListSeasonRounds(ctx, season.ID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}

	out := broadcastdto.RoundListing{
		Season:        broadcastdto.Season{ID: season.ID, Name: season.Name},
		TournamentURL: settings.BuildTournamentURL(st),
		Settings:      toSettingsDTO(st),
		Rounds:        make([]broadcastdto.RoundEntry, 0, len(rounds)),
	}
	for _, rs := range rounds {
		out.Rounds = append(out.Rounds, broadcastdto.RoundEntry{
			RoundID:       rs.Round.ID,
			Number:        rs.Round.Number,
			Name:          rs.Round.Name,
			VerifiedGames: rs.VerifiedGames,
			URL:           settings.BuildRoundURL(st, rs.Round.ID),
		})
	}
	writeJSON(w, http.StatusOK, out, s.logger)
}

func toSettingsDTO(st domain.BroadcastSettings) broadcastdto.Settings {
	return broadcastdto.Settings{
		Enabled:               st.Enabled,
		BaseURL:               st.BaseURL,
		TournamentURLTemplate: st.TournamentURLTemplate,
		RoundURLTemplate:      st.RoundURLTemplate,
	}
}

func (s *Server) activeSeason(r *http.Request) (*domain.Season, error) {
	if s.opts.ActiveSeasonID > 0 {
		return &domain.Season{ID: s.opts.ActiveSeasonID, Active: true}, nil
	}
	return s.repo.ActiveSeason(r.Context())
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gamestore.ErrRoundNotFound):
		writeError(w, r, http.StatusNotFound, "round not found", s.logger)
	case errors.Is(err, gamestore.ErrResultNotFound):
		writeError(w, r, http.StatusNotFound, "result not found", s.logger)
	case errors.Is(err, gamestore.ErrInvalidResult):
		writeError(w, r, http.StatusBadRequest, "invalid result", s.logger)
	case errors.Is(err, gamestore.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "store unavailable", s.logger)
	default:
		s.logger.Error("store_error", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error", s.logger)
	}
}
