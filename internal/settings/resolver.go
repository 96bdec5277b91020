// Package settings resolves whether broadcasting is on and where feeds live.
package settings

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/park285/chess-broadcast/internal/domain"
	"go.uber.org/zap"
)

var ErrUnavailable = errors.New("broadcast settings unavailable")

const (
	DefaultTournamentURLTemplate = "{base}/broadcast/rounds"
	DefaultRoundURLTemplate      = "{base}/broadcast/round/{round}"
)

// Store is the admin-writable settings storage. Load reports found=false when
// nothing has been written yet.
type Store interface {
	Load(ctx context.Context) (s domain.BroadcastSettings, found bool, err error)
	Save(ctx context.Context, s domain.BroadcastSettings) error
}

type Resolver struct {
	store    Store
	defaults domain.BroadcastSettings
	timeout  time.Duration
	logger   *zap.Logger
}

func NewResolver(store Store, defaults domain.BroadcastSettings, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, defaults: withTemplates(defaults), timeout: 2 * time.Second, logger: logger}
}

// GetSettings never fails: an unreachable store resolves to a disabled
// configuration so no inconsistent feed is published.
func (r *Resolver) GetSettings(ctx context.Context) domain.BroadcastSettings {
	if r.store == nil {
		return r.defaults
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	s, found, err := r.store.Load(ctx)
	if err != nil {
		r.logger.Warn("broadcast_settings_unavailable", zap.Error(err))
		disabled := r.defaults
		disabled.Enabled = false
		return disabled
	}
	if !found {
		return r.defaults
	}
	return withTemplates(s)
}

// Update validates and persists new settings.
func (r *Resolver) Update(ctx context.Context, s domain.BroadcastSettings) (domain.BroadcastSettings, error) {
	if r.store == nil {
		return domain.BroadcastSettings{}, ErrUnavailable
	}
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	s = withTemplates(s)
	if err := r.store.Save(ctx, s); err != nil {
		return domain.BroadcastSettings{}, err
	}
	r.logger.Info("broadcast_settings_update", zap.Bool("enabled", s.Enabled), zap.String("base_url", s.BaseURL))
	return s, nil
}

// BuildRoundURL substitutes {base} and {round} into the round template.
func BuildRoundURL(s domain.BroadcastSettings, roundID int64) string {
	rep := strings.NewReplacer(
		"{base}", strings.TrimRight(s.BaseURL, "/"),
		"{round}", strconv.FormatInt(roundID, 10),
		"{roundId}", strconv.FormatInt(roundID, 10),
	)
	return rep.Replace(firstTemplate(s.RoundURLTemplate, DefaultRoundURLTemplate))
}

// BuildTournamentURL substitutes {base} into the tournament template.
func BuildTournamentURL(s domain.BroadcastSettings) string {
	rep := strings.NewReplacer("{base}", strings.TrimRight(s.BaseURL, "/"))
	return rep.Replace(firstTemplate(s.TournamentURLTemplate, DefaultTournamentURLTemplate))
}

func withTemplates(s domain.BroadcastSettings) domain.BroadcastSettings {
	s.TournamentURLTemplate = firstTemplate(s.TournamentURLTemplate, DefaultTournamentURLTemplate)
	s.RoundURLTemplate = firstTemplate(s.RoundURLTemplate, DefaultRoundURLTemplate)
	return s
}

func firstTemplate(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
