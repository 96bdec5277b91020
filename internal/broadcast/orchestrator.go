// Package broadcast owns the persisted PGN document of every round and
// rebuilds it on demand.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/park285/chess-broadcast/internal/domain"
	"github.com/park285/chess-broadcast/internal/gamestore"
	"github.com/park285/chess-broadcast/internal/invalidate"
	"github.com/park285/chess-broadcast/internal/metrics"
	"github.com/park285/chess-broadcast/internal/pgncompose"
	"go.uber.org/zap"
)

var ErrStoreUnreachable = errors.New("store unreachable")

// State of a round's persisted document relative to its generation counter.
type State string

const (
	StateAbsent State = "absent"
	StateFresh  State = "fresh"
	StateStale  State = "stale"
)

const DefaultStoreTimeout = 3 * time.Second

type Config struct {
	// StoreTimeout bounds the game store read of one Ensure call.
	StoreTimeout time.Duration
	// FastPath returns the persisted document when its generation is current.
	FastPath bool
}

type Orchestrator struct {
	repo     gamestore.Reader
	docs     DocumentStore
	gens     invalidate.Generations
	composer *pgncompose.Composer
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrchestrator(repo gamestore.Reader, docs DocumentStore, gens invalidate.Generations, composer *pgncompose.Composer, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if composer == nil {
		composer = pgncompose.New("", "")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		repo:     repo,
		docs:     docs,
		gens:     gens,
		composer: composer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Ensure returns a current document for roundID. It never fails: store
// problems yield a degraded placeholder, an unknown round yields the plain
// placeholder. Only documents composed from real store data are persisted.
func (o *Orchestrator) Ensure(ctx context.Context, roundID int64) domain.BroadcastDocument {
	start := o.now()
	defer func() { metrics.ComposeDuration.Observe(o.now().Sub(start).Seconds()) }()

	// 세대는 저장소 읽기 전에 잡아야 읽는 도중의 무효화가 다음 요청에서 보임
	gen, genErr := o.gens.Current(ctx, roundID)
	if genErr != nil {
		o.logger.Warn("broadcast_generation_error", zap.Int64("round_id", roundID), zap.Error(genErr))
	}

	if o.cfg.FastPath && genErr == nil {
		if prev, err := o.docs.Load(ctx, roundID); err == nil && prev != nil && prev.Generation == gen && !prev.Degraded {
			metrics.Compositions.WithLabelValues("cached").Inc()
			return *prev
		}
	}

	readCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()

	round, games, err := o.read(readCtx, roundID)
	if err != nil {
		return o.degraded(ctx, roundID, err)
	}
	if round == nil {
		metrics.Compositions.WithLabelValues("placeholder").Inc()
		return o.composer.Placeholder(roundID)
	}

	doc := o.composer.Compose(*round, games)
	doc.Generation = gen
	doc.BuildID = uuid.NewString()
	if len(doc.Errors) > 0 {
		metrics.ComposeErrors.Add(float64(len(doc.Errors)))
		o.logger.Info("broadcast_compose_errors", zap.Int64("round_id", roundID), zap.Strings("errors", doc.Errors))
	}

	saveCtx, cancelSave := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.StoreTimeout)
	defer cancelSave()
	if err := o.docs.Save(saveCtx, &doc); err != nil {
		o.logger.Warn("broadcast_persist_error", zap.Int64("round_id", roundID), zap.Error(err))
	}

	metrics.Compositions.WithLabelValues("ok").Inc()
	o.logger.Debug("broadcast_compose",
		zap.Int64("round_id", roundID),
		zap.Int("game_count", doc.GameCount),
		zap.Uint64("generation", gen),
		zap.String("build_id", doc.BuildID),
	)
	return doc
}

func (o *Orchestrator) read(ctx context.Context, roundID int64) (*domain.RoundMeta, []domain.GameRecordView, error) {
	round, err := o.repo.FindRound(ctx, roundID)
	if err != nil {
		return nil, nil, fmt.Errorf("find round: %w", err)
	}
	if round == nil {
		return nil, nil, nil
	}
	games, err := o.repo.FindRoundResults(ctx, roundID)
	if err != nil {
		return nil, nil, fmt.Errorf("find round results: %w", err)
	}
	return round, games, nil
}

func (o *Orchestrator) degraded(ctx context.Context, roundID int64, cause error) domain.BroadcastDocument {
	metrics.Compositions.WithLabelValues("degraded").Inc()
	o.logger.Warn("broadcast_degraded", zap.Int64("round_id", roundID), zap.Error(cause))

	doc := o.composer.Placeholder(roundID)
	doc.Errors = []string{ErrStoreUnreachable.Error()}
	doc.Degraded = true
	doc.LastUpdated = o.now()
	if prev, err := o.docs.Load(ctx, roundID); err == nil && prev != nil {
		doc.LastUpdated = prev.LastUpdated
		doc.Generation = prev.Generation
	}
	return doc
}

// Exists reports whether a document has been persisted. It never composes.
func (o *Orchestrator) Exists(ctx context.Context, roundID int64) bool {
	doc, err := o.docs.Load(ctx, roundID)
	if err != nil {
		o.logger.Debug("broadcast_exists_error", zap.Int64("round_id", roundID), zap.Error(err))
		return false
	}
	return doc != nil
}

// Metadata answers from the last persisted document only.
func (o *Orchestrator) Metadata(ctx context.Context, roundID int64) (domain.DocumentMeta, bool) {
	doc, err := o.docs.Load(ctx, roundID)
	if err != nil || doc == nil {
		return domain.DocumentMeta{}, false
	}
	return doc.Meta(), true
}

// State compares the persisted generation with the round's counter.
func (o *Orchestrator) State(ctx context.Context, roundID int64) (State, error) {
	doc, err := o.docs.Load(ctx, roundID)
	if err != nil {
		return StateAbsent, err
	}
	if doc == nil {
		return StateAbsent, nil
	}
	gen, err := o.gens.Current(ctx, roundID)
	if err != nil {
		return StateStale, err
	}
	if doc.Generation < gen {
		return StateStale, nil
	}
	return StateFresh, nil
}

// Regenerate adapts Ensure to the invalidation signal's eager rebuild hook.
func (o *Orchestrator) Regenerate(ctx context.Context, roundID int64) {
	_ = o.Ensure(ctx, roundID)
}
