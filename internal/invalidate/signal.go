package invalidate

import (
	"context"
	"sync"
	"time"

	"github.com/park285/chess-broadcast/internal/metrics"
	"go.uber.org/zap"
)

const (
	SourceLocal = "local"
	SourcePeer  = "peer"
)

// Signal bumps a round's generation, wakes live listeners, relays to peers and
// optionally triggers eager regeneration. Every step is best effort: reads
// recompose anyway, the signal only shortens the staleness window.
type Signal struct {
	gens    Generations
	hub     *Hub
	peers   *PeerNotifier
	regen   func(ctx context.Context, roundID int64)
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

type Option func(*Signal)

func WithHub(h *Hub) Option { return func(s *Signal) { s.hub = h } }

func WithPeers(p *PeerNotifier) Option { return func(s *Signal) { s.peers = p } }

// WithRegenerate registers the eager rebuild run after a local invalidation.
func WithRegenerate(fn func(ctx context.Context, roundID int64)) Option {
	return func(s *Signal) { s.regen = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Signal) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSignal(gens Generations, opts ...Option) *Signal {
	s := &Signal{gens: gens, timeout: 5 * time.Second, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invalidate bumps the generation before returning, so a read that follows an
// acknowledged mutation never reuses the old document. Peer fan-out and the
// eager rebuild run in the background and never delay the caller.
func (s *Signal) Invalidate(roundID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	_, _ = s.MarkStale(ctx, roundID, SourceLocal)
	cancel()

	if s.peers == nil && s.regen == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if s.peers != nil {
			if err := s.peers.Notify(ctx, roundID); err != nil {
				s.logger.Warn("invalidate_peer_error", zap.Int64("round_id", roundID), zap.Error(err))
			}
		}
		if s.regen != nil {
			s.regen(ctx, roundID)
		}
	}()
}

// MarkStale bumps the generation. It is the receiving side of a peer HEAD and
// the first step of Invalidate.
func (s *Signal) MarkStale(ctx context.Context, roundID int64, source string) (uint64, error) {
	gen, err := s.gens.Bump(ctx, roundID)
	if err != nil {
		metrics.Invalidations.WithLabelValues(source, "error").Inc()
		s.logger.Warn("invalidate_bump_error", zap.Int64("round_id", roundID), zap.String("source", source), zap.Error(err))
		return 0, err
	}
	metrics.Invalidations.WithLabelValues(source, "ok").Inc()
	if s.hub != nil {
		s.hub.Publish(Event{RoundID: roundID, Generation: gen, At: s.now()})
	}
	s.logger.Debug("invalidate", zap.Int64("round_id", roundID), zap.String("source", source), zap.Uint64("generation", gen))
	return gen, nil
}

// Wait blocks until background invalidations finish. Used on shutdown and in tests.
func (s *Signal) Wait() { s.wg.Wait() }
