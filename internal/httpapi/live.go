package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/park285/chess-broadcast/internal/metrics"
	"github.com/park285/chess-broadcast/pkg/broadcastdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	livePingInterval = 30 * time.Second
	liveWriteTimeout = 5 * time.Second
)

// live pushes a message on every invalidation of the round so viewers can
// refetch the feed without waiting for their cache window.
func (s *Server) live(w http.ResponseWriter, r *http.Request) {
	roundID, ok := roundIDParam(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid round id", s.logger)
		return
	}
	if s.hub == nil {
		writeError(w, r, http.StatusServiceUnavailable, "live updates disabled", s.logger)
		return
	}

	conn, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		s.logger.Debug("live_accept_error", zap.Int64("round_id", roundID), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	events, unsubscribe := s.hub.Subscribe(roundID)
	defer unsubscribe()
	metrics.LiveListeners.Inc()
	defer metrics.LiveListeners.Dec()

	// 읽기는 하지 않고 close 프레임만 처리
	ctx := conn.CloseRead(r.Context())

	hello := broadcastdto.LiveMessage{Type: "hello", RoundID: roundID, At: time.Now()}
	if meta, ok := s.orch.Metadata(ctx, roundID); ok {
		hello.Generation = meta.Generation
		hello.At = meta.LastUpdated
	}
	if err := s.writeLive(ctx, conn, hello); err != nil {
		return
	}

	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "unsubscribed")
				return
			}
			msg := broadcastdto.LiveMessage{Type: "invalidated", RoundID: ev.RoundID, Generation: ev.Generation, At: ev.At}
			if err := s.writeLive(ctx, conn, msg); err != nil {
				s.logger.Debug("live_write_error", zap.Int64("round_id", roundID), zap.Error(err))
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) writeLive(ctx context.Context, conn *websocket.Conn, msg broadcastdto.LiveMessage) error {
	wctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, msg)
}

func (s *Server) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{CompressionMode: websocket.CompressionNoContextTakeover}
	for _, o := range s.opts.CORSOrigins {
		if o == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
		host := strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		opts.OriginPatterns = append(opts.OriginPatterns, host)
	}
	return opts
}
