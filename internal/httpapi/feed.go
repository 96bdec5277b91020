package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/park285/chess-broadcast/internal/domain"
	"github.com/park285/chess-broadcast/internal/invalidate"
	"github.com/park285/chess-broadcast/internal/metrics"
	"go.uber.org/zap"
)

const (
	contentTypePGN = "application/x-chess-pgn; charset=utf-8"

	headerGameCount  = "X-Game-Count"
	headerValid      = "X-Broadcast-Valid"
	headerExists     = "X-Broadcast-Exists"
	headerEnabled    = "X-Broadcast-Enabled"
	headerGeneration = "X-Broadcast-Generation"
)

var exposedFeedHeaders = strings.Join([]string{
	"Last-Modified", headerGameCount, headerValid, headerExists, headerEnabled, headerGeneration,
}, ", ")

func (s *Server) feedCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Accept, If-Modified-Since, "+invalidate.Header)
	h.Set("Access-Control-Expose-Headers", exposedFeedHeaders)
}

// getFeed always answers 200 with a parseable body. The only exception is an
// operator-disabled broadcast, which answers 503.
func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) {
	s.feedCORS(w)
	ctx := r.Context()

	if !s.settings.GetSettings(ctx).Enabled {
		metrics.FeedRequests.WithLabelValues(http.MethodGet, "disabled").Inc()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("broadcasting disabled\n"))
		return
	}

	// 알 수 없는 라운드도 placeholder로 200 응답
	roundID, _ := roundIDParam(r)
	doc := s.orch.Ensure(ctx, roundID)

	h := w.Header()
	h.Set("Content-Type", contentTypePGN)
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(s.opts.CacheMaxAge.Seconds())))
	h.Set("Last-Modified", doc.LastUpdated.UTC().Format(http.TimeFormat))
	h.Set(headerGameCount, strconv.Itoa(doc.GameCount))
	h.Set(headerValid, strconv.FormatBool(doc.IsValid))
	h.Set(headerGeneration, strconv.FormatUint(doc.Generation, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc.Text)); err != nil {
		s.logger.Debug("feed_write_error", zap.Int64("round_id", roundID), zap.Error(err))
	}

	outcome := "ok"
	if doc.Degraded {
		outcome = "degraded"
	}
	metrics.FeedRequests.WithLabelValues(http.MethodGet, outcome).Inc()
}

// headFeed is the existence check. Carrying the invalidation marker turns it
// into the peer invalidation transport instead.
func (s *Server) headFeed(w http.ResponseWriter, r *http.Request) {
	s.feedCORS(w)
	ctx := r.Context()
	roundID, ok := roundIDParam(r)

	if r.Header.Get(invalidate.Header) == "1" {
		if s.opts.AdminToken != "" && !s.bearerMatches(r) {
			metrics.FeedRequests.WithLabelValues(http.MethodHead, "unauthorized").Inc()
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if ok && s.signal != nil {
			if _, err := s.signal.MarkStale(ctx, roundID, invalidate.SourcePeer); err != nil {
				s.logger.Warn("invalidate_mark_error", zap.Int64("round_id", roundID), zap.Error(err))
			}
		}
		metrics.FeedRequests.WithLabelValues(http.MethodHead, "invalidate").Inc()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	enabled := s.settings.GetSettings(ctx).Enabled
	var (
		exists bool
		meta   domain.DocumentMeta
	)
	if ok {
		meta, exists = s.orch.Metadata(ctx, roundID)
	}

	h := w.Header()
	h.Set("Content-Type", contentTypePGN)
	h.Set(headerExists, strconv.FormatBool(exists))
	h.Set(headerEnabled, strconv.FormatBool(enabled))
	if exists {
		h.Set(headerGameCount, strconv.Itoa(meta.GameCount))
		h.Set(headerGeneration, strconv.FormatUint(meta.Generation, 10))
		h.Set("Last-Modified", meta.LastUpdated.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	metrics.FeedRequests.WithLabelValues(http.MethodHead, "ok").Inc()
}

func (s *Server) optionsFeed(w http.ResponseWriter, r *http.Request) {
	s.feedCORS(w)
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}
