// Package httpapi serves the broadcast feed, the season listing and the
// admin endpoints that mutate round results.
package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/park285/chess-broadcast/internal/broadcast"
	"github.com/park285/chess-broadcast/internal/gamestore"
	"github.com/park285/chess-broadcast/internal/invalidate"
	"github.com/park285/chess-broadcast/internal/settings"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Options struct {
	CacheMaxAge    time.Duration
	CORSOrigins    []string
	AdminToken     string
	ActiveSeasonID int64
}

type Deps struct {
	Orchestrator *broadcast.Orchestrator
	Repository   gamestore.Repository
	Settings     *settings.Resolver
	Signal       *invalidate.Signal
	Hub          *invalidate.Hub
	Logger       *zap.Logger
}

type Server struct {
	orch     *broadcast.Orchestrator
	repo     gamestore.Repository
	settings *settings.Resolver
	signal   *invalidate.Signal
	hub      *invalidate.Hub
	opts     Options
	logger   *zap.Logger
}

func NewServer(deps Deps, opts Options) *Server {
	if opts.CacheMaxAge <= 0 {
		opts.CacheMaxAge = 10 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		orch:     deps.Orchestrator,
		repo:     deps.Repository,
		settings: deps.Settings,
		signal:   deps.Signal,
		hub:      deps.Hub,
		opts:     opts,
		logger:   logger,
	}
}

// Handler builds the router. The feed routes answer their own preflight so
// the polling consumer always sees the same static headers.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/broadcast/round/{roundId}", func(r chi.Router) {
		r.Get("/", s.getFeed)
		r.Head("/", s.headFeed)
		r.Options("/", s.optionsFeed)
		r.Get("/live", s.live)
	})

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/broadcast/rounds", s.listRounds)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/rounds/{roundId}/results", s.submitResult)
		r.Put("/rounds/{roundId}/results/{board}/players", s.assignPlayers)
		r.Post("/rounds/{roundId}/results/{board}/verify", s.verifyResult)
		r.Get("/broadcast/settings", s.getSettings)
		r.Put("/broadcast/settings", s.putSettings)
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func roundIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "roundId")), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func boardParam(r *http.Request) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, "board")))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
