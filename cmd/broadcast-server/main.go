package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/chess-broadcast/internal/broadcast"
	appcfg "github.com/park285/chess-broadcast/internal/config"
	"github.com/park285/chess-broadcast/internal/domain"
	"github.com/park285/chess-broadcast/internal/gamestore"
	"github.com/park285/chess-broadcast/internal/httpapi"
	"github.com/park285/chess-broadcast/internal/invalidate"
	"github.com/park285/chess-broadcast/internal/obslog"
	"github.com/park285/chess-broadcast/internal/pgncompose"
	"github.com/park285/chess-broadcast/internal/redisconn"
	"github.com/park285/chess-broadcast/internal/settings"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Printf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		cancel()
		logger.Fatal("store_init_error", zap.Error(err))
	}
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisconn.Connect(ctx, cfg.RedisURL)
		if err != nil {
			cancel()
			logger.Fatal("redis_init_error", zap.Error(err))
		}
	}
	cancel()

	var (
		settingsStore settings.Store
		docs          broadcast.DocumentStore
		gens          invalidate.Generations
	)
	if rdb != nil {
		settingsStore = settings.NewRedisStore(rdb)
		docs = broadcast.NewRedisDocumentStore(rdb)
		gens = invalidate.NewRedisGenerations(rdb)
	} else {
		logger.Warn("redis_disabled", zap.String("reason", "REDIS_URL empty, using in-process state"))
		settingsStore = settings.NewMemoryStore()
		docs = broadcast.NewMemoryDocumentStore()
		gens = invalidate.NewMemoryGenerations()
	}

	defaults, err := settings.LoadDefaultsFile(cfg.SettingsFile, domain.BroadcastSettings{Enabled: true})
	if err != nil {
		logger.Warn("broadcast_settings_file_error", zap.String("path", cfg.SettingsFile), zap.Error(err))
	}
	resolver := settings.NewResolver(settingsStore, defaults, logger.Named("settings"))

	orch := broadcast.NewOrchestrator(
		repo,
		docs,
		gens,
		pgncompose.New(cfg.EventName, cfg.SiteName),
		broadcast.Config{StoreTimeout: cfg.StoreTimeout, FastPath: cfg.FastPath},
		logger.Named("broadcast"),
	)

	hub := invalidate.NewHub()
	sigOpts := []invalidate.Option{
		invalidate.WithHub(hub),
		invalidate.WithRegenerate(orch.Regenerate),
		invalidate.WithLogger(logger.Named("invalidate")),
	}
	if len(cfg.Peers) > 0 {
		sigOpts = append(sigOpts, invalidate.WithPeers(invalidate.NewPeerNotifier(cfg.Peers, invalidate.WithPeerToken(cfg.AdminToken))))
	}
	sig := invalidate.NewSignal(gens, sigOpts...)

	api := httpapi.NewServer(httpapi.Deps{
		Orchestrator: orch,
		Repository:   repo,
		Settings:     resolver,
		Signal:       sig,
		Hub:          hub,
		Logger:       logger.Named("http"),
	}, httpapi.Options{
		CacheMaxAge:    cfg.CacheMaxAge,
		CORSOrigins:    cfg.CORSOrigins,
		AdminToken:     cfg.AdminToken,
		ActiveSeasonID: cfg.ActiveSeasonID,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr), zap.Bool("fast_path", cfg.FastPath), zap.Int("peers", len(cfg.Peers)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http_serve_error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown")

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http_shutdown_error", zap.Error(err))
	}
	sig.Wait()
	if rdb != nil {
		_ = rdb.Close()
	}
	_ = closeRepo()
}

// openRepository returns the breaker-guarded game store. Without DATABASE_URL
// a seeded in-memory store is used for local runs.
func openRepository(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) (gamestore.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("database_disabled", zap.String("reason", "DATABASE_URL empty, using in-memory store"))
		mem := gamestore.NewMemoryRepository()
		seedDevelopment(mem)
		return gamestore.NewBreakerRepository(mem), func() error { return nil }, nil
	}
	pg, err := gamestore.NewPostgresRepository(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	return gamestore.NewBreakerRepository(pg), pg.Close, nil
}

func seedDevelopment(repo *gamestore.MemoryRepository) {
	repo.PutSeason(domain.Season{ID: 1, Name: "Development", Active: true})
	repo.PutRound(domain.RoundMeta{ID: 1, SeasonID: 1, Number: 1, Name: "Round 1", StartsOn: time.Now().UTC()})
}
