package broadcast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/chess-broadcast/internal/domain"
	"github.com/park285/chess-broadcast/internal/gamestore"
	"github.com/park285/chess-broadcast/internal/invalidate"
	"github.com/park285/chess-broadcast/internal/pgncompose"
	"github.com/redis/go-redis/v9"
)

type failingReader struct{ err error }

func (f failingReader) FindRoundResults(ctx context.Context, roundID int64) ([]domain.GameRecordView, error) {
	return nil, f.err
}

func (f failingReader) FindRound(ctx context.Context, roundID int64) (*domain.RoundMeta, error) {
	return nil, f.err
}

type slowReader struct{ gamestore.Reader }

func (s slowReader) FindRound(ctx context.Context, roundID int64) (*domain.RoundMeta, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func seededRepo(t *testing.T) *gamestore.MemoryRepository {
	t.Helper()
	repo := gamestore.NewMemoryRepository()
	repo.PutSeason(domain.Season{ID: 1, Name: "Spring", Active: true})
	repo.PutRound(domain.RoundMeta{ID: 10, SeasonID: 1, Number: 3, StartsOn: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)})
	return repo
}

func upsert(t *testing.T, repo *gamestore.MemoryRepository, rec domain.GameRecordView) {
	t.Helper()
	if err := repo.UpsertResult(context.Background(), rec); err != nil {
		t.Fatalf("UpsertResult: %v", err)
	}
}

func newRedisDocs(t *testing.T) (*RedisDocumentStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return NewRedisDocumentStore(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestEnsureComposesAndPersists(t *testing.T) {
	repo := seededRepo(t)
	upsert(t, repo, domain.GameRecordView{RoundID: 10, BoardNumber: 2, Result: domain.ResultDraw, WhiteName: "Cho", BlackName: "Dan", Verified: true})
	upsert(t, repo, domain.GameRecordView{RoundID: 10, BoardNumber: 1, Result: domain.ResultWhiteWin, WhiteName: "Ahn", BlackName: "Baek", Verified: true})

	docs, _ := newRedisDocs(t)
	o := NewOrchestrator(repo, docs, invalidate.NewMemoryGenerations(), pgncompose.New("", ""), Config{}, nil)
	ctx := context.Background()

	if o.Exists(ctx, 10) {
		t.Fatalf("document should not exist before Ensure")
	}
	doc := o.Ensure(ctx, 10)
	if doc.GameCount != 2 || !doc.IsValid {
		t.Fatalf("unexpected doc: count=%d valid=%v errors=%v", doc.GameCount, doc.IsValid, doc.Errors)
	}
	first := strings.Index(doc.Text, `[Result "1-0"]`)
	second := strings.Index(doc.Text, `[Result "1/2-1/2"]`)
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected board 1 before board 2:\n%s", doc.Text)
	}
	if doc.BuildID == "" {
		t.Fatalf("expected build id")
	}

	if !o.Exists(ctx, 10) {
		t.Fatalf("document should exist after Ensure")
	}
	meta, ok := o.Metadata(ctx, 10)
	if !ok || meta.GameCount != 2 {
		t.Fatalf("unexpected metadata %+v ok=%v", meta, ok)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	repo := seededRepo(t)
	upsert(t, repo, domain.GameRecordView{RoundID: 10, BoardNumber: 1, Result: domain.ResultBlackWin, WhiteName: "Ahn", BlackName: "Baek", MoveText: "1. f3 e5 2. g4 Qh4# 0-1"})

	o := NewOrchestrator(repo, NewMemoryDocumentStore(), invalidate.NewMemoryGenerations(), nil, Config{}, nil)
	ctx := context.Background()

	a := o.Ensure(ctx, 10)
	b := o.Ensure(ctx, 10)
	if a.Text != b.Text || a.GameCount != b.GameCount {
		t.Fatalf("expected identical documents\n%s\n---\n%s", a.Text, b.Text)
	}
}

func TestInvalidationMakesNextEnsureCurrent(t *testing.T) {
	repo := seededRepo(t)
	upsert(t, repo, domain.GameRecordView{RoundID: 10, BoardNumber: 1, Result: domain.ResultPending, WhiteName: "Ahn", BlackName: "Baek"})

	gens := invalidate.NewMemoryGenerations()
	docs := NewMemoryDocumentStore()
	// fast path on: only the generation bump can force a recompose
	o := NewOrchestrator(repo, docs, gens, nil, Config{FastPath: true}, nil)
	ctx := context.Background()

	before := o.Ensure(ctx, 10)
	if !strings.Contains(before.Text, `[Result "*"]`) {
		t.Fatalf("expected pending game:\n%s", before.Text)
	}
	if st, _ := o.State(ctx, 10); st != StateFresh {
		t.Fatalf("expected fresh, got %s", st)
	}

	upsert(t, repo, domain.GameRecordView{RoundID: 10, BoardNumber: 1, Result: domain.ResultWhiteWin})
	sig := invalidate.NewSignal(gens)
	sig.Invalidate(10)
	sig.Wait()

	if st, _ := o.State(ctx, 10); st != StateStale {
		t.Fatalf("expected stale after invalidation, got %s", st)
	}
	after := o.Ensure(ctx, 10)
	if !strings.Contains(after.Text, `[Result "1-0"]`) {
		t.Fatalf("expected updated result:\n%s", after.Text)
	}
	if after.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", after.Generation)
	}
	if st, _ := o.State(ctx, 10); st != StateFresh {
		t.Fatalf("expected fresh after Ensure, got %s", st)
	}
}

func TestEnsureUnassignedOnlyFallsBackToPlaceholder(t *testing.T) {
	repo := seededRepo(t)
	upsert(t, repo, domain.GameRecordView{RoundID: 10, BoardNumber: 1, Result: domain.ResultWhiteWin, WhiteName: "Ahn"})

	o := NewOrchestrator(repo, NewMemoryDocumentStore(), invalidate.NewMemoryGenerations(), nil, Config{}, nil)
	doc := o.Ensure(context.Background(), 10)
	if doc.GameCount != 0 || !doc.IsValid {
		t.Fatalf("expected valid placeholder, got count=%d valid=%v", doc.GameCount, doc.IsValid)
	}
	if !strings.Contains(doc.Text, "no games yet") {
		t.Fatalf("expected placeholder text:\n%s", doc.Text)
	}
}

func TestEnsureDegradesOnStoreFailure(t *testing.T) {
	docs := NewMemoryDocumentStore()
	o := NewOrchestrator(failingReader{err: errors.New("connection refused")}, docs, invalidate.NewMemoryGenerations(), nil, Config{}, nil)
	ctx := context.Background()

	doc := o.Ensure(ctx, 10)
	if !doc.IsValid || doc.GameCount != 0 || !doc.Degraded {
		t.Fatalf("unexpected degraded doc %+v", doc)
	}
	if len(doc.Errors) != 1 || doc.Errors[0] != "store unreachable" {
		t.Fatalf("unexpected errors %v", doc.Errors)
	}
	if o.Exists(ctx, 10) {
		t.Fatalf("degraded document must not be persisted")
	}
}

func TestEnsureDegradedKeepsLastUpdated(t *testing.T) {
	repo := seededRepo(t)
	docs := NewMemoryDocumentStore()
	gens := invalidate.NewMemoryGenerations()
	good := NewOrchestrator(repo, docs, gens, nil, Config{}, nil)
	prev := good.Ensure(context.Background(), 10)

	bad := NewOrchestrator(failingReader{err: gamestore.ErrUnavailable}, docs, gens, nil, Config{}, nil)
	doc := bad.Ensure(context.Background(), 10)
	if !doc.LastUpdated.Equal(prev.LastUpdated) {
		t.Fatalf("expected last updated %v, got %v", prev.LastUpdated, doc.LastUpdated)
	}
	if meta, ok := good.Metadata(context.Background(), 10); !ok || !meta.LastUpdated.Equal(prev.LastUpdated) {
		t.Fatalf("persisted metadata changed: %+v", meta)
	}
}

func TestEnsureStoreTimeoutDegrades(t *testing.T) {
	o := NewOrchestrator(slowReader{}, NewMemoryDocumentStore(), invalidate.NewMemoryGenerations(), nil, Config{StoreTimeout: 20 * time.Millisecond}, nil)
	doc := o.Ensure(context.Background(), 10)
	if !doc.Degraded || !doc.IsValid {
		t.Fatalf("expected degraded placeholder, got %+v", doc)
	}
}

func TestEnsureUnknownRoundIsNotPersisted(t *testing.T) {
	o := NewOrchestrator(gamestore.NewMemoryRepository(), NewMemoryDocumentStore(), invalidate.NewMemoryGenerations(), nil, Config{}, nil)
	doc := o.Ensure(context.Background(), 404)
	if !doc.IsValid || doc.GameCount != 0 {
		t.Fatalf("expected placeholder, got %+v", doc)
	}
	if o.Exists(context.Background(), 404) {
		t.Fatalf("unknown round should not be persisted")
	}
}

func TestRedisDocumentStoreSkipsOlderGeneration(t *testing.T) {
	docs, _ := newRedisDocs(t)
	ctx := context.Background()

	newer := &domain.BroadcastDocument{RoundID: 3, Text: "new", Generation: 4}
	older := &domain.BroadcastDocument{RoundID: 3, Text: "old", Generation: 2}
	if err := docs.Save(ctx, newer); err != nil {
		t.Fatalf("Save newer: %v", err)
	}
	if err := docs.Save(ctx, older); err != nil {
		t.Fatalf("Save older: %v", err)
	}
	got, err := docs.Load(ctx, 3)
	if err != nil || got == nil {
		t.Fatalf("Load: %v %v", got, err)
	}
	if got.Text != "new" {
		t.Fatalf("older generation overwrote newer: %q", got.Text)
	}
}

func TestStateAbsent(t *testing.T) {
	o := NewOrchestrator(gamestore.NewMemoryRepository(), NewMemoryDocumentStore(), invalidate.NewMemoryGenerations(), nil, Config{}, nil)
	st, err := o.State(context.Background(), 1)
	if err != nil || st != StateAbsent {
		t.Fatalf("expected absent, got %s (%v)", st, err)
	}
}
