package pgncompose

import (
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-broadcast/internal/domain"
)

func newTestComposer() *Composer {
	c := New("Club Championship", "Seoul")
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func testRound() domain.RoundMeta {
	return domain.RoundMeta{ID: 7, Number: 3, StartsOn: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
}

func TestComposeTwoVerifiedResults(t *testing.T) {
	c := newTestComposer()
	doc := c.Compose(testRound(), []domain.GameRecordView{
		{RoundID: 7, BoardNumber: 2, Result: domain.ResultDraw, WhiteName: "Kim, A", BlackName: "Lee, B", Verified: true},
		{RoundID: 7, BoardNumber: 1, Result: domain.ResultWhiteWin, WhiteName: "Park, C", BlackName: "Choi, D", Verified: true},
	})
	if !doc.IsValid {
		t.Fatalf("expected valid document, got errors=%v\n%s", doc.Errors, doc.Text)
	}
	if doc.GameCount != 2 {
		t.Fatalf("expected 2 games, got %d", doc.GameCount)
	}
	if n := strings.Count(doc.Text, "[Event "); n != 2 {
		t.Fatalf("expected 2 game blocks, got %d", n)
	}
	first := strings.Index(doc.Text, `[Result "1-0"]`)
	second := strings.Index(doc.Text, `[Result "1/2-1/2"]`)
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected board 1 (1-0) before board 2 (1/2-1/2):\n%s", doc.Text)
	}
	if !strings.Contains(doc.Text, `[Date "2026.03.01"]`) || !strings.Contains(doc.Text, `[Round "3"]`) {
		t.Fatalf("missing date/round tags:\n%s", doc.Text)
	}
	if !strings.Contains(doc.Text, `[Event "Club Championship"]`) || !strings.Contains(doc.Text, `[Site "Seoul"]`) {
		t.Fatalf("missing identity tags:\n%s", doc.Text)
	}
}

func TestComposeEmptyYieldsPlaceholder(t *testing.T) {
	doc := newTestComposer().Compose(testRound(), nil)
	if !doc.IsValid || doc.GameCount != 0 {
		t.Fatalf("expected valid empty doc, got valid=%v count=%d", doc.IsValid, doc.GameCount)
	}
	if n := strings.Count(doc.Text, "[Event "); n != 1 {
		t.Fatalf("expected single placeholder block, got %d", n)
	}
	if !strings.Contains(doc.Text, "no games yet") || !strings.Contains(doc.Text, `[Result "*"]`) {
		t.Fatalf("unexpected placeholder:\n%s", doc.Text)
	}
	if len(doc.Errors) != 0 {
		t.Fatalf("placeholder should carry no errors, got %v", doc.Errors)
	}
}

func TestComposeSkipsUnassignedRecords(t *testing.T) {
	doc := newTestComposer().Compose(testRound(), []domain.GameRecordView{
		{BoardNumber: 1, Result: domain.ResultPending, WhiteName: "Kim, A"},
	})
	if doc.GameCount != 0 || len(doc.Errors) != 0 {
		t.Fatalf("unassigned record must be skipped silently: count=%d errs=%v", doc.GameCount, doc.Errors)
	}
	if !strings.Contains(doc.Text, "no games yet") {
		t.Fatalf("expected placeholder fallback:\n%s", doc.Text)
	}
}

func TestComposeDuplicateBoardExcluded(t *testing.T) {
	doc := newTestComposer().Compose(testRound(), []domain.GameRecordView{
		{BoardNumber: 1, Result: domain.ResultWhiteWin, WhiteName: "A", BlackName: "B"},
		{BoardNumber: 1, Result: domain.ResultBlackWin, WhiteName: "C", BlackName: "D"},
		{BoardNumber: 2, Result: domain.ResultDraw, WhiteName: "E", BlackName: "F"},
	})
	if doc.GameCount != 2 {
		t.Fatalf("expected 2 valid games, got %d", doc.GameCount)
	}
	if len(doc.Errors) != 1 || !strings.Contains(doc.Errors[0], "duplicate") {
		t.Fatalf("expected one duplicate error, got %v", doc.Errors)
	}
	if strings.Contains(doc.Text, `[White "C"]`) {
		t.Fatalf("duplicate record leaked into text:\n%s", doc.Text)
	}
	if !doc.IsValid {
		t.Fatalf("document should stay valid")
	}
}

func TestComposeUnknownResultCode(t *testing.T) {
	doc := newTestComposer().Compose(testRound(), []domain.GameRecordView{
		{BoardNumber: 1, Result: domain.ResultCode("bogus"), WhiteName: "A", BlackName: "B"},
	})
	if doc.GameCount != 0 || len(doc.Errors) != 1 {
		t.Fatalf("expected excluded game with one error, got count=%d errs=%v", doc.GameCount, doc.Errors)
	}
	if !doc.IsValid {
		t.Fatalf("placeholder fallback must be valid")
	}
}

func TestComposeOverridesPlayerTagsInMoveText(t *testing.T) {
	moves := "[Event \"Casual\"]\n[White \"kim\"]\n[Black \"lee\"]\n[ECO \"C20\"]\n\n1. e4 e5 2. Nf3 Nc6 *"
	doc := newTestComposer().Compose(testRound(), []domain.GameRecordView{
		{BoardNumber: 4, Result: domain.ResultWhiteWin, WhiteName: "Kim, Alpha", BlackName: "Lee, Beta", MoveText: moves},
	})
	if strings.Contains(doc.Text, `[White "kim"]`) || strings.Contains(doc.Text, `[Event "Casual"]`) {
		t.Fatalf("move text tags must not override canonical tags:\n%s", doc.Text)
	}
	if !strings.Contains(doc.Text, `[White "Kim, Alpha"]`) || !strings.Contains(doc.Text, `[ECO "C20"]`) {
		t.Fatalf("expected canonical names and passthrough ECO:\n%s", doc.Text)
	}
	if !strings.Contains(doc.Text, "1. e4 e5 2. Nf3 Nc6 1-0") {
		t.Fatalf("expected termination marker rewritten to 1-0:\n%s", doc.Text)
	}
	if !doc.IsValid {
		t.Fatalf("expected valid document")
	}
}

func TestComposeToleratesMalformedMoveText(t *testing.T) {
	moves := "1. e4 {unterminated comment\n\n[Event \"Injected\"]\n2. Zz9"
	doc := newTestComposer().Compose(testRound(), []domain.GameRecordView{
		{BoardNumber: 1, Result: domain.ResultPending, WhiteName: "A", BlackName: "B", MoveText: moves},
	})
	if doc.GameCount != 1 || len(doc.Errors) != 0 {
		t.Fatalf("malformed moves are passthrough, got count=%d errs=%v", doc.GameCount, doc.Errors)
	}
	if tagLinesStarting(doc.Text, "[Event ") != 1 {
		t.Fatalf("injected tag split the game:\n%s", doc.Text)
	}
	if !doc.IsValid {
		t.Fatalf("expected structurally valid document:\n%s", doc.Text)
	}
}

func TestComposeNeutralisesBrokenHeaderLine(t *testing.T) {
	doc := newTestComposer().Compose(testRound(), []domain.GameRecordView{
		{BoardNumber: 1, Result: domain.ResultWhiteWin, WhiteName: "A", BlackName: "B", MoveText: "[Event \"half tag\"\n1. e4 e5"},
	})
	if !doc.IsValid || doc.GameCount != 1 {
		t.Fatalf("expected valid single game, got valid=%v count=%d:\n%s", doc.IsValid, doc.GameCount, doc.Text)
	}
	if tagLinesStarting(doc.Text, "[Event ") != 1 {
		t.Fatalf("broken header line survived as a tag line:\n%s", doc.Text)
	}
	if !strings.Contains(doc.Text, "1. e4 e5 1-0") {
		t.Fatalf("moves lost:\n%s", doc.Text)
	}
}

func TestComposeBracketInsideCommentStaysMovetext(t *testing.T) {
	doc := newTestComposer().Compose(testRound(), []domain.GameRecordView{
		{BoardNumber: 1, Result: domain.ResultDraw, WhiteName: "A", BlackName: "B", MoveText: "1. e4 {see\n[this] note} e5"},
	})
	if !doc.IsValid || doc.GameCount != 1 {
		t.Fatalf("expected valid single game, got valid=%v count=%d:\n%s", doc.IsValid, doc.GameCount, doc.Text)
	}
	for _, line := range strings.Split(doc.Text, "\n") {
		if strings.HasPrefix(line, "[this]") {
			t.Fatalf("comment line left at line start:\n%s", doc.Text)
		}
	}
	if !WellFormed("[Result \"*\"]\n\n1. e4 {see\n[this] note} e5 *\n") {
		t.Fatalf("bracket line inside a comment must not start a new game")
	}
}

func tagLinesStarting(text, prefix string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

func TestComposeHeaderOnlyStub(t *testing.T) {
	doc := newTestComposer().Compose(testRound(), []domain.GameRecordView{
		{BoardNumber: 1, Result: domain.ResultPending, WhiteName: "A", BlackName: "B"},
	})
	if doc.GameCount != 1 || len(doc.Errors) != 0 || !doc.IsValid {
		t.Fatalf("stub should be a valid game: count=%d errs=%v valid=%v", doc.GameCount, doc.Errors, doc.IsValid)
	}
	if !strings.Contains(doc.Text, `[Result "*"]`) {
		t.Fatalf("stub must carry * result:\n%s", doc.Text)
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	c := newTestComposer()
	games := []domain.GameRecordView{
		{BoardNumber: 3, Result: domain.ResultBlackForfeit, WhiteName: "A", BlackName: "B"},
		{BoardNumber: 1, Result: domain.ResultDraw, WhiteName: "C", BlackName: "D", MoveText: "1. d4 d5 1/2-1/2"},
	}
	a := c.Compose(testRound(), games)
	b := c.Compose(testRound(), games)
	if a.Text != b.Text || a.GameCount != b.GameCount {
		t.Fatalf("compose should be deterministic")
	}
	if !strings.Contains(a.Text, `[Result "0-1"]`) {
		t.Fatalf("forfeit should map to 0-1:\n%s", a.Text)
	}
}

func TestWellFormed(t *testing.T) {
	if WellFormed("") {
		t.Fatalf("empty text is not a collection")
	}
	if WellFormed("[Event \"x\"]\n[Result \"1-0\"]\n\n1. e4 0-1\n") {
		t.Fatalf("mismatched termination should fail")
	}
	if !WellFormed("[Event \"x\"]\n[Result \"1-0\"]\n\n1. e4 1-0\n") {
		t.Fatalf("expected well-formed")
	}
}
