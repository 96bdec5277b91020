// Package pgncompose turns a round's board results into one PGN collection
// suitable for polling broadcast viewers.
package pgncompose

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/park285/chess-broadcast/internal/domain"
)

const (
	DefaultEvent = "Round Broadcast"
	DefaultSite  = "?"

	placeholderComment = "{no games yet}"
)

// Composer is stateless apart from its identity defaults.
type Composer struct {
	Event string
	Site  string

	now func() time.Time
}

func New(event, site string) *Composer {
	if strings.TrimSpace(event) == "" {
		event = DefaultEvent
	}
	if strings.TrimSpace(site) == "" {
		site = DefaultSite
	}
	return &Composer{Event: event, Site: site, now: time.Now}
}

// Compose builds the broadcast document for round from games.
// The returned text is always a well-formed PGN collection; problems with
// individual games land in Errors and never abort the rest.
func (c *Composer) Compose(round domain.RoundMeta, games []domain.GameRecordView) (doc domain.BroadcastDocument) {
	defer func() {
		if r := recover(); r != nil {
			doc = c.Placeholder(round.ID)
			doc.IsValid = false
			doc.Errors = []string{fmt.Sprintf("compose failed: %v", r)}
		}
	}()

	ready := make([]domain.GameRecordView, 0, len(games))
	for _, g := range games {
		// 선수 배정 전 기록은 아직 준비되지 않은 것으로 보고 조용히 건너뜀
		if !g.Assigned() {
			continue
		}
		ready = append(ready, g)
	}
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].BoardNumber < ready[j].BoardNumber })

	var (
		blocks []string
		errs   []string
		seen   = make(map[int]struct{}, len(ready))
	)
	for _, g := range ready {
		if _, dup := seen[g.BoardNumber]; dup {
			errs = append(errs, fmt.Sprintf("board %d: duplicate board number", g.BoardNumber))
			continue
		}
		seen[g.BoardNumber] = struct{}{}
		if !g.Result.Valid() {
			errs = append(errs, fmt.Sprintf("board %d: unknown result code %q", g.BoardNumber, string(g.Result)))
			continue
		}
		blocks = append(blocks, c.gameBlock(round, g))
	}

	doc = domain.BroadcastDocument{
		RoundID:     round.ID,
		GameCount:   len(blocks),
		Errors:      errs,
		LastUpdated: c.now(),
	}
	if len(blocks) == 0 {
		doc.Text = placeholderBlock()
	} else {
		doc.Text = strings.Join(blocks, "\n")
	}
	doc.IsValid = WellFormed(doc.Text)
	return doc
}

// Placeholder returns the zero-game document. Header values are fixed so that
// consumers can recognise it regardless of the round.
func (c *Composer) Placeholder(roundID int64) domain.BroadcastDocument {
	text := placeholderBlock()
	return domain.BroadcastDocument{
		RoundID:     roundID,
		Text:        text,
		GameCount:   0,
		IsValid:     WellFormed(text),
		LastUpdated: c.now(),
	}
}

func placeholderBlock() string {
	tags := []tag{
		{"Event", DefaultEvent},
		{"Site", "?"},
		{"Date", unknownDate},
		{"Round", "?"},
		{"White", "?"},
		{"Black", "?"},
		{"Result", pendingResult},
	}
	var b strings.Builder
	writeTags(&b, tags)
	b.WriteString("\n")
	b.WriteString(placeholderComment)
	b.WriteString(" ")
	b.WriteString(pendingResult)
	b.WriteString("\n")
	return b.String()
}

func (c *Composer) gameBlock(round domain.RoundMeta, g domain.GameRecordView) string {
	result := pgnResult(g.Result)
	extra, movetext := splitMoveText(g.MoveText)

	tags := []tag{
		{"Event", firstNonEmpty(round.EventName, c.Event)},
		{"Site", firstNonEmpty(round.Site, c.Site)},
		{"Date", formatDate(round.StartsOn)},
		{"Round", roundNumber(round)},
		{"Board", fmt.Sprintf("%d", g.BoardNumber)},
		// White/Black은 항상 정규화된 이름으로 덮어씀
		{"White", sanitizeTag(g.WhiteName)},
		{"Black", sanitizeTag(g.BlackName)},
		{"Result", result},
	}
	for _, t := range extra {
		if canonicalTag(t.key) {
			continue
		}
		tags = append(tags, t)
	}

	var b strings.Builder
	if movetext == "" {
		// header-only stub: game in progress or no record of moves
		writeTags(&b, tags)
		b.WriteString("\n")
		b.WriteString(result)
		b.WriteString("\n")
		return b.String()
	}

	body := terminate(movetext, result)
	if plies, ok := plyCount(body); ok {
		tags = append(tags, tag{"PlyCount", fmt.Sprintf("%d", plies)})
	}
	writeTags(&b, tags)
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	return b.String()
}

func roundNumber(round domain.RoundMeta) string {
	if round.Number <= 0 {
		return "?"
	}
	return fmt.Sprintf("%d", round.Number)
}

const unknownDate = "????.??.??"

func formatDate(t time.Time) string {
	if t.IsZero() {
		return unknownDate
	}
	return fmt.Sprintf("%04d.%02d.%02d", t.Year(), int(t.Month()), t.Day())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := sanitizeTag(v); s != "" {
			return s
		}
	}
	return "?"
}
