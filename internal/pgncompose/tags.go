package pgncompose

import (
	"fmt"
	"regexp"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-broadcast/internal/domain"
)

type tag struct {
	key   string
	value string
}

var (
	tagLine     = regexp.MustCompile(`^\[([A-Za-z0-9_]+)\s+"((?:[^"\\]|\\.)*)"\]$`)
	trailingEnd = regexp.MustCompile(`\s*(1-0|0-1|1/2-1/2|\*)\s*$`)
)

const pendingResult = string(nchess.NoOutcome)

// pgnResult maps the stored result onto the PGN termination markers.
func pgnResult(code domain.ResultCode) string {
	switch code {
	case domain.ResultWhiteWin, domain.ResultWhiteForfeit:
		return string(nchess.WhiteWon)
	case domain.ResultBlackWin, domain.ResultBlackForfeit:
		return string(nchess.BlackWon)
	case domain.ResultDraw:
		return string(nchess.Draw)
	default:
		return pendingResult
	}
}

// Tags the composer owns; move text cannot override them.
var canonicalTags = map[string]struct{}{
	"Event": {}, "Site": {}, "Date": {}, "Round": {}, "Board": {},
	"White": {}, "Black": {}, "Result": {}, "PlyCount": {},
}

func canonicalTag(key string) bool {
	_, ok := canonicalTags[key]
	return ok
}

func writeTags(b *strings.Builder, tags []tag) {
	for _, t := range tags {
		b.WriteString(fmt.Sprintf("[%s \"%s\"]\n", t.key, t.value))
	}
}

func sanitizeTag(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// splitMoveText separates a leading tag section from the movetext. Complete
// tag lines after the moves begin are dropped; any other body line opening
// with '[' is glued onto the previous line, and a broken header line becomes
// a comment, so one record can never split into two games.
func splitMoveText(raw string) ([]tag, string) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var (
		tags    []tag
		moves   []string
		body    bool
		comment bool
	)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || (!comment && strings.HasPrefix(line, "%")) {
			continue
		}
		if strings.HasPrefix(line, "[") {
			switch {
			case !body:
				if m := tagLine.FindStringSubmatch(line); m != nil {
					tags = append(tags, tag{key: m[1], value: sanitizeTag(m[2])})
					continue
				}
				line = "{" + stripBraces(line) + "}"
			case !comment && tagLine.MatchString(line):
				continue
			default:
				moves[len(moves)-1] += " " + line
				comment = inComment(line, comment)
				continue
			}
		}
		body = true
		moves = append(moves, line)
		comment = inComment(line, comment)
	}
	return tags, strings.Join(moves, "\n")
}

// inComment reports whether a brace comment is still open after line.
// PGN comments do not nest.
func inComment(line string, open bool) bool {
	for _, r := range line {
		switch {
		case !open && r == '{':
			open = true
		case open && r == '}':
			open = false
		}
	}
	return open
}

func stripBraces(s string) string {
	return strings.NewReplacer("{", "", "}", "").Replace(s)
}

// terminate replaces any trailing termination marker with result and closes
// a dangling comment so the marker is not swallowed.
func terminate(movetext, result string) string {
	movetext = trailingEnd.ReplaceAllString(movetext, "")
	if inComment(movetext, false) {
		movetext += "}"
	}
	movetext = strings.TrimSpace(movetext)
	if movetext == "" {
		return result
	}
	return movetext + " " + result
}

// plyCount replays the movetext; illegal or unparsable moves are passed
// through untouched and simply get no PlyCount.
func plyCount(movetext string) (n int, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n, ok = 0, false
		}
	}()
	opt, err := nchess.PGN(strings.NewReader("[Event \"?\"]\n\n" + movetext + "\n"))
	if err != nil {
		return 0, false
	}
	game := nchess.NewGame(opt)
	return len(game.Moves()), true
}
