package pgncompose

import "strings"

type gameLines struct {
	tags []string
	body []string
}

// WellFormed reports whether text is a PGN collection in which every game has
// a tag section carrying a Result tag and movetext ending in that result.
func WellFormed(text string) bool {
	games := splitGames(text)
	if len(games) == 0 {
		return false
	}
	for _, g := range games {
		if !wellFormedGame(g) {
			return false
		}
	}
	return true
}

// splitGames starts a new game at a '[' line that follows movetext. Lines
// inside a brace comment are always movetext.
func splitGames(text string) []gameLines {
	var (
		games   []gameLines
		cur     gameLines
		comment bool
	)
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !comment && strings.HasPrefix(line, "[") {
			if len(cur.body) > 0 {
				games = append(games, cur)
				cur = gameLines{}
			}
			cur.tags = append(cur.tags, line)
			continue
		}
		cur.body = append(cur.body, line)
		comment = inComment(line, comment)
	}
	if len(cur.tags) > 0 || len(cur.body) > 0 {
		games = append(games, cur)
	}
	return games
}

func wellFormedGame(g gameLines) bool {
	if len(g.tags) == 0 || len(g.body) == 0 {
		return false
	}
	var result string
	for _, line := range g.tags {
		m := tagLine.FindStringSubmatch(line)
		if m == nil {
			return false
		}
		if m[1] == "Result" {
			result = m[2]
		}
	}
	switch result {
	case "1-0", "0-1", "1/2-1/2", "*":
	default:
		return false
	}
	movetext := strings.Join(g.body, " ")
	if inComment(movetext, false) {
		return false
	}
	return strings.HasSuffix(movetext, " "+result) || movetext == result
}
