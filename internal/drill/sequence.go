package drill

import (
	"regexp"
	"strings"
)

var moveNumberMarker = regexp.MustCompile(`\d+\.\s*`)

// MoveSequence is a scripted opening line split into per-side move tokens.
// White always moves first, so len(Black) is len(White) or len(White)-1.
// Immutable for the lifetime of a Session.
type MoveSequence struct {
	White []string
	Black []string
}

// ParseMoveText splits numbered move-pair text, e.g. "1. e4 e5 2. Nf3 Nc6",
// into per-color token lists. Purely lexical: tokens are not checked for
// legality here, only when applied through the board. Empty or
// whitespace-only input yields an empty sequence, and a line ending after a
// white move simply leaves the black list one shorter.
func ParseMoveText(text string) MoveSequence {
	var seq MoveSequence
	cleaned := strings.Join(strings.Fields(text), " ")
	if cleaned == "" {
		return seq
	}
	for _, chunk := range moveNumberMarker.Split(cleaned, -1) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		parts := strings.Fields(chunk)
		seq.White = append(seq.White, parts[0])
		if len(parts) > 1 {
			seq.Black = append(seq.Black, parts[1])
		}
	}
	return seq
}

// TotalPlies is the number of half-moves in the full scripted line.
func (s MoveSequence) TotalPlies() int { return len(s.White) + len(s.Black) }

// TokenFor returns the token at index in the given color's list.
func (s MoveSequence) TokenFor(color Color, index int) (string, bool) {
	list := s.White
	if color == Black {
		list = s.Black
	}
	if index < 0 || index >= len(list) {
		return "", false
	}
	return list[index], true
}

// expectedIndex derives the next expected move index for a color from the
// number of half-moves already on the board: white expects index
// appliedCount/2, black expects (appliedCount-1)/2. Black has no move before
// white's first, so a negative intermediate clamps to 0.
func expectedIndex(color Color, appliedCount int) int {
	if color == White {
		return appliedCount / 2
	}
	idx := (appliedCount - 1) / 2
	if idx < 0 {
		idx = 0
	}
	return idx
}
