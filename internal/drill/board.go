package drill

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// uciPattern recognizes coordinate-form tokens ("g1f3", "e7e8q"). SAN never
// concatenates two squares, so the shapes are disjoint.
var uciPattern = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][nbrq]?$`)

var (
	ErrIllegalMove  = errors.New("illegal chess move")
	ErrNoMoveToUndo = errors.New("no moves available to undo")
)

// Color identifies the side a trainee plays.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// ParseColor accepts the content-store short forms ("w"/"b") as well as the
// long forms.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "white":
		return White, nil
	case "b", "black":
		return Black, nil
	default:
		return "", fmt.Errorf("unknown color %q", s)
	}
}

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}

// Piece is the typed view of a square occupant crossing the adapter boundary.
type Piece struct {
	Kind  string `json:"kind"` // pawn|knight|bishop|rook|queen|king
	Color Color  `json:"color"`
}

// AppliedMove carries the metadata of a move resolved against a position.
type AppliedMove struct {
	From      string
	To        string
	SAN       string
	UCI       string
	Color     Color
	Capture   bool
	Promotion string
}

// Board wraps the chess rules engine behind the operations the drill state
// machine needs. One Board is owned by exactly one Session; it is never shared.
//
// The engine has no native undo, so the Board keeps the applied UCI history and
// rebuilds from the start position when a move must be reverted, the same way
// session replay works service-side.
type Board struct {
	game *nchess.Game
	uci  []string
}

func NewBoard() *Board {
	return &Board{game: nchess.NewGame()}
}

// Reset re-establishes the starting position and clears the move history.
func (b *Board) Reset() {
	b.game = nchess.NewGame()
	b.uci = b.uci[:0]
}

// MoveCount reports the number of half-moves applied since the last reset.
func (b *Board) MoveCount() int { return len(b.uci) }

// AppliedUCI returns a copy of the applied half-move history.
func (b *Board) AppliedUCI() []string { return append([]string(nil), b.uci...) }

func (b *Board) Turn() Color { return colorFrom(b.game.Position().Turn()) }

func (b *Board) FEN() string { return b.game.FEN() }

// ApplySAN applies a scripted token. Coordinate-form tokens are routed to the
// UCI decoder; the lenient SAN parser would otherwise read "g1f3" as the pawn
// move f3.
func (b *Board) ApplySAN(token string) (*AppliedMove, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrIllegalMove)
	}
	if uciPattern.MatchString(strings.ToLower(token)) {
		return b.ApplyUCI(token)
	}
	pos := b.game.Position()
	mv, err := nchess.AlgebraicNotation{}.Decode(pos, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrIllegalMove, token)
	}
	return b.apply(pos, mv)
}

// ApplyUCI applies a move given strictly in coordinate form, e.g. "g1f3".
// History replay uses this decoder only.
func (b *Board) ApplyUCI(token string) (*AppliedMove, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrIllegalMove)
	}
	pos := b.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrIllegalMove, token)
	}
	return b.apply(pos, mv)
}

// ApplyFromTo applies the legal move between two squares, if any. The
// promotion piece ("q","r","b","n") disambiguates promotions; empty defaults
// to queen.
func (b *Board) ApplyFromTo(from, to, promotion string) (*AppliedMove, error) {
	mv, ok := b.findMove(from, to, promotion)
	if !ok {
		return nil, fmt.Errorf("%w: %s-%s", ErrIllegalMove, from, to)
	}
	return b.apply(b.game.Position(), mv)
}

func (b *Board) apply(pos *nchess.Position, mv *nchess.Move) (*AppliedMove, error) {
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	uci := strings.ToLower(nchess.UCINotation{}.Encode(pos, mv))
	mover := colorFrom(pos.Turn())
	if err := b.game.Move(mv, nil); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, san)
	}
	b.uci = append(b.uci, uci)
	return &AppliedMove{
		From:      mv.S1().String(),
		To:        mv.S2().String(),
		SAN:       san,
		UCI:       uci,
		Color:     mover,
		Capture:   mv.HasTag(nchess.Capture) || mv.HasTag(nchess.EnPassant),
		Promotion: promoString(mv.Promo()),
	}, nil
}

func (b *Board) findMove(from, to, promotion string) (*nchess.Move, bool) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	promotion = strings.ToLower(strings.TrimSpace(promotion))
	for _, mv := range b.game.ValidMoves() {
		if mv.S1().String() != from || mv.S2().String() != to {
			continue
		}
		p := promoString(mv.Promo())
		if p == promotion || (promotion == "" && p == "q") {
			return &mv, true
		}
	}
	return nil, false
}

// UndoLastMove reverts the most recent applied move by replaying the
// remaining history onto a fresh game.
func (b *Board) UndoLastMove() error {
	if len(b.uci) == 0 {
		return ErrNoMoveToUndo
	}
	history := b.uci[:len(b.uci)-1]
	game := nchess.NewGame()
	notation := nchess.UCINotation{}
	for _, u := range history {
		mv, err := notation.Decode(game.Position(), u)
		if err != nil {
			return fmt.Errorf("replay %s: %w", u, err)
		}
		if err := game.Move(mv, nil); err != nil {
			return fmt.Errorf("replay %s: %w", u, err)
		}
	}
	b.game = game
	b.uci = history
	return nil
}

// LegalTargetsFrom lists the destination squares reachable from a square for
// the side to move.
func (b *Board) LegalTargetsFrom(from string) []string {
	from = strings.ToLower(strings.TrimSpace(from))
	var targets []string
	seen := make(map[string]struct{})
	for _, mv := range b.game.ValidMoves() {
		if mv.S1().String() != from {
			continue
		}
		to := mv.S2().String()
		if _, dup := seen[to]; dup {
			continue
		}
		seen[to] = struct{}{}
		targets = append(targets, to)
	}
	return targets
}

// AllLegalMoves enumerates every legal move in the position with its SAN and
// UCI encodings, without mutating the board.
func (b *Board) AllLegalMoves() []AppliedMove {
	pos := b.game.Position()
	mover := colorFrom(pos.Turn())
	moves := b.game.ValidMoves()
	out := make([]AppliedMove, 0, len(moves))
	for _, mv := range moves {
		out = append(out, AppliedMove{
			From:      mv.S1().String(),
			To:        mv.S2().String(),
			SAN:       nchess.AlgebraicNotation{}.Encode(pos, &mv),
			UCI:       strings.ToLower(nchess.UCINotation{}.Encode(pos, &mv)),
			Color:     mover,
			Capture:   mv.HasTag(nchess.Capture) || mv.HasTag(nchess.EnPassant),
			Promotion: promoString(mv.Promo()),
		})
	}
	return out
}

// Preview resolves a SAN-like token to its move metadata without mutating the
// board. Returns false when the token does not name a legal move here.
func (b *Board) Preview(token string) (*AppliedMove, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}
	pos := b.game.Position()
	var mv *nchess.Move
	var err error
	if uciPattern.MatchString(strings.ToLower(token)) {
		mv, err = nchess.UCINotation{}.Decode(pos, strings.ToLower(token))
	} else {
		mv, err = nchess.AlgebraicNotation{}.Decode(pos, token)
	}
	if err != nil {
		return nil, false
	}
	return &AppliedMove{
		From:      mv.S1().String(),
		To:        mv.S2().String(),
		SAN:       nchess.AlgebraicNotation{}.Encode(pos, mv),
		UCI:       strings.ToLower(nchess.UCINotation{}.Encode(pos, mv)),
		Color:     colorFrom(pos.Turn()),
		Capture:   mv.HasTag(nchess.Capture) || mv.HasTag(nchess.EnPassant),
		Promotion: promoString(mv.Promo()),
	}, true
}

// PieceAt reports the piece occupying a square, if any.
func (b *Board) PieceAt(square string) (Piece, bool) {
	sq, ok := parseSquare(square)
	if !ok {
		return Piece{}, false
	}
	piece := b.game.Position().Board().Piece(sq)
	if piece == nchess.NoPiece {
		return Piece{}, false
	}
	return Piece{Kind: pieceKind(piece.Type()), Color: colorFrom(piece.Color())}, true
}

// Snapshot renders the position as an 8x8 grid indexed [rank][file], rank 0
// being rank 1. Empty squares are zero-valued pieces.
func (b *Board) Snapshot() [8][8]Piece {
	var grid [8][8]Piece
	board := b.game.Position().Board()
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			grid[int(rank)][int(file)] = Piece{
				Kind:  pieceKind(piece.Type()),
				Color: colorFrom(piece.Color()),
			}
		}
	}
	return grid
}

// InCheck reports whether the side to move is in check, derived from the tag
// of the last applied move. The standard starting position is never in check.
func (b *Board) InCheck() bool {
	moves := b.game.Moves()
	if len(moves) == 0 {
		return false
	}
	return moves[len(moves)-1].HasTag(nchess.Check)
}

// SANHistory re-encodes the applied moves as SAN tokens.
func (b *Board) SANHistory() []string {
	moves := b.game.Moves()
	positions := b.game.Positions()
	san := make([]string, 0, len(moves))
	notation := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		san = append(san, notation.Encode(positions[i], mv))
	}
	return san
}

func parseSquare(s string) (nchess.Square, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return 0, false
	}
	file, rank := s[0], s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return 0, false
	}
	return nchess.NewSquare(
		nchess.FileA+nchess.File(file-'a'),
		nchess.Rank1+nchess.Rank(rank-'1'),
	), true
}

func pieceKind(pt nchess.PieceType) string {
	switch pt {
	case nchess.Pawn:
		return "pawn"
	case nchess.Knight:
		return "knight"
	case nchess.Bishop:
		return "bishop"
	case nchess.Rook:
		return "rook"
	case nchess.Queen:
		return "queen"
	case nchess.King:
		return "king"
	default:
		return ""
	}
}

func promoString(pt nchess.PieceType) string {
	switch pt {
	case nchess.Knight:
		return "n"
	case nchess.Bishop:
		return "b"
	case nchess.Rook:
		return "r"
	case nchess.Queen:
		return "q"
	default:
		return ""
	}
}
