package drill

import (
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MoveResult reports the outcome of one submitted or scripted move.
// A zero value means the submission was rejected without touching the board.
type MoveResult struct {
	Accepted      bool
	SAN           string
	UCI           string
	AwaitingReply bool
	Completed     bool
}

// HintSquares points at the expected move for rendering. Expiry of a shown
// hint is a presentation concern.
type HintSquares struct {
	From string
	To   string
}

// Summary is handed to the completion callback exactly once per attempt.
type Summary struct {
	Errors    int
	HintsUsed int
	Moves     int
	Elapsed   time.Duration
	Success   bool
}

// Session drives one drill attempt against a scripted line. It owns its Board
// exclusively and assumes the caller serializes commands; the only concurrency
// it defends against is the dual completion trigger (immediate vs. after the
// delayed scripted reply), guarded by the completion latch.
type Session struct {
	seq    MoveSequence
	color  Color
	board  *Board
	logger *zap.Logger

	errorCount int
	hintsUsed  int
	startedAt  time.Time

	activeHint  *HintSquares
	lastHintPly int

	completed  atomic.Bool
	onComplete func(Summary)
}

// NewSession starts an attempt at the initial position. When the trainee
// plays black, white's first scripted move is pre-applied so the trainee's
// first action is their own move; if that token fails to apply the session
// degrades to an un-advanced board rather than failing construction.
func NewSession(seq MoveSequence, color Color, board *Board, logger *zap.Logger) *Session {
	if board == nil {
		board = NewBoard()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		seq:         seq,
		color:       color,
		board:       board,
		logger:      logger,
		startedAt:   time.Now(),
		lastHintPly: -1,
	}
	s.preAdvance()
	return s
}

// SessionState carries the persisted attempt counters a session is rebuilt
// from. A zero LastHintPly means ply zero; callers restoring a hint-free
// attempt pass -1.
type SessionState struct {
	Errors      int
	HintsUsed   int
	ActiveHint  *HintSquares
	LastHintPly int
	StartedAt   time.Time
	Completed   bool
}

// RestoreSession rebuilds a mid-attempt session from persisted state and a
// board that has already been replayed to the recorded position. No
// pre-advance happens here: the pre-applied white move, when any, is part of
// the replayed history.
func RestoreSession(seq MoveSequence, color Color, board *Board, state SessionState, logger *zap.Logger) *Session {
	if board == nil {
		board = NewBoard()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		seq:         seq,
		color:       color,
		board:       board,
		logger:      logger,
		errorCount:  state.Errors,
		hintsUsed:   state.HintsUsed,
		startedAt:   state.StartedAt,
		lastHintPly: state.LastHintPly,
	}
	if state.ActiveHint != nil {
		h := *state.ActiveHint
		s.activeHint = &h
	}
	s.completed.Store(state.Completed)
	return s
}

// OnComplete registers the single-fire finalization callback. The completed
// flag is set before the callback runs, so a second trigger arriving during
// finalization is a no-op.
func (s *Session) OnComplete(fn func(Summary)) { s.onComplete = fn }

func (s *Session) preAdvance() {
	if s.color != Black || len(s.seq.White) == 0 || s.board.MoveCount() != 0 {
		return
	}
	if _, err := s.board.ApplySAN(s.seq.White[0]); err != nil {
		s.logger.Warn("drill_preadvance_failed",
			zap.String("token", s.seq.White[0]),
			zap.Error(err),
		)
	}
}

// ExpectedMoveToken returns the trainee's next scripted token, or false when
// the line holds no more moves for their side.
func (s *Session) ExpectedMoveToken() (string, bool) {
	return s.seq.TokenFor(s.color, expectedIndex(s.color, s.board.MoveCount()))
}

// OpponentReplyToken returns the scripted reply owed by the non-trainee side,
// or false when it is the trainee's turn or the line has run out.
func (s *Session) OpponentReplyToken() (string, bool) {
	opponent := s.color.Other()
	if s.board.Turn() != opponent {
		return "", false
	}
	return s.seq.TokenFor(opponent, expectedIndex(opponent, s.board.MoveCount()))
}

// SubmitMove validates the trainee's move against the scripted line.
// Moves that are malformed, not the trainee's piece, or not legal are
// rejected silently with no state change. A legal-but-unscripted move
// increments the error count and reverts the board; the tally survives the
// undo. A correct move clears any active hint and either awaits the scripted
// reply or completes the drill.
func (s *Session) SubmitMove(from, to, promotion string) MoveResult {
	if s.completed.Load() {
		return MoveResult{Completed: true}
	}
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return MoveResult{}
	}
	piece, ok := s.board.PieceAt(from)
	if !ok || piece.Color != s.color || s.board.Turn() != s.color {
		return MoveResult{}
	}
	if !containsSquare(s.board.LegalTargetsFrom(from), to) {
		return MoveResult{}
	}

	applied, err := s.board.ApplyFromTo(from, to, promotion)
	if err != nil {
		// Legal-target check passed but the engine refused: treat as a
		// normal rejection, never a crash.
		s.logger.Warn("drill_apply_rejected", zap.String("from", from), zap.String("to", to), zap.Error(err))
		return MoveResult{}
	}

	expected, ok := s.seq.TokenFor(applied.Color, (s.board.MoveCount()-1)/2)
	if !ok || !tokenMatches(applied, expected) {
		s.errorCount++
		if undoErr := s.board.UndoLastMove(); undoErr != nil {
			s.logger.Error("drill_undo_failed", zap.Error(undoErr))
		}
		return MoveResult{Accepted: false, SAN: applied.SAN, UCI: applied.UCI}
	}

	s.activeHint = nil
	res := MoveResult{Accepted: true, SAN: applied.SAN, UCI: applied.UCI}
	if _, pending := s.OpponentReplyToken(); pending {
		res.AwaitingReply = true
		return res
	}
	res.Completed = s.CheckCompletion()
	return res
}

// ApplyScriptedReply plays the opponent's next scripted move. The caller
// invokes it after the presentation delay that follows an accepted move.
// Scripted content that fails to apply is logged and the line simply stops
// advancing; the session stays usable.
func (s *Session) ApplyScriptedReply() MoveResult {
	if s.completed.Load() {
		return MoveResult{Completed: true}
	}
	token, ok := s.OpponentReplyToken()
	if !ok {
		return MoveResult{Completed: s.CheckCompletion()}
	}
	applied, err := s.board.ApplySAN(token)
	if err != nil {
		s.logger.Warn("drill_scripted_reply_failed",
			zap.String("token", token),
			zap.Error(err),
		)
		return MoveResult{Completed: s.CheckCompletion()}
	}
	return MoveResult{
		Accepted:  true,
		SAN:       applied.SAN,
		UCI:       applied.UCI,
		Completed: s.CheckCompletion(),
	}
}

// CheckCompletion fires the completion gate when every scripted ply is on the
// board. Safe to call from both trigger points; only the first crossing runs
// the callback.
func (s *Session) CheckCompletion() bool {
	total := s.seq.TotalPlies()
	if total == 0 || s.board.MoveCount() < total {
		return s.completed.Load()
	}
	if s.completed.CompareAndSwap(false, true) {
		if s.onComplete != nil {
			s.onComplete(s.summary())
		}
	}
	return true
}

// Hint toggles the expected-move hint. Showing a hint counts once toward
// hintsUsed per pending ply; toggling it off, or showing it again for the
// same ply, is free.
func (s *Session) Hint() *HintSquares {
	if s.activeHint != nil {
		s.activeHint = nil
		return nil
	}
	token, ok := s.ExpectedMoveToken()
	if !ok {
		return nil
	}
	mv, ok := s.board.Preview(token)
	if !ok {
		s.logger.Warn("drill_hint_unresolvable", zap.String("token", token))
		return nil
	}
	if s.lastHintPly != s.board.MoveCount() {
		s.hintsUsed++
		s.lastHintPly = s.board.MoveCount()
	}
	s.activeHint = &HintSquares{From: mv.From, To: mv.To}
	return s.activeHint
}

// Reset restarts the attempt: starting position (with the black pre-advance
// re-applied), zeroed counters, fresh clock, completion latch cleared. Always
// safe to call; it is the cancellation primitive.
func (s *Session) Reset() {
	s.board.Reset()
	s.preAdvance()
	s.errorCount = 0
	s.hintsUsed = 0
	s.activeHint = nil
	s.lastHintPly = -1
	s.startedAt = time.Now()
	s.completed.Store(false)
}

func (s *Session) summary() Summary {
	return Summary{
		Errors:    s.errorCount,
		HintsUsed: s.hintsUsed,
		Moves:     s.board.MoveCount(),
		Elapsed:   time.Since(s.startedAt),
		Success:   s.errorCount == 0,
	}
}

func (s *Session) Board() *Board          { return s.board }
func (s *Session) Sequence() MoveSequence { return s.seq }
func (s *Session) PlayerColor() Color     { return s.color }
func (s *Session) Errors() int            { return s.errorCount }
func (s *Session) HintsUsed() int         { return s.hintsUsed }
func (s *Session) StartedAt() time.Time   { return s.startedAt }
func (s *Session) LastHintPly() int       { return s.lastHintPly }
func (s *Session) Completed() bool        { return s.completed.Load() }
func (s *Session) ActiveHint() *HintSquares {
	if s.activeHint == nil {
		return nil
	}
	h := *s.activeHint
	return &h
}

// tokenMatches compares an applied move against a scripted token. SAN strings
// are normalized (check/mate/annotation suffixes stripped, castling zeros
// mapped) so content written without decorations still matches; UCI-form
// tokens are accepted as a fallback.
func tokenMatches(applied *AppliedMove, expected string) bool {
	if normalizeSAN(applied.SAN) == normalizeSAN(expected) {
		return true
	}
	return strings.EqualFold(applied.UCI, strings.TrimSpace(expected))
}

func normalizeSAN(san string) string {
	san = strings.TrimSpace(san)
	san = strings.TrimRight(san, "+#!?")
	san = strings.ReplaceAll(san, "0", "O")
	return san
}

func containsSquare(squares []string, target string) bool {
	target = strings.ToLower(strings.TrimSpace(target))
	for _, sq := range squares {
		if sq == target {
			return true
		}
	}
	return false
}
