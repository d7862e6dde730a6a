package drill

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestSession(t *testing.T, text string, color Color) *Session {
	t.Helper()
	return NewSession(ParseMoveText(text), color, NewBoard(), zap.NewNop())
}

func TestSessionFullLineAsWhite(t *testing.T) {
	s := newTestSession(t, "1. e4 e5 2. Nf3 Nc6", White)

	var done []Summary
	s.OnComplete(func(sum Summary) { done = append(done, sum) })

	res := s.SubmitMove("e2", "e4", "")
	if !res.Accepted || !res.AwaitingReply {
		t.Fatalf("e4: %+v", res)
	}
	if res.SAN != "e4" {
		t.Errorf("SAN = %q, want e4", res.SAN)
	}

	res = s.ApplyScriptedReply()
	if !res.Accepted || res.SAN != "e5" {
		t.Fatalf("scripted e5: %+v", res)
	}

	res = s.SubmitMove("g1", "f3", "")
	if !res.Accepted || !res.AwaitingReply {
		t.Fatalf("Nf3: %+v", res)
	}

	res = s.ApplyScriptedReply()
	if !res.Accepted || !res.Completed {
		t.Fatalf("scripted Nc6 should complete: %+v", res)
	}

	if len(done) != 1 {
		t.Fatalf("completion callback fired %d times", len(done))
	}
	if !done[0].Success || done[0].Errors != 0 || done[0].Moves != 4 {
		t.Errorf("summary = %+v", done[0])
	}

	// A second trigger must not run the callback again.
	if !s.CheckCompletion() {
		t.Fatal("CheckCompletion should stay true")
	}
	if len(done) != 1 {
		t.Fatalf("callback refired, count = %d", len(done))
	}
}

func TestSessionWrongMoveRevertsBoardKeepsTally(t *testing.T) {
	s := newTestSession(t, "1. e4 e5", White)
	before := s.Board().FEN()

	// d4 is legal but not the scripted move.
	res := s.SubmitMove("d2", "d4", "")
	if res.Accepted {
		t.Fatalf("wrong move accepted: %+v", res)
	}
	if got := s.Board().FEN(); got != before {
		t.Errorf("board not reverted:\n got %s\nwant %s", got, before)
	}
	if s.Errors() != 1 {
		t.Errorf("Errors = %d, want 1", s.Errors())
	}

	// The tally survives into the eventual summary.
	var sum Summary
	s.OnComplete(func(x Summary) { sum = x })
	s.SubmitMove("e2", "e4", "")
	s.ApplyScriptedReply()
	if !s.Completed() {
		t.Fatal("session should be complete")
	}
	if sum.Errors != 1 || sum.Success {
		t.Errorf("summary = %+v, want 1 error and no success", sum)
	}
}

func TestSessionRejectsInvalidSubmissions(t *testing.T) {
	s := newTestSession(t, "1. e4 e5", White)
	before := s.Board().FEN()

	cases := []struct {
		name     string
		from, to string
	}{
		{"empty squares", "", ""},
		{"garbage square", "z9", "e4"},
		{"empty origin square", "e4", "e5"},
		{"opponent piece", "e7", "e5"},
		{"illegal target", "e2", "e5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := s.SubmitMove(tc.from, tc.to, "")
			if res.Accepted {
				t.Fatalf("accepted: %+v", res)
			}
		})
	}

	if s.Errors() != 0 {
		t.Errorf("silent rejects must not count as errors, got %d", s.Errors())
	}
	if got := s.Board().FEN(); got != before {
		t.Error("silent rejects must not touch the board")
	}
}

func TestSessionBlackPreAdvance(t *testing.T) {
	s := newTestSession(t, "1. e4 e5 2. Nf3 Nc6", Black)

	if s.Board().MoveCount() != 1 {
		t.Fatalf("MoveCount = %d, want 1 after pre-advance", s.Board().MoveCount())
	}
	if s.Board().Turn() != Black {
		t.Fatalf("Turn = %s, want black", s.Board().Turn())
	}
	if tok, ok := s.ExpectedMoveToken(); !ok || tok != "e5" {
		t.Fatalf("expected token = %q, %v", tok, ok)
	}

	var sum Summary
	s.OnComplete(func(x Summary) { sum = x })

	res := s.SubmitMove("e7", "e5", "")
	if !res.Accepted || !res.AwaitingReply {
		t.Fatalf("e5: %+v", res)
	}
	if res = s.ApplyScriptedReply(); res.SAN != "Nf3" {
		t.Fatalf("scripted Nf3: %+v", res)
	}
	if res = s.SubmitMove("b8", "c6", ""); !res.Accepted || !res.Completed {
		t.Fatalf("Nc6 should complete: %+v", res)
	}
	if !sum.Success {
		t.Errorf("summary = %+v", sum)
	}
}

func TestSessionHintToggleAndCounting(t *testing.T) {
	s := newTestSession(t, "1. e4 e5 2. Nf3 Nc6", White)

	h := s.Hint()
	if h == nil || h.From != "e2" || h.To != "e4" {
		t.Fatalf("hint = %+v", h)
	}
	if s.HintsUsed() != 1 {
		t.Fatalf("HintsUsed = %d, want 1", s.HintsUsed())
	}

	if s.Hint() != nil {
		t.Fatal("second call should toggle the hint off")
	}
	if s.Hint() == nil {
		t.Fatal("third call should show it again")
	}
	if s.HintsUsed() != 1 {
		t.Fatalf("re-showing the same ply must not recount, got %d", s.HintsUsed())
	}

	res := s.SubmitMove("e2", "e4", "")
	if !res.Accepted {
		t.Fatalf("e4: %+v", res)
	}
	if s.ActiveHint() != nil {
		t.Fatal("accepted move must clear the active hint")
	}

	s.ApplyScriptedReply()
	if s.Hint() == nil {
		t.Fatal("hint for the next ply")
	}
	if s.HintsUsed() != 2 {
		t.Fatalf("HintsUsed = %d, want 2", s.HintsUsed())
	}
}

func TestSessionReset(t *testing.T) {
	s := newTestSession(t, "1. e4 e5", White)
	s.SubmitMove("d2", "d4", "")
	s.SubmitMove("e2", "e4", "")
	s.Hint()

	start := s.StartedAt()
	time.Sleep(time.Millisecond)
	s.Reset()

	if s.Board().MoveCount() != 0 {
		t.Errorf("MoveCount = %d after reset", s.Board().MoveCount())
	}
	if s.Errors() != 0 || s.HintsUsed() != 0 {
		t.Errorf("counters survived reset: errors=%d hints=%d", s.Errors(), s.HintsUsed())
	}
	if s.Completed() {
		t.Error("completion latch survived reset")
	}
	if !s.StartedAt().After(start) {
		t.Error("clock did not restart")
	}
}

func TestSessionResetReappliesPreAdvance(t *testing.T) {
	s := newTestSession(t, "1. e4 e5", Black)
	s.SubmitMove("e7", "e5", "")
	s.Reset()

	if s.Board().MoveCount() != 1 {
		t.Fatalf("MoveCount = %d, want 1 (pre-advance restored)", s.Board().MoveCount())
	}
	if s.Board().Turn() != Black {
		t.Fatal("must be black to move after reset")
	}
}

func TestSessionScriptedReplyStopsOnBadToken(t *testing.T) {
	seq := MoveSequence{White: []string{"e4"}, Black: []string{"Qxz9"}}
	s := NewSession(seq, White, NewBoard(), zap.NewNop())

	if res := s.SubmitMove("e2", "e4", ""); !res.Accepted {
		t.Fatalf("e4: %+v", res)
	}
	res := s.ApplyScriptedReply()
	if res.Accepted {
		t.Fatalf("bad token applied: %+v", res)
	}
	if s.Board().MoveCount() != 1 {
		t.Errorf("MoveCount = %d, board must be untouched", s.Board().MoveCount())
	}
}

func TestRestoreSessionMidAttempt(t *testing.T) {
	seq := ParseMoveText("1. e4 e5 2. Nf3 Nc6")
	board := NewBoard()
	for _, san := range []string{"e4", "e5"} {
		if _, err := board.ApplySAN(san); err != nil {
			t.Fatalf("setup %s: %v", san, err)
		}
	}
	started := time.Now().Add(-time.Minute)
	s := RestoreSession(seq, White, board, SessionState{
		Errors:      1,
		HintsUsed:   2,
		ActiveHint:  &HintSquares{From: "g1", To: "f3"},
		LastHintPly: board.MoveCount(),
		StartedAt:   started,
	}, zap.NewNop())

	if s.Errors() != 1 || s.HintsUsed() != 2 {
		t.Fatalf("counters = %d/%d", s.Errors(), s.HintsUsed())
	}
	// The hint was shown for this ply already; toggling off and back on
	// must not re-count.
	if h := s.Hint(); h != nil {
		t.Fatalf("restored hint should toggle off, got %+v", h)
	}
	if h := s.Hint(); h == nil || s.HintsUsed() != 2 {
		t.Fatalf("re-shown hint = %+v, hintsUsed = %d", h, s.HintsUsed())
	}
	if tok, ok := s.ExpectedMoveToken(); !ok || tok != "Nf3" {
		t.Fatalf("expected token = %q, %v", tok, ok)
	}

	var sum Summary
	s.OnComplete(func(x Summary) { sum = x })
	s.SubmitMove("g1", "f3", "")
	if res := s.ApplyScriptedReply(); !res.Completed {
		t.Fatalf("restore should finish the line: %+v", res)
	}
	if sum.Errors != 1 || sum.HintsUsed != 2 {
		t.Errorf("summary = %+v", sum)
	}
}
