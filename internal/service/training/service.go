package training

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/opening-trainer/internal/content"
	"github.com/kapu/opening-trainer/internal/domain"
	"github.com/kapu/opening-trainer/internal/drill"
)

var (
	ErrAttemptInProgress = errors.New("drill attempt already in progress")
	ErrProfileNotFound   = errors.New("trainer profile not found")
	ErrNoVariations      = errors.New("opening has no variations to select")
)

// Options tune service behavior beyond its collaborators.
type Options struct {
	SelectionMode    drill.SelectionMode
	UpgradeOnly      bool
	LeaderboardLimit int
}

// Service orchestrates drill attempts: content lookup, session lifecycle,
// persistence, and progression. Commands for the same trainee are serialized
// on a per-trainee lock; the board is rebuilt from the stored move list on
// every command.
type Service struct {
	catalog *content.Catalog
	repo    Repository
	store   *AttemptStore
	logger  *zap.Logger
	opts    Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(catalog *content.Catalog, repo Repository, store *AttemptStore, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SelectionMode == "" {
		opts.SelectionMode = drill.SelectSeries
	}
	if opts.LeaderboardLimit <= 0 {
		opts.LeaderboardLimit = 10
	}
	return &Service{
		catalog: catalog,
		repo:    repo,
		store:   store,
		logger:  logger,
		opts:    opts,
		locks:   make(map[string]*sync.Mutex),
	}
}

// HashTrainee derives the stable pseudonymous identity stored everywhere in
// place of the raw trainee id.
func HashTrainee(traineeID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(traineeID)))
	return hex.EncodeToString(sum[:])
}

func (s *Service) lockFor(traineeHash string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[traineeHash]
	if !ok {
		l = &sync.Mutex{}
		s.locks[traineeHash] = l
	}
	return l
}

// AttemptView is the externally visible state of an in-flight drill.
type AttemptView struct {
	AttemptUUID   string
	OpeningID     string
	OpeningName   string
	VariationName string
	Difficulty    drill.Difficulty
	Color         drill.Color
	FEN           string
	SANHistory    []string
	Board         [8][8]drill.Piece
	Check         bool
	Errors        int
	HintsUsed     int
	Completed     bool
}

// MoveOutcome reports one move command, including the scripted reply that
// followed an accepted move and the award when the line finished.
type MoveOutcome struct {
	Attempt  AttemptView
	Accepted bool
	SAN      string
	UCI      string
	Reply    string
	Award    *drill.XPBreakdown
}

// Openings lists the available study sets.
func (s *Service) Openings() []content.Opening { return s.catalog.Openings() }

// Start begins a drill on one line of an opening. An empty variation name
// selects the main line. A trainee with an attempt already in flight must
// finish or abandon it first.
func (s *Service) Start(ctx context.Context, traineeID, openingID, variationName string) (*AttemptView, error) {
	hash := HashTrainee(traineeID)
	l := s.lockFor(hash)
	l.Lock()
	defer l.Unlock()

	if _, err := s.store.Load(ctx, hash); err == nil {
		return nil, ErrAttemptInProgress
	} else if !errors.Is(err, ErrNoActiveAttempt) {
		return nil, err
	}
	if variationName == "" {
		variationName = content.MainLineName
	}
	return s.startLine(ctx, hash, openingID, variationName, nil)
}

// startLine creates and persists a fresh attempt. Progress carried over from
// an exhausted attempt arrives via carry; otherwise prior successes recorded
// in the repository seed the tracker.
func (s *Service) startLine(ctx context.Context, traineeHash, openingID, variationName string, carry *attemptState) (*AttemptView, error) {
	op, line, err := s.catalog.Line(content.VariationKey(openingID, variationName))
	if err != nil {
		return nil, err
	}
	color, err := drill.ParseColor(op.Color)
	if err != nil {
		return nil, err
	}

	sess := drill.NewSession(line.Sequence, color, drill.NewBoard(), s.logger)

	st := &attemptState{
		AttemptUUID:   uuid.NewString(),
		TraineeHash:   traineeHash,
		OpeningID:     op.ID,
		VariationName: line.Name,
		Color:         string(color),
		MovesUCI:      sess.Board().AppliedUCI(),
		LastHintPly:   -1,
		StartedAt:     sess.StartedAt(),
		SelectionMode: string(s.opts.SelectionMode),
		Statuses:      make(map[string]string),
		Cursor:        0,
	}
	if carry != nil {
		st.SelectionMode = carry.SelectionMode
		st.Statuses = carry.Statuses
		st.Cursor = carry.Cursor
	} else {
		names, err := s.repo.SucceededVariations(ctx, traineeHash, op.ID)
		if err != nil {
			s.logger.Warn("drill_history_lookup_failed", zap.String("opening", op.ID), zap.Error(err))
		}
		lines, _ := s.catalog.Lines(op.ID)
		keys := make([]string, 0, len(lines))
		for _, ln := range lines {
			keys = append(keys, ln.Key)
		}
		completed := make([]string, 0, len(names))
		for _, name := range names {
			completed = append(completed, content.VariationKey(op.ID, name))
		}
		tracker := drill.NewTracker(nil, s.opts.SelectionMode)
		tracker.Reinitialize(keys, completed)
		st.Statuses = snapshotStatuses(tracker)
		// Series order resumes after the line being drilled.
		for i, ln := range lines {
			if ln.Name == line.Name {
				st.Cursor = i + 1
				break
			}
		}
	}

	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	s.logger.Info("drill_started",
		zap.String("opening", op.ID),
		zap.String("variation", line.Name),
		zap.String("color", string(color)),
	)
	view := s.view(st, sess, op)
	return &view, nil
}

// Move plays the trainee's move and, when it is the scripted one, the
// opponent's reply. The client decides how to pace the reply on screen; the
// engine applies it in the same command.
func (s *Service) Move(ctx context.Context, traineeID, from, to, promotion string) (*MoveOutcome, error) {
	hash := HashTrainee(traineeID)
	l := s.lockFor(hash)
	l.Lock()
	defer l.Unlock()

	st, sess, op, err := s.resume(ctx, hash)
	if err != nil {
		return nil, err
	}

	var summary *drill.Summary
	sess.OnComplete(func(sum drill.Summary) { summary = &sum })

	res := sess.SubmitMove(from, to, promotion)
	out := &MoveOutcome{Accepted: res.Accepted, SAN: res.SAN, UCI: res.UCI}
	if res.Accepted && res.AwaitingReply {
		reply := sess.ApplyScriptedReply()
		out.Reply = reply.SAN
	}

	st.MovesUCI = sess.Board().AppliedUCI()
	st.Errors = sess.Errors()
	st.Completed = sess.Completed()
	saveHintState(st, sess)

	// Completion is final once the gate fires. A failed persistence call
	// is logged and reconciled later; it never rolls the attempt back.
	if summary != nil {
		award, err := s.finalize(ctx, st, op, *summary)
		if err != nil {
			s.logger.Error("drill_finalize_failed",
				zap.String("attempt", st.AttemptUUID),
				zap.Error(err),
			)
		}
		out.Award = award
	}
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	out.Attempt = s.view(st, sess, op)
	return out, nil
}

// LegalTargets lists the destination squares reachable from one square in the
// active attempt's position, for client-side move highlighting.
func (s *Service) LegalTargets(ctx context.Context, traineeID, from string) ([]string, error) {
	hash := HashTrainee(traineeID)
	l := s.lockFor(hash)
	l.Lock()
	defer l.Unlock()

	_, sess, _, err := s.resume(ctx, hash)
	if err != nil {
		return nil, err
	}
	return sess.Board().LegalTargetsFrom(from), nil
}

// Hint toggles the expected-move hint for the current position.
func (s *Service) Hint(ctx context.Context, traineeID string) (*drill.HintSquares, error) {
	hash := HashTrainee(traineeID)
	l := s.lockFor(hash)
	l.Lock()
	defer l.Unlock()

	st, sess, _, err := s.resume(ctx, hash)
	if err != nil {
		return nil, err
	}
	h := sess.Hint()
	saveHintState(st, sess)
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return h, nil
}

// Reset restarts the current attempt from the beginning under a new attempt
// identity, so a completion recorded before the reset stays recorded.
func (s *Service) Reset(ctx context.Context, traineeID string) (*AttemptView, error) {
	hash := HashTrainee(traineeID)
	l := s.lockFor(hash)
	l.Lock()
	defer l.Unlock()

	st, sess, op, err := s.resume(ctx, hash)
	if err != nil {
		return nil, err
	}
	sess.Reset()
	st.AttemptUUID = uuid.NewString()
	st.MovesUCI = sess.Board().AppliedUCI()
	st.Errors = 0
	st.StartedAt = sess.StartedAt()
	st.Completed = false
	saveHintState(st, sess)
	if err := s.store.Save(ctx, st); err != nil {
		return nil, err
	}
	view := s.view(st, sess, op)
	return &view, nil
}

// Abandon discards the active attempt without recording anything.
func (s *Service) Abandon(ctx context.Context, traineeID string) error {
	hash := HashTrainee(traineeID)
	l := s.lockFor(hash)
	l.Lock()
	defer l.Unlock()
	return s.store.Delete(ctx, hash)
}

// NextVariation moves on to another line of the same opening, chosen by the
// configured selection policy, carrying progress statuses forward.
func (s *Service) NextVariation(ctx context.Context, traineeID string) (*AttemptView, error) {
	hash := HashTrainee(traineeID)
	l := s.lockFor(hash)
	l.Lock()
	defer l.Unlock()

	st, _, op, err := s.resume(ctx, hash)
	if err != nil {
		return nil, err
	}

	tracker := s.restoreTracker(st, op)
	key, ok := tracker.SelectNext()
	if !ok {
		return nil, ErrNoVariations
	}
	_, variationName, _ := content.SplitKey(key)

	carry := &attemptState{
		SelectionMode: st.SelectionMode,
		Statuses:      snapshotStatuses(tracker),
		Cursor:        tracker.Cursor(),
	}
	return s.startLine(ctx, hash, op.ID, variationName, carry)
}

// Attempt returns the active attempt's state.
func (s *Service) Attempt(ctx context.Context, traineeID string) (*AttemptView, error) {
	hash := HashTrainee(traineeID)
	l := s.lockFor(hash)
	l.Lock()
	defer l.Unlock()

	st, sess, op, err := s.resume(ctx, hash)
	if err != nil {
		return nil, err
	}
	view := s.view(st, sess, op)
	return &view, nil
}

// Progress reports per-variation statuses for the active attempt's opening.
func (s *Service) Progress(ctx context.Context, traineeID string) (map[string]drill.VariationStatus, error) {
	hash := HashTrainee(traineeID)
	l := s.lockFor(hash)
	l.Lock()
	defer l.Unlock()

	st, _, op, err := s.resume(ctx, hash)
	if err != nil {
		return nil, err
	}
	return s.restoreTracker(st, op).Statuses(), nil
}

// Profile returns the trainee's lifetime stats with recent completions.
func (s *Service) Profile(ctx context.Context, traineeID string) (*domain.TrainerProfile, []*domain.DrillCompletion, error) {
	hash := HashTrainee(traineeID)
	profile, err := s.repo.GetProfile(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	if profile == nil {
		return nil, nil, ErrProfileNotFound
	}
	recent, err := s.repo.RecentCompletions(ctx, hash, 5)
	if err != nil {
		return nil, nil, err
	}
	return profile, recent, nil
}

// Leaderboard lists the top profiles by lifetime XP.
func (s *Service) Leaderboard(ctx context.Context) ([]*domain.TrainerProfile, error) {
	return s.repo.TopProfiles(ctx, s.opts.LeaderboardLimit)
}

// resume rebuilds the live session for the trainee's stored attempt by
// replaying its move list onto a fresh board.
func (s *Service) resume(ctx context.Context, traineeHash string) (*attemptState, *drill.Session, content.Opening, error) {
	st, err := s.store.Load(ctx, traineeHash)
	if err != nil {
		return nil, nil, content.Opening{}, err
	}
	op, line, err := s.catalog.Line(content.VariationKey(st.OpeningID, st.VariationName))
	if err != nil {
		return nil, nil, content.Opening{}, err
	}
	color, err := drill.ParseColor(st.Color)
	if err != nil {
		return nil, nil, content.Opening{}, err
	}

	board := drill.NewBoard()
	for _, mv := range st.MovesUCI {
		if _, err := board.ApplyUCI(mv); err != nil {
			return nil, nil, content.Opening{}, fmt.Errorf("replay %q: %w", mv, err)
		}
	}
	state := drill.SessionState{
		Errors:      st.Errors,
		HintsUsed:   st.HintsUsed,
		LastHintPly: st.LastHintPly,
		StartedAt:   st.StartedAt,
		Completed:   st.Completed,
	}
	if st.HintFrom != "" {
		state.ActiveHint = &drill.HintSquares{From: st.HintFrom, To: st.HintTo}
	}
	sess := drill.RestoreSession(line.Sequence, color, board, state, s.logger)
	return st, sess, op, nil
}

// saveHintState mirrors the session's hint toggle into the stored attempt.
func saveHintState(st *attemptState, sess *drill.Session) {
	st.HintsUsed = sess.HintsUsed()
	st.LastHintPly = sess.LastHintPly()
	st.HintFrom, st.HintTo = "", ""
	if h := sess.ActiveHint(); h != nil {
		st.HintFrom, st.HintTo = h.From, h.To
	}
}

func (s *Service) restoreTracker(st *attemptState, op content.Opening) *drill.Tracker {
	lines, err := s.catalog.Lines(op.ID)
	if err != nil {
		return drill.NewTracker(nil, s.opts.SelectionMode)
	}
	keys := make([]string, 0, len(lines))
	for _, ln := range lines {
		keys = append(keys, ln.Key)
	}
	snapshot := make(map[string]drill.VariationStatus, len(st.Statuses))
	for k, v := range st.Statuses {
		snapshot[k] = drill.VariationStatus(v)
	}
	mode := drill.SelectionMode(st.SelectionMode)
	if mode == "" {
		mode = s.opts.SelectionMode
	}
	var opts []drill.TrackerOption
	if s.opts.UpgradeOnly {
		opts = append(opts, drill.WithUpgradeOnly())
	}
	return drill.RestoreTracker(keys, snapshot, st.Cursor, mode, opts...)
}

// finalize scores a finished attempt, records it, and folds it into the
// trainee's profile and variation progress. A replayed finalize for the same
// attempt is absorbed by the duplicate guard. The award is returned alongside
// any persistence error, so the client keeps its provisional XP.
func (s *Service) finalize(ctx context.Context, st *attemptState, op content.Opening, sum drill.Summary) (*drill.XPBreakdown, error) {
	award := drill.CalculateXP(drill.ScoringInput{
		Difficulty: op.Difficulty,
		Errors:     sum.Errors,
		HintsUsed:  sum.HintsUsed,
		Elapsed:    sum.Elapsed,
	})
	now := time.Now()

	completion := &domain.DrillCompletion{
		AttemptUUID:   st.AttemptUUID,
		TraineeHash:   st.TraineeHash,
		OpeningID:     st.OpeningID,
		VariationName: st.VariationName,
		Difficulty:    string(op.Difficulty),
		Color:         st.Color,
		Errors:        sum.Errors,
		HintsUsed:     sum.HintsUsed,
		MovesPlayed:   sum.Moves,
		XPAwarded:     award.Total,
		Success:       sum.Success,
		StartedAt:     st.StartedAt,
		CompletedAt:   now,
		Duration:      sum.Elapsed,
	}
	if _, err := s.repo.InsertCompletion(ctx, completion); err != nil {
		if errors.Is(err, ErrDuplicateCompletion) {
			s.logger.Warn("drill_completion_duplicate", zap.String("attempt", st.AttemptUUID))
			return &award, nil
		}
		return &award, err
	}

	profile, err := s.repo.GetProfile(ctx, st.TraineeHash)
	if err != nil {
		return &award, err
	}
	profile = applyCompletionToProfile(profile, st.TraineeHash, award.Total, sum.Success, now)
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return &award, err
	}

	tracker := s.restoreTracker(st, op)
	tracker.MarkResult(content.VariationKey(st.OpeningID, st.VariationName), sum.Success)
	st.Statuses = snapshotStatuses(tracker)
	st.Cursor = tracker.Cursor()

	s.logger.Info("drill_completed",
		zap.String("opening", st.OpeningID),
		zap.String("variation", st.VariationName),
		zap.Int("errors", sum.Errors),
		zap.Int("hints", sum.HintsUsed),
		zap.Int("xp", award.Total),
		zap.Bool("success", sum.Success),
	)
	return &award, nil
}

// applyCompletionToProfile folds one completion into lifetime stats. The
// streak counts consecutive calendar days with at least one drill.
func applyCompletionToProfile(profile *domain.TrainerProfile, traineeHash string, xp int, success bool, completedAt time.Time) *domain.TrainerProfile {
	if profile == nil {
		profile = &domain.TrainerProfile{
			TraineeHash: traineeHash,
			CreatedAt:   completedAt,
		}
	}

	profile.TotalXP += xp
	profile.Level = drill.CalculateLevel(profile.TotalXP)
	profile.DrillsCompleted++
	if success {
		profile.PerfectDrills++
	}

	switch {
	case profile.LastDrilledAt.IsZero():
		profile.Streak = 1
	case sameDay(profile.LastDrilledAt, completedAt):
		// already counted today
	case sameDay(profile.LastDrilledAt.AddDate(0, 0, 1), completedAt):
		profile.Streak++
	default:
		profile.Streak = 1
	}
	if profile.Streak > profile.BestStreak {
		profile.BestStreak = profile.Streak
	}

	profile.LastDrilledAt = completedAt
	profile.UpdatedAt = completedAt
	return profile
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func snapshotStatuses(t *drill.Tracker) map[string]string {
	out := make(map[string]string)
	for k, v := range t.Statuses() {
		out[k] = string(v)
	}
	return out
}

func (s *Service) view(st *attemptState, sess *drill.Session, op content.Opening) AttemptView {
	return AttemptView{
		AttemptUUID:   st.AttemptUUID,
		OpeningID:     op.ID,
		OpeningName:   op.Name,
		VariationName: st.VariationName,
		Difficulty:    op.Difficulty,
		Color:         sess.PlayerColor(),
		FEN:           sess.Board().FEN(),
		SANHistory:    sess.Board().SANHistory(),
		Board:         sess.Board().Snapshot(),
		Check:         sess.Board().InCheck(),
		Errors:        sess.Errors(),
		HintsUsed:     sess.HintsUsed(),
		Completed:     sess.Completed(),
	}
}
