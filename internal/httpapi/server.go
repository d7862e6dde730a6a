package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/kapu/opening-trainer/internal/content"
	"github.com/kapu/opening-trainer/internal/service/training"
	"github.com/kapu/opening-trainer/pkg/traindto"
)

const requestTimeout = 10 * time.Second

// Server exposes the training service as a JSON API over fasthttp.
type Server struct {
	svc    *training.Service
	logger *zap.Logger
	srv    *fasthttp.Server
}

func NewServer(svc *training.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, logger: logger}
	s.srv = &fasthttp.Server{
		Handler:            s.route,
		Name:               "opening-trainer",
		ReadTimeout:        requestTimeout,
		WriteTimeout:       requestTimeout,
		MaxRequestBodySize: 1 << 16,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("http_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/healthz" && method == fasthttp.MethodGet:
		s.handleHealth(ctx)
	case path == "/openings" && method == fasthttp.MethodGet:
		s.handleOpenings(ctx)
	case path == "/profile" && method == fasthttp.MethodGet:
		s.handleProfile(ctx)
	case path == "/leaderboard" && method == fasthttp.MethodGet:
		s.handleLeaderboard(ctx)
	case path == "/drill/start" && method == fasthttp.MethodPost:
		s.handleStart(ctx)
	case path == "/drill/move" && method == fasthttp.MethodPost:
		s.handleMove(ctx)
	case path == "/drill/hint" && method == fasthttp.MethodPost:
		s.handleHint(ctx)
	case path == "/drill/reset" && method == fasthttp.MethodPost:
		s.handleReset(ctx)
	case path == "/drill/next" && method == fasthttp.MethodPost:
		s.handleNext(ctx)
	case path == "/drill/abandon" && method == fasthttp.MethodPost:
		s.handleAbandon(ctx)
	case path == "/drill" && method == fasthttp.MethodGet:
		s.handleAttempt(ctx)
	case path == "/drill/targets" && method == fasthttp.MethodGet:
		s.handleTargets(ctx)
	case path == "/drill/progress" && method == fasthttp.MethodGet:
		s.handleProgress(ctx)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not_found", "unknown route")
	}
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOpenings(ctx *fasthttp.RequestCtx) {
	openings := s.svc.Openings()
	out := make([]traindto.Opening, 0, len(openings))
	for _, op := range openings {
		names := make([]string, 0, 1+len(op.Variations))
		names = append(names, content.MainLineName)
		for _, v := range op.Variations {
			names = append(names, v.Name)
		}
		out = append(out, traindto.Opening{
			ID:         op.ID,
			Name:       op.Name,
			Color:      op.Color,
			Difficulty: string(op.Difficulty),
			Variations: names,
		})
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) handleStart(ctx *fasthttp.RequestCtx) {
	var req traindto.StartRequest
	if !decodeBody(ctx, &req) {
		return
	}
	if req.TraineeID == "" || req.OpeningID == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "trainee_id and opening_id are required")
		return
	}
	rctx, cancel := requestContext(ctx)
	defer cancel()
	view, err := s.svc.Start(rctx, req.TraineeID, req.OpeningID, req.Variation)
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, attemptDTO(view))
}

func (s *Server) handleMove(ctx *fasthttp.RequestCtx) {
	var req traindto.MoveRequest
	if !decodeBody(ctx, &req) {
		return
	}
	rctx, cancel := requestContext(ctx)
	defer cancel()
	out, err := s.svc.Move(rctx, req.TraineeID, req.From, req.To, req.Promotion)
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, moveDTO(out))
}

func (s *Server) handleHint(ctx *fasthttp.RequestCtx) {
	var req traindto.TraineeRequest
	if !decodeBody(ctx, &req) {
		return
	}
	rctx, cancel := requestContext(ctx)
	defer cancel()
	h, err := s.svc.Hint(rctx, req.TraineeID)
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	if h == nil {
		// Hint toggled off or unavailable.
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{"hint": nil})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"hint": traindto.Hint{From: h.From, To: h.To}})
}

func (s *Server) handleReset(ctx *fasthttp.RequestCtx) {
	var req traindto.TraineeRequest
	if !decodeBody(ctx, &req) {
		return
	}
	rctx, cancel := requestContext(ctx)
	defer cancel()
	view, err := s.svc.Reset(rctx, req.TraineeID)
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, attemptDTO(view))
}

func (s *Server) handleNext(ctx *fasthttp.RequestCtx) {
	var req traindto.TraineeRequest
	if !decodeBody(ctx, &req) {
		return
	}
	rctx, cancel := requestContext(ctx)
	defer cancel()
	view, err := s.svc.NextVariation(rctx, req.TraineeID)
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, attemptDTO(view))
}

func (s *Server) handleAbandon(ctx *fasthttp.RequestCtx) {
	var req traindto.TraineeRequest
	if !decodeBody(ctx, &req) {
		return
	}
	rctx, cancel := requestContext(ctx)
	defer cancel()
	if err := s.svc.Abandon(rctx, req.TraineeID); err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) handleAttempt(ctx *fasthttp.RequestCtx) {
	traineeID := string(ctx.QueryArgs().Peek("trainee_id"))
	if traineeID == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "trainee_id is required")
		return
	}
	rctx, cancel := requestContext(ctx)
	defer cancel()
	view, err := s.svc.Attempt(rctx, traineeID)
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, attemptDTO(view))
}

func (s *Server) handleTargets(ctx *fasthttp.RequestCtx) {
	traineeID := string(ctx.QueryArgs().Peek("trainee_id"))
	from := string(ctx.QueryArgs().Peek("from"))
	if traineeID == "" || from == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "trainee_id and from are required")
		return
	}
	rctx, cancel := requestContext(ctx)
	defer cancel()
	targets, err := s.svc.LegalTargets(rctx, traineeID, from)
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	if targets == nil {
		targets = []string{}
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"from": from, "targets": targets})
}

func (s *Server) handleProgress(ctx *fasthttp.RequestCtx) {
	traineeID := string(ctx.QueryArgs().Peek("trainee_id"))
	if traineeID == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "trainee_id is required")
		return
	}
	rctx, cancel := requestContext(ctx)
	defer cancel()
	progress, err := s.svc.Progress(rctx, traineeID)
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, progress)
}

func (s *Server) handleProfile(ctx *fasthttp.RequestCtx) {
	traineeID := string(ctx.QueryArgs().Peek("trainee_id"))
	if traineeID == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "trainee_id is required")
		return
	}
	rctx, cancel := requestContext(ctx)
	defer cancel()
	profile, recent, err := s.svc.Profile(rctx, traineeID)
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	out := struct {
		Profile traindto.Profile      `json:"profile"`
		Recent  []traindto.Completion `json:"recent"`
	}{
		Profile: traindto.Profile{
			TotalXP:         profile.TotalXP,
			Level:           profile.Level,
			DrillsCompleted: profile.DrillsCompleted,
			PerfectDrills:   profile.PerfectDrills,
			Streak:          profile.Streak,
			BestStreak:      profile.BestStreak,
			LastDrilledAt:   profile.LastDrilledAt,
		},
		Recent: make([]traindto.Completion, 0, len(recent)),
	}
	for _, c := range recent {
		out.Recent = append(out.Recent, traindto.Completion{
			OpeningID:     c.OpeningID,
			VariationName: c.VariationName,
			Errors:        c.Errors,
			HintsUsed:     c.HintsUsed,
			XPAwarded:     c.XPAwarded,
			Success:       c.Success,
			CompletedAt:   c.CompletedAt,
			DurationMS:    c.Duration.Milliseconds(),
		})
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) handleLeaderboard(ctx *fasthttp.RequestCtx) {
	rctx, cancel := requestContext(ctx)
	defer cancel()
	top, err := s.svc.Leaderboard(rctx)
	if err != nil {
		s.writeServiceError(ctx, err)
		return
	}
	out := make([]traindto.LeaderboardEntry, 0, len(top))
	for i, p := range top {
		out = append(out, traindto.LeaderboardEntry{
			Rank:            i + 1,
			TraineeHash:     p.TraineeHash,
			TotalXP:         p.TotalXP,
			Level:           p.Level,
			DrillsCompleted: p.DrillsCompleted,
		})
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) writeServiceError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, training.ErrNoActiveAttempt):
		writeError(ctx, fasthttp.StatusNotFound, "no_active_attempt", "no drill in progress")
	case errors.Is(err, training.ErrProfileNotFound):
		writeError(ctx, fasthttp.StatusNotFound, "profile_not_found", "no training history yet")
	case errors.Is(err, training.ErrAttemptInProgress):
		writeError(ctx, fasthttp.StatusConflict, "attempt_in_progress", "finish or abandon the current drill first")
	case errors.Is(err, training.ErrNoVariations):
		writeError(ctx, fasthttp.StatusNotFound, "no_variations", "opening has no variations to select")
	case errors.Is(err, content.ErrOpeningNotFound):
		writeError(ctx, fasthttp.StatusNotFound, "opening_not_found", err.Error())
	default:
		s.logger.Error("http_internal_error", zap.Error(err))
		writeError(ctx, fasthttp.StatusInternalServerError, "internal", "internal error")
	}
}

// RequestCtx satisfies context.Context, so handlers inherit connection
// cancellation on top of the per-request deadline.
func requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, requestTimeout)
}

func decodeBody(ctx *fasthttp.RequestCtx, v any) bool {
	if err := json.Unmarshal(ctx.PostBody(), v); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	writeJSON(ctx, status, struct {
		Error traindto.DomainError `json:"error"`
	}{Error: traindto.DomainError{Code: code, Message: message}})
}
