package httpapi

import (
	"github.com/kapu/opening-trainer/internal/service/training"
	"github.com/kapu/opening-trainer/pkg/traindto"
)

func attemptDTO(v *training.AttemptView) traindto.Attempt {
	out := traindto.Attempt{
		AttemptUUID:   v.AttemptUUID,
		OpeningID:     v.OpeningID,
		OpeningName:   v.OpeningName,
		VariationName: v.VariationName,
		Difficulty:    string(v.Difficulty),
		Color:         string(v.Color),
		FEN:           v.FEN,
		SANHistory:    v.SANHistory,
		Check:         v.Check,
		Errors:        v.Errors,
		HintsUsed:     v.HintsUsed,
		Completed:     v.Completed,
	}
	for rank := range v.Board {
		for file, p := range v.Board[rank] {
			out.Board[rank][file] = traindto.Square{Kind: p.Kind, Color: string(p.Color)}
		}
	}
	return out
}

func moveDTO(out *training.MoveOutcome) traindto.MoveResult {
	res := traindto.MoveResult{
		Attempt:  attemptDTO(&out.Attempt),
		Accepted: out.Accepted,
		SAN:      out.SAN,
		UCI:      out.UCI,
		Reply:    out.Reply,
	}
	if out.Award != nil {
		res.Award = &traindto.AwardDetail{
			Base:         out.Award.Base,
			ErrorPenalty: out.Award.ErrorPenalty,
			HintPenalty:  out.Award.HintPenalty,
			SpeedBonus:   out.Award.SpeedBonus,
			Total:        out.Award.Total,
		}
	}
	return res
}
