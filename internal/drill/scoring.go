package drill

import (
	"math"
	"time"
)

// Difficulty buckets map to base XP awards.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

const (
	baseXPBeginner     = 100
	baseXPIntermediate = 150
	baseXPAdvanced     = 200

	errorPenaltyXP = 10
	hintPenaltyXP  = 5

	fastBonusXP  = 20
	quickBonusXP = 10

	fastThreshold  = 30 * time.Second
	quickThreshold = 60 * time.Second

	minXPAward = 10
)

// ScoringInput carries everything the award depends on.
type ScoringInput struct {
	Difficulty Difficulty
	Errors     int
	HintsUsed  int
	Elapsed    time.Duration
}

// XPBreakdown itemizes an award so callers can show the trainee where the
// points came from. Total is already floored.
type XPBreakdown struct {
	Base         int
	ErrorPenalty int
	HintPenalty  int
	SpeedBonus   int
	Total        int
}

// CalculateXP computes the award for one completed attempt. Unknown
// difficulties score as beginner.
func CalculateXP(in ScoringInput) XPBreakdown {
	b := XPBreakdown{Base: baseXPBeginner}
	switch in.Difficulty {
	case DifficultyIntermediate:
		b.Base = baseXPIntermediate
	case DifficultyAdvanced:
		b.Base = baseXPAdvanced
	}
	b.ErrorPenalty = in.Errors * errorPenaltyXP
	b.HintPenalty = in.HintsUsed * hintPenaltyXP
	switch {
	case in.Elapsed < fastThreshold:
		b.SpeedBonus = fastBonusXP
	case in.Elapsed < quickThreshold:
		b.SpeedBonus = quickBonusXP
	}
	b.Total = b.Base - b.ErrorPenalty - b.HintPenalty + b.SpeedBonus
	if b.Total < minXPAward {
		b.Total = minXPAward
	}
	return b
}

// CalculateLevel derives a level from lifetime XP. Level 1 covers 0-99 XP,
// level 2 starts at 100, level 3 at 400, and so on quadratically.
func CalculateLevel(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return int(math.Sqrt(float64(totalXP)/100)) + 1
}
