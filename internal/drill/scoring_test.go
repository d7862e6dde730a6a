package drill

import (
	"testing"
	"time"
)

func TestCalculateXP(t *testing.T) {
	cases := []struct {
		name string
		in   ScoringInput
		want int
	}{
		{
			name: "beginner clean and fast",
			in:   ScoringInput{Difficulty: DifficultyBeginner, Errors: 0, HintsUsed: 0, Elapsed: 20 * time.Second},
			want: 120,
		},
		{
			name: "intermediate with mistakes",
			in:   ScoringInput{Difficulty: DifficultyIntermediate, Errors: 2, HintsUsed: 1, Elapsed: 90 * time.Second},
			want: 125,
		},
		{
			name: "floor kicks in",
			in:   ScoringInput{Difficulty: DifficultyBeginner, Errors: 20, HintsUsed: 20, Elapsed: 500 * time.Second},
			want: 10,
		},
		{
			name: "advanced base",
			in:   ScoringInput{Difficulty: DifficultyAdvanced, Errors: 0, HintsUsed: 0, Elapsed: 2 * time.Minute},
			want: 200,
		},
		{
			name: "quick bonus band",
			in:   ScoringInput{Difficulty: DifficultyBeginner, Errors: 0, HintsUsed: 0, Elapsed: 45 * time.Second},
			want: 110,
		},
		{
			name: "unknown difficulty scores as beginner",
			in:   ScoringInput{Difficulty: "legendary", Errors: 0, HintsUsed: 0, Elapsed: 2 * time.Minute},
			want: 100,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateXP(tc.in)
			if got.Total != tc.want {
				t.Errorf("Total = %d, want %d (breakdown %+v)", got.Total, tc.want, got)
			}
		})
	}
}

func TestCalculateXPBreakdownSums(t *testing.T) {
	got := CalculateXP(ScoringInput{Difficulty: DifficultyIntermediate, Errors: 2, HintsUsed: 1, Elapsed: 90 * time.Second})
	sum := got.Base - got.ErrorPenalty - got.HintPenalty + got.SpeedBonus
	if sum != got.Total {
		t.Errorf("breakdown does not sum: %+v", got)
	}
}

func TestCalculateXPMonotonicWithFloor(t *testing.T) {
	difficulties := []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}

	for _, d := range difficulties {
		prev := 1 << 30
		for errs := 0; errs <= 30; errs++ {
			got := CalculateXP(ScoringInput{Difficulty: d, Errors: errs, HintsUsed: 2, Elapsed: 45 * time.Second}).Total
			if got > prev {
				t.Fatalf("%s: total rose from %d to %d at %d errors", d, prev, got, errs)
			}
			if got < 10 {
				t.Fatalf("%s: total %d below floor at %d errors", d, got, errs)
			}
			prev = got
		}

		prev = 1 << 30
		for hints := 0; hints <= 50; hints++ {
			got := CalculateXP(ScoringInput{Difficulty: d, Errors: 1, HintsUsed: hints, Elapsed: 90 * time.Second}).Total
			if got > prev {
				t.Fatalf("%s: total rose from %d to %d at %d hints", d, prev, got, hints)
			}
			if got < 10 {
				t.Fatalf("%s: total %d below floor at %d hints", d, got, hints)
			}
			prev = got
		}
	}
}

func TestCalculateLevel(t *testing.T) {
	cases := []struct {
		xp   int
		want int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{900, 4},
		{-50, 1},
	}
	for _, tc := range cases {
		if got := CalculateLevel(tc.xp); got != tc.want {
			t.Errorf("CalculateLevel(%d) = %d, want %d", tc.xp, got, tc.want)
		}
	}
}
