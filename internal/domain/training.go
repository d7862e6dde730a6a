package domain

import "time"

type DrillCompletion struct {
	ID            int64
	AttemptUUID   string
	TraineeHash   string
	OpeningID     string
	VariationName string
	Difficulty    string
	Color         string
	Errors        int
	HintsUsed     int
	MovesPlayed   int
	XPAwarded     int
	Success       bool
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
}

type TrainerProfile struct {
	TraineeHash     string
	TotalXP         int
	Level           int
	DrillsCompleted int
	PerfectDrills   int
	Streak          int
	BestStreak      int
	LastDrilledAt   time.Time
	UpdatedAt       time.Time
	CreatedAt       time.Time
}
