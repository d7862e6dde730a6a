package traindto

import "time"

// Square is one cell of the board grid; both fields are empty for a vacant
// square.
type Square struct {
	Kind  string `json:"kind,omitempty"`
	Color string `json:"color,omitempty"`
}

// Attempt is the wire form of an in-flight drill.
type Attempt struct {
	AttemptUUID   string   `json:"attempt_uuid"`
	OpeningID     string   `json:"opening_id"`
	OpeningName   string   `json:"opening_name"`
	VariationName string   `json:"variation_name"`
	Difficulty    string   `json:"difficulty"`
	Color         string   `json:"color"`
	FEN           string   `json:"fen"`
	SANHistory    []string `json:"san_history"`
	// Board is indexed [rank][file], rank 0 being rank 1.
	Board     [8][8]Square `json:"board"`
	Check     bool         `json:"check"`
	Errors    int          `json:"errors"`
	HintsUsed int          `json:"hints_used"`
	Completed bool         `json:"completed"`
}

// MoveResult reports one move command.
type MoveResult struct {
	Attempt  Attempt      `json:"attempt"`
	Accepted bool         `json:"accepted"`
	SAN      string       `json:"san,omitempty"`
	UCI      string       `json:"uci,omitempty"`
	Reply    string       `json:"reply,omitempty"`
	Award    *AwardDetail `json:"award,omitempty"`
}

// AwardDetail itemizes the XP granted for a finished drill.
type AwardDetail struct {
	Base         int `json:"base"`
	ErrorPenalty int `json:"error_penalty"`
	HintPenalty  int `json:"hint_penalty"`
	SpeedBonus   int `json:"speed_bonus"`
	Total        int `json:"total"`
}

// Hint points at the expected move, or is absent when toggled off.
type Hint struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Opening describes one study set in listings.
type Opening struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Color      string   `json:"color"`
	Difficulty string   `json:"difficulty"`
	Variations []string `json:"variations"`
}

// Profile is the wire form of lifetime trainee stats.
type Profile struct {
	TotalXP         int       `json:"total_xp"`
	Level           int       `json:"level"`
	DrillsCompleted int       `json:"drills_completed"`
	PerfectDrills   int       `json:"perfect_drills"`
	Streak          int       `json:"streak"`
	BestStreak      int       `json:"best_streak"`
	LastDrilledAt   time.Time `json:"last_drilled_at"`
}

// Completion summarizes one recorded drill for history views.
type Completion struct {
	OpeningID     string    `json:"opening_id"`
	VariationName string    `json:"variation_name"`
	Errors        int       `json:"errors"`
	HintsUsed     int       `json:"hints_used"`
	XPAwarded     int       `json:"xp_awarded"`
	Success       bool      `json:"success"`
	CompletedAt   time.Time `json:"completed_at"`
	DurationMS    int64     `json:"duration_ms"`
}

// LeaderboardEntry ranks one trainee.
type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	TraineeHash     string `json:"trainee_hash"`
	TotalXP         int    `json:"total_xp"`
	Level           int    `json:"level"`
	DrillsCompleted int    `json:"drills_completed"`
}
