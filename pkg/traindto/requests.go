package traindto

// StartRequest begins a drill. An empty variation selects the main line.
type StartRequest struct {
	TraineeID string `json:"trainee_id"`
	OpeningID string `json:"opening_id"`
	Variation string `json:"variation,omitempty"`
}

// MoveRequest submits a from/to move. Promotion defaults to queen.
type MoveRequest struct {
	TraineeID string `json:"trainee_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// TraineeRequest addresses commands that only need an identity.
type TraineeRequest struct {
	TraineeID string `json:"trainee_id"`
}
