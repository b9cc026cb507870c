package model

// PlayerSession is the durable record of one participant in a room. It is
// keyed by PlayerID, which survives reconnects; ConnectionID is the current
// transport handle and changes every time the player reconnects.
type PlayerSession struct {
	PlayerID     string `json:"playerId"`
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"name"`
	Color        string `json:"color,omitempty"`
	Avatar       string `json:"avatar,omitempty"`

	Score      int  `json:"score"`
	LastPoints int  `json:"lastPoints"`
	Streak     int  `json:"streak"`
	Connected  bool `json:"connected"`

	HasAnsweredCurrent bool `json:"hasAnswered"`
	LastAnswerCorrect  bool `json:"lastAnswerCorrect"`

	// Pending submission for the current question, captured when the
	// answer is accepted and consumed at the result transition.
	AnswerIndex   int     `json:"-"`
	AnswerElapsed float64 `json:"-"` // seconds since answering began
}

// ResetForNewGame clears all per-game progress, keeping identity fields.
func (p *PlayerSession) ResetForNewGame() {
	p.Score = 0
	p.LastPoints = 0
	p.Streak = 0
	p.HasAnsweredCurrent = false
	p.LastAnswerCorrect = false
	p.AnswerIndex = -1
	p.AnswerElapsed = 0
}

// ResetForQuestion clears per-question flags at the start of a reading phase.
func (p *PlayerSession) ResetForQuestion() {
	p.HasAnsweredCurrent = false
	p.LastAnswerCorrect = false
	p.AnswerIndex = -1
	p.AnswerElapsed = 0
}
