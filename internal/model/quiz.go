package model

import "time"

// Answer is one choice of a question.
type Answer struct {
	Text      string `json:"text" bson:"text"`
	IsCorrect bool   `json:"isCorrect" bson:"isCorrect"`
}

// Question is one timed question of a quiz. Exactly one answer is correct
// today, but nothing here assumes it.
type Question struct {
	ID           string   `json:"id" bson:"id"`
	Prompt       string   `json:"prompt" bson:"prompt"`
	TimeLimitSec int      `json:"timeLimitSec" bson:"timeLimitSec"`
	Answers      []Answer `json:"answers" bson:"answers"`
}

// CorrectIndex returns the index of the first correct answer, or -1.
func (q *Question) CorrectIndex() int {
	for i, a := range q.Answers {
		if a.IsCorrect {
			return i
		}
	}
	return -1
}

// AnswerTexts strips correctness flags for client-facing payloads.
func (q *Question) AnswerTexts() []string {
	texts := make([]string, len(q.Answers))
	for i, a := range q.Answers {
		texts[i] = a.Text
	}
	return texts
}

// Quiz is a persistent quiz definition created outside the engine. Rooms
// take an immutable snapshot of its questions at attach time.
type Quiz struct {
	ID        string     `json:"id" bson:"_id,omitempty"`
	Title     string     `json:"title" bson:"title"`
	Questions []Question `json:"questions" bson:"questions"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}
