package intake

import (
	"maps"
	"time"
)

// UserID identifies the owner of a session. Telegram users are keyed by their
// numeric id, web chat users carry a "web:" prefix.
type UserID string

// Answers maps a stage's answer field to the raw text the user sent.
type Answers map[string]string

// Session captures one user's progress through the intake questionnaire.
type Session struct {
	UserID    UserID    `json:"userId"`
	Stage     Stage     `json:"stage"`
	Answers   Answers   `json:"answers"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSession returns a session at StageIdle with no answers.
func NewSession(userID UserID, now time.Time) Session {
	return Session{
		UserID:    userID,
		Stage:     StageIdle,
		Answers:   make(Answers, len(answerStages)),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers never share the answers map.
func (s Session) Clone() Session {
	out := s
	out.Answers = maps.Clone(s.Answers)
	if out.Answers == nil {
		out.Answers = make(Answers)
	}
	return out
}

// Record stores the answer for the current stage and moves to the next one.
// It reports false when the current stage does not collect an answer.
func (s *Session) Record(text string) bool {
	field := s.Stage.Field()
	if field == "" {
		return false
	}
	if s.Answers == nil {
		s.Answers = make(Answers)
	}
	s.Answers[field] = text
	s.Stage = s.Stage.Next()
	return true
}

// Completed reports whether every questionnaire field has been answered.
func (s Session) Completed() bool {
	for _, stage := range answerStages {
		if _, ok := s.Answers[stage.Field()]; !ok {
			return false
		}
	}
	return true
}
