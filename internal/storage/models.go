package storage

import (
	"errors"
	"time"

	"github.com/AkaneMaktyo/ai-interview-backend/internal/interview"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// WrongScoreThreshold is the score below which an answer marks its
// question as wrong for the user.
const WrongScoreThreshold = 7

// AnswerRecord is one evaluated attempt at a question.
type AnswerRecord struct {
	ID           int64              `json:"id"`
	UserID       int64              `json:"userId"`
	QuestionID   int64              `json:"questionId"`
	Answer       string             `json:"answer"`
	Score        int                `json:"score"`
	Evaluation   interview.Feedback `json:"evaluation"`
	AttemptCount int                `json:"attemptCount"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// WrongQuestion tracks a question the user keeps scoring low on.
type WrongQuestion struct {
	UserID      int64     `json:"userId"`
	QuestionID  int64     `json:"questionId"`
	ErrorCount  int       `json:"errorCount"`
	LastScore   int       `json:"lastScore"`
	LastWrongAt time.Time `json:"lastWrongAt"`
}

// RecordFilter narrows ListAnswerRecords. Zero fields match everything.
type RecordFilter struct {
	UserID     int64
	QuestionID int64
	Limit      int
}
