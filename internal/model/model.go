package model

import (
	"time"

	"github.com/pavelanni/omrgrader/internal/grading"
)

// SessionStatus represents the status of a review session.
type SessionStatus string

const (
	// StatusInReview accepts manual overrides.
	StatusInReview SessionStatus = "in_review"
	// StatusFinalized is read-only.
	StatusFinalized SessionStatus = "finalized"
)

// ExamInfo describes the exam an answer sheet belongs to.
type ExamInfo struct {
	ExamID     string `json:"exam_id" yaml:"exam_id" validate:"max=100"`
	Subject    string `json:"subject" yaml:"subject" validate:"max=200"`
	Date       string `json:"date" yaml:"date" validate:"omitempty,datetime=2006-01-02"`
	Difficulty string `json:"difficulty" yaml:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	TimeSpent  string `json:"time_spent" yaml:"time_spent" validate:"max=50"`
	Candidate  string `json:"candidate" yaml:"candidate" validate:"max=200"`
}

// ReviewSession is one exam attempt under review.
type ReviewSession struct {
	ID          string        `json:"id"`
	Info        ExamInfo      `json:"exam"`
	Alphabet    []string      `json:"alphabet"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	FinalizedAt *time.Time    `json:"finalized_at,omitempty"`
}

// OverrideEvent is one audited manual correction of a candidate's mark.
type OverrideEvent struct {
	ID             int64          `json:"id"`
	SessionID      string         `json:"session_id"`
	QuestionNumber int            `json:"question_number"`
	Previous       grading.Option `json:"previous"`
	Selection      grading.Option `json:"selection"`
	Reviewer       string         `json:"reviewer,omitempty"`
	Comment        string         `json:"comment,omitempty"`
	At             time.Time      `json:"at"`
}

// OverrideRequest asks for a question's mark to be replaced.
type OverrideRequest struct {
	QuestionNumber int
	Selection      grading.Option
	Reviewer       string
	Comment        string
}

// ReviewConfig holds runtime grading parameters set via CLI flags.
type ReviewConfig struct {
	Alphabet      grading.Alphabet
	GradeScale    grading.GradeScale
	TargetPercent float64
	Lang          string
}

// SessionView combines a session with its current summary for display.
type SessionView struct {
	Session ReviewSession   `json:"session"`
	Summary grading.Summary `json:"summary"`
}
