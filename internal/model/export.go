package model

import (
	"time"

	"github.com/pavelanni/omrgrader/internal/grading"
)

// SessionExport is the top-level JSON structure for a review session export.
type SessionExport struct {
	Session       ReviewSession          `json:"session"`
	GradeScale    string                 `json:"grade_scale"`
	TargetPercent float64                `json:"target_percent"`
	Summary       grading.Summary        `json:"summary"`
	Answers       []grading.AnswerRecord `json:"answers"`
	Overrides     []OverrideEvent        `json:"overrides"`
	ExportedAt    time.Time              `json:"exported_at"`
}
