package grading

// Status classifies a graded question.
type Status string

const (
	StatusCorrect    Status = "correct"
	StatusIncorrect  Status = "incorrect"
	StatusUnanswered Status = "unanswered"
)

// AnswerRecord is the graded state of one question.
// StudentAnswer, IsCorrect and PointsEarned only change together through ResultSet.Override.
type AnswerRecord struct {
	QuestionNumber int     `json:"question_number"`
	StudentAnswer  Option  `json:"student_answer"`
	CorrectAnswer  Option  `json:"correct_answer"`
	IsCorrect      bool    `json:"is_correct"`
	PointsEarned   float64 `json:"points_earned"`
	MaxPoints      float64 `json:"max_points"`
	Topic          string  `json:"topic"`
}

// Status returns the partition the record falls into.
func (r AnswerRecord) Status() Status {
	switch {
	case !r.StudentAnswer.Answered():
		return StatusUnanswered
	case r.IsCorrect:
		return StatusCorrect
	default:
		return StatusIncorrect
	}
}

// Score applies the binary scoring rule: full points for an answered, matching mark,
// nothing otherwise.
func Score(selection, correct Option, maxPoints float64) (bool, float64) {
	if selection.Answered() && selection == correct {
		return true, maxPoints
	}
	return false, 0
}

// rescore returns r with the mutable fields recomputed for selection.
func (r AnswerRecord) rescore(selection Option) AnswerRecord {
	r.StudentAnswer = selection
	r.IsCorrect, r.PointsEarned = Score(selection, r.CorrectAnswer, r.MaxPoints)
	return r
}
