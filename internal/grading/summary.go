package grading

import "fmt"

// Verdict is the headline judgement shown next to the score.
type Verdict string

const (
	VerdictExcellent        Verdict = "excellent"
	VerdictNeedsImprovement Verdict = "needs_improvement"
)

// DefaultTargetPercent is the score at which a result counts as excellent.
const DefaultTargetPercent = 80

// Tally holds the partition counts and points of a group of records.
type Tally struct {
	TotalQuestions  int     `json:"total_questions"`
	Correct         int     `json:"correct"`
	Incorrect       int     `json:"incorrect"`
	Unanswered      int     `json:"unanswered"`
	PointsEarned    float64 `json:"points_earned"`
	PointsPossible  float64 `json:"points_possible"`
	ScorePercentage float64 `json:"score_percentage"`
}

func (t *Tally) add(r AnswerRecord) {
	t.TotalQuestions++
	switch r.Status() {
	case StatusCorrect:
		t.Correct++
	case StatusIncorrect:
		t.Incorrect++
	case StatusUnanswered:
		t.Unanswered++
	}
	t.PointsEarned += r.PointsEarned
	t.PointsPossible += r.MaxPoints
}

// finish computes the percentage. Zero possible points score 0 rather than failing;
// callers that must tell "ungraded" from "scored zero" check PointsPossible.
func (t *Tally) finish() {
	t.ScorePercentage = 0
	if t.PointsPossible > 0 {
		t.ScorePercentage = t.PointsEarned / t.PointsPossible * 100
	}
}

// Count returns the number of records with status s.
func (t Tally) Count(s Status) int {
	switch s {
	case StatusCorrect:
		return t.Correct
	case StatusIncorrect:
		return t.Incorrect
	case StatusUnanswered:
		return t.Unanswered
	}
	return 0
}

// Share returns the percentage of questions with status s, 0 for an empty tally.
func (t Tally) Share(s Status) float64 {
	if t.TotalQuestions == 0 {
		return 0
	}
	return float64(t.Count(s)) / float64(t.TotalQuestions) * 100
}

// TopicSummary is the tally of the records sharing one topic.
type TopicSummary struct {
	Topic string `json:"topic"`
	Tally
	Grade string `json:"grade"`
}

// Summary is derived from a ResultSet on demand and never stored.
type Summary struct {
	Tally
	Grade   string         `json:"grade"`
	Verdict Verdict        `json:"verdict"`
	Topics  []TopicSummary `json:"topics"`
}

// Aggregator computes summaries under a grading policy.
type Aggregator struct {
	scale  GradeScale
	target float64
}

// NewAggregator returns an Aggregator that grades with scale and calls a result excellent
// at or above targetPercent.
func NewAggregator(scale GradeScale, targetPercent float64) (*Aggregator, error) {
	if targetPercent < 0 || targetPercent > 100 {
		return nil, fmt.Errorf("target percent %v outside 0..100", targetPercent)
	}
	return &Aggregator{scale: scale, target: targetPercent}, nil
}

// Scale returns the grade scale in use.
func (a *Aggregator) Scale() GradeScale {
	return a.scale
}

// Target returns the verdict threshold.
func (a *Aggregator) Target() float64 {
	return a.target
}

// Summarize summarizes the entire result set.
func (a *Aggregator) Summarize(rs *ResultSet) Summary {
	return a.SummarizeRecords(rs.records)
}

// SummarizeRecords summarizes an explicit selection of records, such as a filtered view.
func (a *Aggregator) SummarizeRecords(records []AnswerRecord) Summary {
	var total Tally
	topics := []TopicSummary{}
	byTopic := make(map[string]int)

	for _, r := range records {
		total.add(r)
		i, ok := byTopic[r.Topic]
		if !ok {
			i = len(topics)
			byTopic[r.Topic] = i
			topics = append(topics, TopicSummary{Topic: r.Topic})
		}
		topics[i].add(r)
	}

	total.finish()
	for i := range topics {
		topics[i].finish()
		topics[i].Grade = a.scale.Grade(topics[i].ScorePercentage)
	}

	verdict := VerdictNeedsImprovement
	if total.ScorePercentage >= a.target {
		verdict = VerdictExcellent
	}

	return Summary{
		Tally:   total,
		Grade:   a.scale.Grade(total.ScorePercentage),
		Verdict: verdict,
		Topics:  topics,
	}
}
