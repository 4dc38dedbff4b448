package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(DefaultGradeScale, DefaultTargetPercent)
	require.NoError(t, err)
	return agg
}

func TestSummarizeExample(t *testing.T) {
	rs := newExampleSet(t)
	agg := newTestAggregator(t)

	s := agg.Summarize(rs)
	assert.Equal(t, 3, s.TotalQuestions)
	assert.Equal(t, 1, s.Correct)
	assert.Equal(t, 1, s.Incorrect)
	assert.Equal(t, 1, s.Unanswered)
	assert.Equal(t, 2.0, s.PointsEarned)
	assert.Equal(t, 6.0, s.PointsPossible)
	assert.InDelta(t, 33.33, s.ScorePercentage, 0.01)
	assert.Equal(t, "F", s.Grade)
	assert.Equal(t, VerdictNeedsImprovement, s.Verdict)
}

func TestSummarizeAfterOverride(t *testing.T) {
	rs := newExampleSet(t)
	scale, err := NewGradeScale(Band{MinPercent: 60, Label: "Pass"}, Band{MinPercent: 0, Label: "Fail"})
	require.NoError(t, err)
	agg, err := NewAggregator(scale, DefaultTargetPercent)
	require.NoError(t, err)

	assert.Equal(t, "Fail", agg.Summarize(rs).Grade)

	_, err = rs.Override(3, "C")
	require.NoError(t, err)

	s := agg.Summarize(rs)
	assert.Equal(t, 2, s.Correct)
	assert.Equal(t, 1, s.Incorrect)
	assert.Equal(t, 0, s.Unanswered)
	assert.Equal(t, 4.0, s.PointsEarned)
	assert.InDelta(t, 66.67, s.ScorePercentage, 0.01)
	assert.Equal(t, "Pass", s.Grade)
}

func TestSummarizePartitionsSumToTotal(t *testing.T) {
	rs := newExampleSet(t)
	agg := newTestAggregator(t)

	check := func() {
		s := agg.Summarize(rs)
		assert.Equal(t, s.TotalQuestions, s.Correct+s.Incorrect+s.Unanswered)
		for _, topic := range s.Topics {
			assert.Equal(t, topic.TotalQuestions, topic.Correct+topic.Incorrect+topic.Unanswered)
		}
	}

	check()
	for _, sel := range []Option{"A", "B", Unanswered, "C", "D"} {
		for q := 1; q <= 3; q++ {
			_, err := rs.Override(q, sel)
			require.NoError(t, err)
			check()
		}
	}
}

func TestSummarizeZeroPossiblePoints(t *testing.T) {
	agg := newTestAggregator(t)

	rs, err := Evaluate(Responses{1: "A"}, []KeyEntry{
		{QuestionNumber: 1, CorrectOption: "A", MaxPoints: 0},
		{QuestionNumber: 2, CorrectOption: "B", MaxPoints: 0},
	})
	require.NoError(t, err)

	s := agg.Summarize(rs)
	assert.Zero(t, s.PointsPossible)
	assert.Zero(t, s.ScorePercentage)
	assert.Equal(t, 1, s.Correct)
	assert.Equal(t, "F", s.Grade)
}

func TestSummarizeEmptyResultSet(t *testing.T) {
	agg := newTestAggregator(t)
	rs, err := Evaluate(nil, nil)
	require.NoError(t, err)

	s := agg.Summarize(rs)
	assert.Zero(t, s.TotalQuestions)
	assert.Zero(t, s.ScorePercentage)
	assert.NotNil(t, s.Topics)
	assert.Empty(t, s.Topics)
}

func TestSummarizeTopicsFirstSeenOrder(t *testing.T) {
	agg := newTestAggregator(t)
	key := []KeyEntry{
		{QuestionNumber: 1, CorrectOption: "A", MaxPoints: 1, Topic: "Geometry"},
		{QuestionNumber: 2, CorrectOption: "A", MaxPoints: 1, Topic: "Algebra"},
		{QuestionNumber: 3, CorrectOption: "A", MaxPoints: 1, Topic: "Geometry"},
		{QuestionNumber: 4, CorrectOption: "A", MaxPoints: 1, Topic: "algebra"},
	}
	rs, err := Evaluate(Responses{1: "A", 2: "A", 3: "B"}, key)
	require.NoError(t, err)

	s := agg.Summarize(rs)
	require.Len(t, s.Topics, 3)
	assert.Equal(t, "Geometry", s.Topics[0].Topic)
	assert.Equal(t, "Algebra", s.Topics[1].Topic)
	assert.Equal(t, "algebra", s.Topics[2].Topic, "topics compare by exact string")

	geo := s.Topics[0]
	assert.Equal(t, 2, geo.TotalQuestions)
	assert.Equal(t, 1, geo.Correct)
	assert.Equal(t, 1, geo.Incorrect)
	assert.InDelta(t, 50.0, geo.ScorePercentage, 1e-9)
	assert.Equal(t, "F", geo.Grade)

	assert.Equal(t, "A", s.Topics[1].Grade)
	assert.Equal(t, 1, s.Topics[2].Unanswered)
}

func TestSummarizeIsPureFunctionOfRecords(t *testing.T) {
	agg := newTestAggregator(t)

	overridden := newExampleSet(t)
	for _, sel := range []Option{"A", "D", "C"} {
		_, err := overridden.Override(3, sel)
		require.NoError(t, err)
	}

	fresh, err := Evaluate(Responses{1: "A", 2: "D", 3: "C"}, exampleKey())
	require.NoError(t, err)

	require.Equal(t, fresh.Records(), overridden.Records())
	assert.Equal(t, agg.Summarize(fresh), agg.Summarize(overridden))
}

func TestSummarizeRecordsScopedToFilter(t *testing.T) {
	rs := newExampleSet(t)
	agg := newTestAggregator(t)

	s := agg.SummarizeRecords(Filter(rs, "Algebra", FilterAll))
	assert.Equal(t, 2, s.TotalQuestions)
	assert.Equal(t, 1, s.Correct)
	assert.Equal(t, 1, s.Unanswered)
	assert.InDelta(t, 50.0, s.ScorePercentage, 1e-9)
}

func TestVerdict(t *testing.T) {
	scale, err := ParseGradeScale("Pass:50,Fail:0")
	require.NoError(t, err)
	agg, err := NewAggregator(scale, 50)
	require.NoError(t, err)

	key := []KeyEntry{
		{QuestionNumber: 1, CorrectOption: "A", MaxPoints: 2},
		{QuestionNumber: 2, CorrectOption: "A", MaxPoints: 2},
	}

	tests := []struct {
		name        string
		responses   Responses
		wantGrade   string
		wantVerdict Verdict
	}{
		{"all correct", Responses{1: "A", 2: "A"}, "Pass", VerdictExcellent},
		{"at target", Responses{1: "A"}, "Pass", VerdictExcellent},
		{"below target", Responses{2: "B"}, "Fail", VerdictNeedsImprovement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Evaluate(tt.responses, key)
			require.NoError(t, err)
			s := agg.Summarize(rs)
			assert.Equal(t, tt.wantGrade, s.Grade)
			assert.Equal(t, tt.wantVerdict, s.Verdict)
		})
	}
}

func TestNewAggregatorRejectsBadTarget(t *testing.T) {
	_, err := NewAggregator(DefaultGradeScale, 101)
	assert.Error(t, err)
	_, err = NewAggregator(DefaultGradeScale, -1)
	assert.Error(t, err)
}

func TestTallyShare(t *testing.T) {
	tally := Tally{TotalQuestions: 4, Correct: 1, Incorrect: 2, Unanswered: 1}
	assert.InDelta(t, 25.0, tally.Share(StatusCorrect), 1e-9)
	assert.InDelta(t, 50.0, tally.Share(StatusIncorrect), 1e-9)
	assert.InDelta(t, 25.0, tally.Share(StatusUnanswered), 1e-9)
	assert.Zero(t, Tally{}.Share(StatusCorrect))
}
