package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverrideRescoresQuestion(t *testing.T) {
	rs := newExampleSet(t)

	rec, err := rs.Override(3, "C")
	require.NoError(t, err)
	assert.Equal(t, AnswerRecord{
		QuestionNumber: 3, StudentAnswer: "C", CorrectAnswer: "C",
		IsCorrect: true, PointsEarned: 2, MaxPoints: 2, Topic: "Algebra",
	}, rec)

	stored, ok := rs.Record(3)
	require.True(t, ok)
	assert.Equal(t, rec, stored)

	// Other questions are untouched.
	q1, _ := rs.Record(1)
	assert.True(t, q1.IsCorrect)
	q2, _ := rs.Record(2)
	assert.Equal(t, StatusIncorrect, q2.Status())
}

func TestOverrideToUnanswered(t *testing.T) {
	rs := newExampleSet(t)

	rec, err := rs.Override(1, Unanswered)
	require.NoError(t, err)
	assert.Equal(t, StatusUnanswered, rec.Status())
	assert.Zero(t, rec.PointsEarned)
	assertRecordInvariants(t, rec)
}

func TestOverrideIdempotent(t *testing.T) {
	rs := newExampleSet(t)

	first, err := rs.Override(2, "B")
	require.NoError(t, err)
	second, err := rs.Override(2, "B")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Re-asserting the current selection is a no-op.
	before := rs.Records()
	_, err = rs.Override(1, "A")
	require.NoError(t, err)
	assert.Equal(t, before, rs.Records())
}

func TestOverrideUnknownQuestion(t *testing.T) {
	rs := newExampleSet(t)
	before := rs.Records()

	_, err := rs.Override(42, "A")
	var uq *UnknownQuestionError
	require.ErrorAs(t, err, &uq)
	assert.Equal(t, 42, uq.QuestionNumber)
	assert.Equal(t, before, rs.Records())
}

func TestOverrideInvalidSelection(t *testing.T) {
	rs := newExampleSet(t)
	before := rs.Records()

	_, err := rs.Override(1, "Q")
	var sel *InvalidSelectionError
	require.ErrorAs(t, err, &sel)
	assert.Equal(t, before, rs.Records())
}

func TestOverrideKeepsInvariants(t *testing.T) {
	rs := newExampleSet(t)
	selections := []Option{"A", "B", "C", "D", Unanswered}

	for _, r := range rs.Records() {
		for _, s := range selections {
			rec, err := rs.Override(r.QuestionNumber, s)
			require.NoError(t, err)
			assertRecordInvariants(t, rec)
			assert.Equal(t, r.MaxPoints, rec.MaxPoints, "max points are immutable")
			assert.Equal(t, r.CorrectAnswer, rec.CorrectAnswer)
			assert.Equal(t, r.Topic, rec.Topic)
		}
	}
}

func TestRecordsReturnsCopy(t *testing.T) {
	rs := newExampleSet(t)

	records := rs.Records()
	records[0].PointsEarned = 100

	r, _ := rs.Record(1)
	assert.Equal(t, 2.0, r.PointsEarned)
}

func TestClone(t *testing.T) {
	rs := newExampleSet(t)
	clone := rs.Clone()

	_, err := clone.Override(3, "C")
	require.NoError(t, err)

	orig, _ := rs.Record(3)
	assert.Equal(t, StatusUnanswered, orig.Status())
	cloned, _ := clone.Record(3)
	assert.Equal(t, StatusCorrect, cloned.Status())
}
