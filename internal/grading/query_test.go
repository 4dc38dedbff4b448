package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func questionNumbers(records []AnswerRecord) []int {
	out := []int{}
	for _, r := range records {
		out = append(out, r.QuestionNumber)
	}
	return out
}

func TestFilterAllEmptyTermReturnsEverything(t *testing.T) {
	rs := newExampleSet(t)
	assert.Equal(t, rs.Records(), Filter(rs, "", FilterAll))
}

func TestFilter(t *testing.T) {
	key := []KeyEntry{
		{QuestionNumber: 1, CorrectOption: "A", MaxPoints: 2, Topic: "Algebra"},
		{QuestionNumber: 2, CorrectOption: "B", MaxPoints: 2, Topic: "Geometry"},
		{QuestionNumber: 3, CorrectOption: "C", MaxPoints: 2, Topic: "Algebra"},
		{QuestionNumber: 12, CorrectOption: "D", MaxPoints: 2, Topic: "Statistics"},
		{QuestionNumber: 21, CorrectOption: "A", MaxPoints: 2, Topic: "Calculus"},
	}
	rs, err := Evaluate(Responses{1: "A", 2: "D", 12: "D", 21: "B"}, key)
	require.NoError(t, err)

	tests := []struct {
		name   string
		term   string
		status StatusFilter
		want   []int
	}{
		{"topic", "Algebra", FilterAll, []int{1, 3}},
		{"topic case-insensitive", "aLgEbRa", FilterAll, []int{1, 3}},
		{"topic substring", "metr", FilterAll, []int{2}},
		{"question number substring", "2", FilterAll, []int{2, 12, 21}},
		{"question number exact", "12", FilterAll, []int{12}},
		{"correct", "", FilterCorrect, []int{1, 12}},
		{"incorrect excludes unanswered", "", FilterIncorrect, []int{2, 21}},
		{"unanswered", "", FilterUnanswered, []int{3}},
		{"term and status", "Algebra", FilterCorrect, []int{1}},
		{"no match", "Physics", FilterAll, []int{}},
		{"no match in status", "Geometry", FilterUnanswered, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(rs, tt.term, tt.status)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, questionNumbers(got))
		})
	}
}

func TestFilterDoesNotMutate(t *testing.T) {
	rs := newExampleSet(t)
	before := rs.Records()

	view := Filter(rs, "Algebra", FilterAll)
	view[0].StudentAnswer = "D"

	assert.Equal(t, before, rs.Records())
}

func TestParseStatusFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    StatusFilter
		wantErr bool
	}{
		{"", FilterAll, false},
		{"all", FilterAll, false},
		{"Correct", FilterCorrect, false},
		{" incorrect ", FilterIncorrect, false},
		{"UNANSWERED", FilterUnanswered, false},
		{"partial", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatusFilter(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownStatusFilter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
