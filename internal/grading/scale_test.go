package grading

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGradeScale(t *testing.T) {
	scale, err := ParseGradeScale("F:0, A:90, C:70, B:80, D:60")
	require.NoError(t, err)
	assert.Equal(t, "A:90,B:80,C:70,D:60,F:0", scale.String())

	tests := []struct {
		pct  float64
		want string
	}{
		{100, "A"},
		{90, "A"},
		{89.99, "B"},
		{80, "B"},
		{70, "C"},
		{61, "D"},
		{59.5, "F"},
		{0, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scale.Grade(tt.pct), "grade for %v", tt.pct)
	}
}

func TestGradeMonotonic(t *testing.T) {
	order := map[string]int{"F": 0, "D": 1, "C": 2, "B": 3, "A": 4}
	prev := -1
	for pct := 0.0; pct <= 100; pct += 0.5 {
		rank := order[DefaultGradeScale.Grade(pct)]
		assert.GreaterOrEqual(t, rank, prev)
		prev = rank
	}
}

func TestGradeScaleWithoutFloor(t *testing.T) {
	scale, err := NewGradeScale(Band{MinPercent: 50, Label: "Pass"})
	require.NoError(t, err)
	assert.Equal(t, "Pass", scale.Grade(75))
	assert.Equal(t, "", scale.Grade(49))

	assert.Equal(t, "", GradeScale{}.Grade(100), "empty scale grades nothing")
}

func TestNewGradeScaleErrors(t *testing.T) {
	tests := []struct {
		name  string
		bands []Band
	}{
		{"above 100", []Band{{MinPercent: 101, Label: "A+"}}},
		{"negative", []Band{{MinPercent: -5, Label: "F"}}},
		{"empty label", []Band{{MinPercent: 50, Label: " "}}},
		{"duplicate threshold", []Band{{MinPercent: 50, Label: "C"}, {MinPercent: 50, Label: "D"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGradeScale(tt.bands...)
			assert.Error(t, err)
		})
	}
}

func TestParseGradeScaleErrors(t *testing.T) {
	for _, in := range []string{"A90", "A:ninety", "A:90,B:90"} {
		_, err := ParseGradeScale(in)
		assert.Error(t, err, in)
	}
}

func TestParseOption(t *testing.T) {
	tests := []struct {
		in   string
		want Option
	}{
		{"A", "A"},
		{" b ", "B"},
		{"", Unanswered},
		{"none", Unanswered},
		{"None", Unanswered},
		{"-", Unanswered},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseOption(tt.in), "ParseOption(%q)", tt.in)
	}
}

func TestOptionJSON(t *testing.T) {
	data, err := json.Marshal(AnswerRecord{QuestionNumber: 3, StudentAnswer: Unanswered, CorrectAnswer: "C"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"student_answer":null`)
	assert.Contains(t, string(data), `"correct_answer":"C"`)

	var got map[string]Option
	require.NoError(t, json.Unmarshal([]byte(`{"a":null,"b":"","c":"none","d":"d"}`), &got))
	assert.Equal(t, map[string]Option{"a": Unanswered, "b": Unanswered, "c": Unanswered, "d": "D"}, got)
}

func TestAlphabet(t *testing.T) {
	a, err := ParseAlphabet("a, b, c, d, e")
	require.NoError(t, err)
	assert.Equal(t, Alphabet{"A", "B", "C", "D", "E"}, a)
	assert.True(t, a.Contains("E"))
	assert.False(t, a.Contains(Unanswered))
	assert.False(t, DefaultAlphabet.Contains("E"))

	_, err = ParseAlphabet("A,A")
	assert.Error(t, err)
	_, err = ParseAlphabet(" , ")
	assert.Error(t, err)
}
