package grading

import (
	"math"
	"slices"
)

// KeyEntry is one line of the answer key.
type KeyEntry struct {
	QuestionNumber int     `json:"question_number"`
	CorrectOption  Option  `json:"correct_option"`
	MaxPoints      float64 `json:"max_points"`
	Topic          string  `json:"topic"`
}

// Responses maps question numbers to the candidate's marks.
// A missing question is the same as an explicit Unanswered.
type Responses map[int]Option

// Evaluator grades responses against a key for a fixed option alphabet.
type Evaluator struct {
	alphabet Alphabet
}

// NewEvaluator returns an Evaluator for alphabet. A nil or empty alphabet falls back to
// DefaultAlphabet.
func NewEvaluator(alphabet Alphabet) *Evaluator {
	if len(alphabet) == 0 {
		alphabet = DefaultAlphabet
	}
	return &Evaluator{alphabet: slices.Clone(alphabet)}
}

// Alphabet returns the marks this evaluator accepts.
func (e *Evaluator) Alphabet() Alphabet {
	return slices.Clone(e.alphabet)
}

// Evaluate grades responses against key using DefaultAlphabet.
func Evaluate(responses Responses, key []KeyEntry) (*ResultSet, error) {
	return NewEvaluator(DefaultAlphabet).Evaluate(responses, key)
}

// Evaluate builds a ResultSet with one record per key entry, ordered by question number.
// Any malformed key entry or out-of-alphabet response aborts the whole evaluation.
func (e *Evaluator) Evaluate(responses Responses, key []KeyEntry) (*ResultSet, error) {
	seen := make(map[int]bool, len(key))
	for _, k := range key {
		if err := e.validateEntry(k, seen); err != nil {
			return nil, err
		}
		seen[k.QuestionNumber] = true
	}

	records := make([]AnswerRecord, 0, len(key))
	for _, k := range key {
		selection := responses[k.QuestionNumber]
		if selection.Answered() && !e.alphabet.Contains(selection) {
			return nil, &InvalidSelectionError{QuestionNumber: k.QuestionNumber, Selection: selection, Alphabet: e.Alphabet()}
		}
		rec := AnswerRecord{
			QuestionNumber: k.QuestionNumber,
			CorrectAnswer:  k.CorrectOption,
			MaxPoints:      k.MaxPoints,
			Topic:          k.Topic,
		}
		records = append(records, rec.rescore(selection))
	}
	slices.SortFunc(records, func(a, b AnswerRecord) int {
		return a.QuestionNumber - b.QuestionNumber
	})

	return newResultSet(records, e.alphabet), nil
}

func (e *Evaluator) validateEntry(k KeyEntry, seen map[int]bool) error {
	switch {
	case k.QuestionNumber <= 0:
		return &MalformedKeyError{QuestionNumber: k.QuestionNumber, Reason: "question number must be positive"}
	case seen[k.QuestionNumber]:
		return &MalformedKeyError{QuestionNumber: k.QuestionNumber, Reason: "duplicate question number"}
	case math.IsNaN(k.MaxPoints) || math.IsInf(k.MaxPoints, 0):
		return &MalformedKeyError{QuestionNumber: k.QuestionNumber, Reason: "max points is not a finite number"}
	case k.MaxPoints < 0:
		return &MalformedKeyError{QuestionNumber: k.QuestionNumber, Reason: "max points must not be negative"}
	case !e.alphabet.Contains(k.CorrectOption):
		return &MalformedKeyError{QuestionNumber: k.QuestionNumber, Reason: "correct option " + k.CorrectOption.String() + " is not in the option alphabet"}
	}
	return nil
}
