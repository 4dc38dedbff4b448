package grading

import "slices"

// ResultSet is the ordered, mutable collection of graded records for one exam attempt.
//
// A ResultSet is not safe for concurrent use. Hosts that share one across goroutines
// must serialize Override against every other call.
type ResultSet struct {
	records  []AnswerRecord
	index    map[int]int
	alphabet Alphabet
}

func newResultSet(records []AnswerRecord, alphabet Alphabet) *ResultSet {
	rs := &ResultSet{
		records:  records,
		index:    make(map[int]int, len(records)),
		alphabet: slices.Clone(alphabet),
	}
	for i, r := range records {
		rs.index[r.QuestionNumber] = i
	}
	return rs
}

// Len returns the number of questions.
func (rs *ResultSet) Len() int {
	return len(rs.records)
}

// Records returns a copy of all records in ascending question order.
func (rs *ResultSet) Records() []AnswerRecord {
	return slices.Clone(rs.records)
}

// Record returns the record for question q.
func (rs *ResultSet) Record(q int) (AnswerRecord, bool) {
	i, ok := rs.index[q]
	if !ok {
		return AnswerRecord{}, false
	}
	return rs.records[i], true
}

// Alphabet returns the marks overrides may use.
func (rs *ResultSet) Alphabet() Alphabet {
	return slices.Clone(rs.alphabet)
}

// Clone returns an independent copy.
func (rs *ResultSet) Clone() *ResultSet {
	return newResultSet(slices.Clone(rs.records), rs.alphabet)
}

// Override replaces the candidate's mark for question q and re-scores that question.
// On error the result set is left untouched.
func (rs *ResultSet) Override(q int, selection Option) (AnswerRecord, error) {
	i, ok := rs.index[q]
	if !ok {
		return AnswerRecord{}, &UnknownQuestionError{QuestionNumber: q}
	}
	if selection.Answered() && !rs.alphabet.Contains(selection) {
		return AnswerRecord{}, &InvalidSelectionError{QuestionNumber: q, Selection: selection, Alphabet: rs.Alphabet()}
	}
	updated := rs.records[i].rescore(selection)
	rs.records[i] = updated
	return updated, nil
}
