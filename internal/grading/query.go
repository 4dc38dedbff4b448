package grading

import (
	"errors"
	"strconv"
	"strings"
)

// StatusFilter restricts a query to one status partition.
type StatusFilter string

const (
	FilterAll        StatusFilter = "all"
	FilterCorrect    StatusFilter = "correct"
	FilterIncorrect  StatusFilter = "incorrect"
	FilterUnanswered StatusFilter = "unanswered"
)

// ErrUnknownStatusFilter is returned by ParseStatusFilter for unrecognized names.
var ErrUnknownStatusFilter = errors.New("unknown status filter")

// ParseStatusFilter parses a filter name. The empty string means FilterAll.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterCorrect, FilterIncorrect, FilterUnanswered:
		return f, nil
	}
	return "", ErrUnknownStatusFilter
}

// Query is a search term combined with a status filter.
type Query struct {
	Term   string       `json:"term"`
	Status StatusFilter `json:"status"`
}

// Matches reports whether r satisfies both the term and the status filter.
func (q Query) Matches(r AnswerRecord) bool {
	return q.matchesTerm(r) && q.matchesStatus(r)
}

func (q Query) matchesTerm(r AnswerRecord) bool {
	if q.Term == "" {
		return true
	}
	if strings.Contains(strconv.Itoa(r.QuestionNumber), q.Term) {
		return true
	}
	return strings.Contains(strings.ToLower(r.Topic), strings.ToLower(q.Term))
}

func (q Query) matchesStatus(r AnswerRecord) bool {
	switch q.Status {
	case FilterCorrect:
		return r.Status() == StatusCorrect
	case FilterIncorrect:
		return r.Status() == StatusIncorrect
	case FilterUnanswered:
		return r.Status() == StatusUnanswered
	}
	return true
}

// Filter returns the records matching term and status in their original order.
// It never returns nil; an empty slice means nothing matched.
func Filter(rs *ResultSet, term string, status StatusFilter) []AnswerRecord {
	return Query{Term: term, Status: status}.Apply(rs)
}

// Apply runs the query over rs.
func (q Query) Apply(rs *ResultSet) []AnswerRecord {
	out := make([]AnswerRecord, 0, rs.Len())
	for _, r := range rs.records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}
