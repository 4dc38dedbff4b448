package grading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Option is a single mark on the answer sheet, e.g. "A".
type Option string

// Unanswered means no mark was selected or recognized for a question.
// It is never a member of a valid Alphabet.
const Unanswered Option = ""

// Answered reports whether o holds a mark.
func (o Option) Answered() bool {
	return o != Unanswered
}

// String returns the mark, or "-" for Unanswered.
func (o Option) String() string {
	if o == Unanswered {
		return "-"
	}
	return string(o)
}

// ParseOption normalizes a raw mark. Empty strings, "none" and "-" mean Unanswered.
func ParseOption(s string) Option {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "", "NONE", "-":
		return Unanswered
	}
	return Option(s)
}

// MarshalJSON encodes Unanswered as null.
func (o Option) MarshalJSON() ([]byte, error) {
	if o == Unanswered {
		return []byte("null"), nil
	}
	return json.Marshal(string(o))
}

// UnmarshalJSON accepts null, "", "none" as Unanswered.
func (o *Option) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Unanswered
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("option: %w", err)
	}
	*o = ParseOption(s)
	return nil
}

// Alphabet is the finite set of selectable marks for an exam.
type Alphabet []Option

// DefaultAlphabet is the four-choice sheet used by most exams.
var DefaultAlphabet = Alphabet{"A", "B", "C", "D"}

// Contains reports whether o is a member of the alphabet. Unanswered never is.
func (a Alphabet) Contains(o Option) bool {
	if o == Unanswered {
		return false
	}
	for _, m := range a {
		if m == o {
			return true
		}
	}
	return false
}

// Validate checks that the alphabet is non-empty and free of duplicates.
func (a Alphabet) Validate() error {
	if len(a) == 0 {
		return fmt.Errorf("alphabet is empty")
	}
	seen := make(map[Option]bool, len(a))
	for _, m := range a {
		if m == Unanswered {
			return fmt.Errorf("alphabet contains an empty option")
		}
		if seen[m] {
			return fmt.Errorf("alphabet contains %q twice", m)
		}
		seen[m] = true
	}
	return nil
}

// Strings returns the marks as plain strings.
func (a Alphabet) Strings() []string {
	out := make([]string, len(a))
	for i, m := range a {
		out[i] = string(m)
	}
	return out
}

// ParseAlphabet parses a comma-separated list such as "A,B,C,D,E".
func ParseAlphabet(s string) (Alphabet, error) {
	var a Alphabet
	for _, part := range strings.Split(s, ",") {
		o := ParseOption(part)
		if o == Unanswered {
			continue
		}
		a = append(a, o)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}
