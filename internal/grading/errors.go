package grading

import "fmt"

// MalformedKeyError reports an answer key entry that cannot be graded against.
type MalformedKeyError struct {
	QuestionNumber int
	Reason         string
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("malformed key entry for question %d: %s", e.QuestionNumber, e.Reason)
}

// UnknownQuestionError reports an override aimed at a question the result set does not hold.
type UnknownQuestionError struct {
	QuestionNumber int
}

func (e *UnknownQuestionError) Error() string {
	return fmt.Sprintf("unknown question %d", e.QuestionNumber)
}

// InvalidSelectionError reports a mark outside the exam's option alphabet.
type InvalidSelectionError struct {
	QuestionNumber int
	Selection      Option
	Alphabet       Alphabet
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("question %d: selection %q is not one of %v", e.QuestionNumber, string(e.Selection), e.Alphabet.Strings())
}
