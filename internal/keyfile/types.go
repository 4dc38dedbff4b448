package keyfile

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/omrgrader/internal/grading"
	"github.com/pavelanni/omrgrader/internal/model"
)

// DefaultPoints is the weight of a key question that does not set one.
const DefaultPoints = 1.0

// ErrDuplicateQuestion is returned when a file lists the same question twice.
var ErrDuplicateQuestion = errors.New("duplicate question")

// KeyFile is an answer key as read from disk or an API request.
type KeyFile struct {
	Version   int            `json:"version" yaml:"version" validate:"eq=1"`
	Exam      model.ExamInfo `json:"exam" yaml:"exam"`
	Alphabet  []string       `json:"alphabet,omitempty" yaml:"alphabet,omitempty" validate:"omitempty,unique,dive,required,max=8"`
	Questions []KeyQuestion  `json:"questions" yaml:"questions" validate:"required,dive"`
}

// KeyQuestion is one answer key line.
type KeyQuestion struct {
	Number  int      `json:"number" yaml:"number" validate:"gt=0"`
	Correct string   `json:"correct" yaml:"correct"`
	Points  *float64 `json:"points,omitempty" yaml:"points,omitempty"`
	Topic   string   `json:"topic,omitempty" yaml:"topic,omitempty" validate:"max=200"`
}

// ResponseFile is one candidate's recognized marks.
type ResponseFile struct {
	Version   int            `json:"version" yaml:"version" validate:"eq=1"`
	Candidate string         `json:"candidate,omitempty" yaml:"candidate,omitempty" validate:"max=200"`
	Responses map[int]string `json:"responses" yaml:"responses" validate:"dive,keys,gt=0,endkeys"`
}

// Entries converts the key into evaluator input. Correctness of options and points is
// left to the evaluator.
func (k KeyFile) Entries() ([]grading.KeyEntry, error) {
	seen := make(map[int]bool, len(k.Questions))
	entries := make([]grading.KeyEntry, 0, len(k.Questions))
	for _, q := range k.Questions {
		if seen[q.Number] {
			return nil, fmt.Errorf("question %d: %w", q.Number, ErrDuplicateQuestion)
		}
		seen[q.Number] = true
		points := DefaultPoints
		if q.Points != nil {
			points = *q.Points
		}
		entries = append(entries, grading.KeyEntry{
			QuestionNumber: q.Number,
			CorrectOption:  grading.ParseOption(q.Correct),
			MaxPoints:      points,
			Topic:          strings.TrimSpace(q.Topic),
		})
	}
	return entries, nil
}

// OptionAlphabet returns the alphabet declared by the key, or nil when the key does not
// declare one.
func (k KeyFile) OptionAlphabet() (grading.Alphabet, error) {
	if len(k.Alphabet) == 0 {
		return nil, nil
	}
	a, err := grading.ParseAlphabet(strings.Join(k.Alphabet, ","))
	if err != nil {
		return nil, fmt.Errorf("key alphabet: %w", err)
	}
	return a, nil
}

// Selections converts the recognized marks into evaluator input.
func (r ResponseFile) Selections() (grading.Responses, error) {
	out := make(grading.Responses, len(r.Responses))
	for q, s := range r.Responses {
		if q <= 0 {
			return nil, fmt.Errorf("response for question %d: question number must be positive", q)
		}
		out[q] = grading.ParseOption(s)
	}
	return out, nil
}

// ValidationError lists the fields that failed structural checks.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate runs the struct tag checks on v and reports every failing field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		msg := field + " fails " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		problems = append(problems, msg)
	}
	return &ValidationError{Problems: problems}
}
