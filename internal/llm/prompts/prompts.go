package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/omrgrader/internal/grading"
	"github.com/pavelanni/omrgrader/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	topicTagRegex = regexp.MustCompile(`(?i)</?\s*topic\b[^>]*>`)
	newlineRegex  = regexp.MustCompile(`[\r\n]+`)
)

// maxFieldRunes bounds free text taken from key files.
const maxFieldRunes = 200

// maxMissed bounds the number of missed questions listed in a prompt.
const maxMissed = 50

// Variant selects the insights prompt style.
type Variant string

const (
	// VariantBrief asks for a headline and short lists.
	VariantBrief Variant = "brief"
	// VariantDetailed asks for study advice per topic.
	VariantDetailed Variant = "detailed"
)

var validVariants = map[Variant]bool{
	VariantBrief:    true,
	VariantDetailed: true,
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

// TopicData is one topic line of the prompt.
type TopicData struct {
	Name       string
	Total      int
	Correct    int
	Unanswered int
	Percent    string
}

// MissedData is one missed question.
type MissedData struct {
	Number  int
	Topic   string
	Marked  string
	Correct string
	Points  string
}

// InsightsData holds template data for insights prompts.
type InsightsData struct {
	Subject    string
	Difficulty string
	Earned     string
	Possible   string
	Percent    string
	Grade      string
	Total      int
	Correct    int
	Incorrect  int
	Unanswered int
	Topics     []TopicData
	Missed     []MissedData
}

func load() error {
	loadOnce.Do(func() {
		templates = make(map[Variant]*template.Template)
		for v := range validVariants {
			file := "templates/insights_" + string(v) + ".tmpl"
			content, err := templateFS.ReadFile(file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New(string(v)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// NewInsightsData builds prompt data from a summary and the questions the candidate
// did not get right.
func NewInsightsData(info model.ExamInfo, sum grading.Summary, missed []grading.AnswerRecord) InsightsData {
	data := InsightsData{
		Subject:    sanitize(info.Subject),
		Difficulty: sanitize(info.Difficulty),
		Earned:     fmt.Sprintf("%g", sum.PointsEarned),
		Possible:   fmt.Sprintf("%g", sum.PointsPossible),
		Percent:    fmt.Sprintf("%.1f", sum.ScorePercentage),
		Grade:      sanitize(sum.Grade),
		Total:      sum.TotalQuestions,
		Correct:    sum.Correct,
		Incorrect:  sum.Incorrect,
		Unanswered: sum.Unanswered,
	}
	if data.Grade == "" {
		data.Grade = "n/a"
	}
	for _, t := range sum.Topics {
		data.Topics = append(data.Topics, TopicData{
			Name:       topicName(t.Topic),
			Total:      t.TotalQuestions,
			Correct:    t.Correct,
			Unanswered: t.Unanswered,
			Percent:    fmt.Sprintf("%.0f", t.ScorePercentage),
		})
	}
	for i, r := range missed {
		if i == maxMissed {
			break
		}
		data.Missed = append(data.Missed, MissedData{
			Number:  r.QuestionNumber,
			Topic:   topicName(r.Topic),
			Marked:  r.StudentAnswer.String(),
			Correct: r.CorrectAnswer.String(),
			Points:  fmt.Sprintf("%g", r.MaxPoints),
		})
	}
	return data
}

// Build renders the insights prompt for variant.
func Build(variant Variant, data InsightsData) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func topicName(s string) string {
	s = sanitize(s)
	if s == "" {
		return "untagged"
	}
	return s
}

func sanitize(s string) string {
	s = topicTagRegex.ReplaceAllString(s, "")
	s = newlineRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxFieldRunes {
		s = string([]rune(s)[:maxFieldRunes]) + "..."
	}
	return s
}
