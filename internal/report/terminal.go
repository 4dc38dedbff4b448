// Package report renders graded sessions for terminals and spreadsheets.
package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/pavelanni/omrgrader/internal/grading"
	"github.com/pavelanni/omrgrader/internal/i18n"
	"github.com/pavelanni/omrgrader/internal/model"
)

// Terminal renders localized, optionally colored text reports.
type Terminal struct {
	noColor bool
}

// NewTerminal returns a Terminal. With noColor set the output is plain text.
func NewTerminal(noColor bool) *Terminal {
	return &Terminal{noColor: noColor}
}

// Write renders the exam details, the whole-session summary and the given answer rows.
func (t *Terminal) Write(ctx context.Context, w io.Writer, info model.ExamInfo, sum grading.Summary, answers []grading.AnswerRecord) error {
	parts := []string{}
	if details := t.Details(ctx, info); details != "" {
		parts = append(parts, details)
	}
	parts = append(parts, t.Summary(ctx, sum), t.Answers(ctx, answers))
	_, err := io.WriteString(w, lipgloss.JoinVertical(lipgloss.Left, parts...)+"\n")
	return err
}

// Details renders the non-empty exam details, or "" when there are none.
func (t *Terminal) Details(ctx context.Context, info model.ExamInfo) string {
	fields := []struct{ id, value string }{
		{"FieldExamID", info.ExamID},
		{"FieldSubject", info.Subject},
		{"FieldDate", info.Date},
		{"FieldDifficulty", info.Difficulty},
		{"FieldTimeSpent", info.TimeSpent},
		{"FieldCandidate", info.Candidate},
	}
	var lines []string
	for _, f := range fields {
		if f.value != "" {
			lines = append(lines, i18n.T(ctx, f.id)+": "+f.value)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return t.heading(i18n.T(ctx, "HeadingExamDetails")) + "\n" + strings.Join(lines, "\n") + "\n"
}

// Summary renders totals, grade, verdict and the per-topic breakdown.
func (t *Terminal) Summary(ctx context.Context, sum grading.Summary) string {
	var sb strings.Builder
	sb.WriteString(t.heading(i18n.T(ctx, "HeadingSummary")) + "\n")
	sb.WriteString(i18n.T(ctx, "ColScore") + ": " + i18n.ScoreLine(ctx, sum.Tally) + "\n")
	if sum.Grade != "" {
		sb.WriteString(i18n.T(ctx, "ColGrade") + ": " + sum.Grade + "\n")
	}
	sb.WriteString(i18n.T(ctx, "FieldVerdict") + ": " + t.verdict(ctx, sum.Verdict) + "\n")
	for _, s := range []grading.Status{grading.StatusCorrect, grading.StatusIncorrect, grading.StatusUnanswered} {
		label := fmt.Sprintf("%s: %d (%.0f%%)", i18n.Status(ctx, s), sum.Count(s), sum.Share(s))
		sb.WriteString(t.status(label, s) + "\n")
	}

	if len(sum.Topics) > 0 {
		sb.WriteString("\n" + t.heading(i18n.T(ctx, "HeadingTopics")) + "\n")
		rows := make([][]string, 0, len(sum.Topics))
		for _, topic := range sum.Topics {
			rows = append(rows, []string{
				topic.Topic,
				fmt.Sprintf("%d/%d", topic.Correct, topic.TotalQuestions),
				formatPoints(topic.PointsEarned) + "/" + formatPoints(topic.PointsPossible),
				fmt.Sprintf("%.1f%%", topic.ScorePercentage),
				topic.Grade,
			})
		}
		sb.WriteString(t.table(
			[]string{i18n.T(ctx, "ColTopic"), i18n.T(ctx, "StatusCorrect"), i18n.T(ctx, "ColPoints"), i18n.T(ctx, "ColScore"), i18n.T(ctx, "ColGrade")},
			rows, nil,
		) + "\n")
	}
	return sb.String()
}

// Answers renders one row per record.
func (t *Terminal) Answers(ctx context.Context, records []grading.AnswerRecord) string {
	head := t.heading(i18n.T(ctx, "HeadingAnswers")+" ("+i18n.Tp(ctx, "QuestionsCount", len(records))+")") + "\n"
	if len(records) == 0 {
		return head + i18n.T(ctx, "NoMatches")
	}
	rows := make([][]string, 0, len(records))
	statuses := make([]grading.Status, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.QuestionNumber),
			r.StudentAnswer.String(),
			r.CorrectAnswer.String(),
			i18n.Status(ctx, r.Status()),
			formatPoints(r.PointsEarned) + "/" + formatPoints(r.MaxPoints),
			r.Topic,
		})
		statuses = append(statuses, r.Status())
	}
	return head + t.table(
		[]string{i18n.T(ctx, "ColQuestion"), i18n.T(ctx, "ColAnswer"), i18n.T(ctx, "ColCorrectAnswer"),
			i18n.T(ctx, "ColStatus"), i18n.T(ctx, "ColPoints"), i18n.T(ctx, "ColTopic")},
		rows, statuses,
	)
}

// table renders rows under headers. When statuses is set, row i is colored by statuses[i].
func (t *Terminal) table(headers []string, rows [][]string, statuses []grading.Status) string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	if !t.noColor {
		tbl = tbl.
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
			StyleFunc(func(row, col int) lipgloss.Style {
				base := lipgloss.NewStyle().Padding(0, 1)
				if row == table.HeaderRow {
					return base.Bold(true).Foreground(lipgloss.Color("252"))
				}
				if row >= 0 && row < len(statuses) {
					return base.Inherit(statusStyle(statuses[row]))
				}
				return base
			})
	} else {
		tbl = tbl.StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	}
	return tbl.Render()
}

func (t *Terminal) heading(text string) string {
	if t.noColor {
		return text
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")).Render(text)
}

func (t *Terminal) status(text string, s grading.Status) string {
	if t.noColor {
		return text
	}
	return statusStyle(s).Render(text)
}

func (t *Terminal) verdict(ctx context.Context, v grading.Verdict) string {
	text := i18n.Verdict(ctx, v)
	if t.noColor {
		return text
	}
	color := lipgloss.Color("220")
	if v == grading.VerdictExcellent {
		color = lipgloss.Color("42")
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(text)
}

// statusStyle selects a style for a given status.
func statusStyle(s grading.Status) lipgloss.Style {
	color := lipgloss.Color("244")
	switch s {
	case grading.StatusCorrect:
		color = lipgloss.Color("42")
	case grading.StatusIncorrect:
		color = lipgloss.Color("196")
	case grading.StatusUnanswered:
		color = lipgloss.Color("220")
	}
	return lipgloss.NewStyle().Foreground(color)
}

func formatPoints(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
