package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/omrgrader/internal/grading"
	"github.com/pavelanni/omrgrader/internal/i18n"
	"github.com/pavelanni/omrgrader/internal/model"
)

func testContext(t *testing.T, lang string) context.Context {
	t.Helper()
	require.NoError(t, i18n.Init("en"))
	return i18n.WithLang(context.Background(), lang)
}

func exampleExport(t *testing.T, id string) model.SessionExport {
	t.Helper()
	rs, err := grading.Evaluate(grading.Responses{1: "A", 2: "B"}, []grading.KeyEntry{
		{QuestionNumber: 1, CorrectOption: "A", MaxPoints: 2, Topic: "Algebra"},
		{QuestionNumber: 2, CorrectOption: "D", MaxPoints: 2, Topic: "Geometry"},
		{QuestionNumber: 3, CorrectOption: "C", MaxPoints: 2, Topic: "Algebra"},
	})
	require.NoError(t, err)
	agg, err := grading.NewAggregator(grading.DefaultGradeScale, grading.DefaultTargetPercent)
	require.NoError(t, err)
	return model.SessionExport{
		Session: model.ReviewSession{
			ID:     id,
			Info:   model.ExamInfo{ExamID: "MATH-101", Subject: "Mathematics", Candidate: "Jane"},
			Status: model.StatusInReview,
		},
		Summary: agg.Summarize(rs),
		Answers: rs.Records(),
		Overrides: []model.OverrideEvent{
			{SessionID: id, QuestionNumber: 2, Previous: "D", Selection: "B", Reviewer: "lee", At: time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)},
		},
	}
}

func TestTerminalWrite(t *testing.T) {
	ctx := testContext(t, "en")
	exp := exampleExport(t, "s1")

	var buf bytes.Buffer
	require.NoError(t, NewTerminal(true).Write(ctx, &buf, exp.Session.Info, exp.Summary, exp.Answers))
	out := buf.String()

	for _, want := range []string{
		"Exam details",
		"Subject: Mathematics",
		"Score: 2 of 6 points (33.3%)",
		"Grade: F",
		"Verdict: Needs improvement",
		"Correct: 1 (33%)",
		"Unanswered: 1 (33%)",
		"Algebra",
		"Answers (3 questions)",
		"Geometry",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "\x1b[", "no ANSI escapes with color disabled")
}

func TestTerminalAnswersRows(t *testing.T) {
	ctx := testContext(t, "en")
	exp := exampleExport(t, "s1")

	out := NewTerminal(true).Answers(ctx, exp.Answers)
	lines := strings.Split(out, "\n")
	var row3 string
	for _, l := range lines {
		if strings.Contains(l, " 3 ") && strings.Contains(l, "Unanswered") {
			row3 = l
		}
	}
	require.NotEmpty(t, row3, "question 3 row missing:\n%s", out)
	assert.Contains(t, row3, " - ")
	assert.Contains(t, row3, "0/2")
}

func TestTerminalNoMatches(t *testing.T) {
	ctx := testContext(t, "en")
	out := NewTerminal(true).Answers(ctx, []grading.AnswerRecord{})
	assert.Contains(t, out, "Answers (0 questions)")
	assert.Contains(t, out, "No questions match the filter.")
}

func TestTerminalRussian(t *testing.T) {
	ctx := testContext(t, "ru")
	exp := exampleExport(t, "s1")

	out := NewTerminal(true).Summary(ctx, exp.Summary)
	assert.Contains(t, out, "Итоги")
	assert.Contains(t, out, "2 из 6 баллов")
	assert.Contains(t, out, "Без ответа: 1")
}

func TestTerminalDetailsEmpty(t *testing.T) {
	ctx := testContext(t, "en")
	assert.Empty(t, NewTerminal(true).Details(ctx, model.ExamInfo{}))
}

func TestWriteXLSX(t *testing.T) {
	ctx := testContext(t, "en")

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(ctx, &buf, exampleExport(t, "s1"), exampleExport(t, "s2")))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetAnswers, SheetTopics, SheetOverrides}, f.GetSheetList())

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, "session_id", summary[0][0])
	assert.Equal(t, "s1", summary[1][0])
	assert.Equal(t, "Mathematics", summary[1][2])
	assert.Equal(t, "33.33", summary[1][11])
	assert.Equal(t, "F", summary[1][12])

	answers, err := f.GetRows(SheetAnswers)
	require.NoError(t, err)
	require.Len(t, answers, 7)
	assert.Equal(t, []string{"s1", "3", "", "C", "Unanswered", "0", "2", "Algebra"}, answers[3])

	topics, err := f.GetRows(SheetTopics)
	require.NoError(t, err)
	require.Len(t, topics, 5)
	assert.Equal(t, "Algebra", topics[1][1])
	assert.Equal(t, "2", topics[1][2])

	overrides, err := f.GetRows(SheetOverrides)
	require.NoError(t, err)
	require.Len(t, overrides, 3)
	assert.Equal(t, "lee", overrides[1][4])
	assert.Equal(t, "2026-05-14 10:00:00", overrides[1][6])
}

func TestWriteXLSXEmpty(t *testing.T) {
	ctx := testContext(t, "en")

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(ctx, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetAnswers)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}
