package report

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/omrgrader/internal/i18n"
	"github.com/pavelanni/omrgrader/internal/model"
)

// Sheet names of the exported workbook.
const (
	SheetSummary   = "Summary"
	SheetAnswers   = "Answers"
	SheetTopics    = "Topics"
	SheetOverrides = "Overrides"
)

// WriteXLSX writes one workbook covering all exports. Column headers follow the
// context language; sheet names stay fixed for scripts that read them.
func WriteXLSX(ctx context.Context, w io.Writer, exports ...model.SessionExport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetAnswers, SheetTopics, SheetOverrides} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	sheets := []struct {
		name    string
		headers []string
		rows    func(model.SessionExport) [][]any
	}{
		{SheetSummary, summaryHeaders(ctx), summaryRows},
		{SheetAnswers, answerHeaders(ctx), answerRows(ctx)},
		{SheetTopics, topicHeaders(ctx), topicRows},
		{SheetOverrides, overrideHeaders(ctx), overrideRows},
	}
	for _, sh := range sheets {
		if err := writeSheet(f, sh.name, sh.headers, bold, exports, sh.rows); err != nil {
			return fmt.Errorf("write sheet %s: %w", sh.name, err)
		}
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, headers []string, headerStyle int, exports []model.SessionExport, rowsOf func(model.SessionExport) [][]any) error {
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}

	row := 2
	for _, exp := range exports {
		for _, values := range rowsOf(exp) {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return err
			}
			row++
		}
	}

	last, err := excelize.CoordinatesToCellName(len(headers), max(row-1, 1))
	if err != nil {
		return err
	}
	if err := f.AutoFilter(sheet, "A1:"+last, nil); err != nil {
		return err
	}
	endCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", endCol, 16)
}

func summaryHeaders(ctx context.Context) []string {
	return []string{
		"session_id", i18n.T(ctx, "FieldExamID"), i18n.T(ctx, "FieldSubject"), i18n.T(ctx, "FieldCandidate"),
		i18n.T(ctx, "FieldDate"), i18n.T(ctx, "ColStatus"),
		i18n.T(ctx, "StatusCorrect"), i18n.T(ctx, "StatusIncorrect"), i18n.T(ctx, "StatusUnanswered"),
		i18n.T(ctx, "ColPoints"), i18n.T(ctx, "ColMaxPoints"), i18n.T(ctx, "ColScore"),
		i18n.T(ctx, "ColGrade"), i18n.T(ctx, "FieldVerdict"),
	}
}

func summaryRows(exp model.SessionExport) [][]any {
	s := exp.Summary
	info := exp.Session.Info
	return [][]any{{
		exp.Session.ID, info.ExamID, info.Subject, info.Candidate, info.Date, string(exp.Session.Status),
		s.Correct, s.Incorrect, s.Unanswered,
		s.PointsEarned, s.PointsPossible, round2(s.ScorePercentage),
		s.Grade, string(s.Verdict),
	}}
}

func answerHeaders(ctx context.Context) []string {
	return []string{
		"session_id", i18n.T(ctx, "ColQuestion"), i18n.T(ctx, "ColAnswer"), i18n.T(ctx, "ColCorrectAnswer"),
		i18n.T(ctx, "ColStatus"), i18n.T(ctx, "ColPoints"), i18n.T(ctx, "ColMaxPoints"), i18n.T(ctx, "ColTopic"),
	}
}

func answerRows(ctx context.Context) func(model.SessionExport) [][]any {
	return func(exp model.SessionExport) [][]any {
		rows := make([][]any, 0, len(exp.Answers))
		for _, r := range exp.Answers {
			rows = append(rows, []any{
				exp.Session.ID, r.QuestionNumber, string(r.StudentAnswer), string(r.CorrectAnswer),
				i18n.Status(ctx, r.Status()), r.PointsEarned, r.MaxPoints, r.Topic,
			})
		}
		return rows
	}
}

func topicHeaders(ctx context.Context) []string {
	return []string{
		"session_id", i18n.T(ctx, "ColTopic"), i18n.T(ctx, "ColCount"),
		i18n.T(ctx, "StatusCorrect"), i18n.T(ctx, "StatusIncorrect"), i18n.T(ctx, "StatusUnanswered"),
		i18n.T(ctx, "ColPoints"), i18n.T(ctx, "ColMaxPoints"), i18n.T(ctx, "ColScore"), i18n.T(ctx, "ColGrade"),
	}
}

func topicRows(exp model.SessionExport) [][]any {
	rows := make([][]any, 0, len(exp.Summary.Topics))
	for _, t := range exp.Summary.Topics {
		rows = append(rows, []any{
			exp.Session.ID, t.Topic, t.TotalQuestions,
			t.Correct, t.Incorrect, t.Unanswered,
			t.PointsEarned, t.PointsPossible, round2(t.ScorePercentage), t.Grade,
		})
	}
	return rows
}

func overrideHeaders(ctx context.Context) []string {
	return []string{"session_id", i18n.T(ctx, "ColQuestion"), "previous", "selection", "reviewer", "comment", "at"}
}

func overrideRows(exp model.SessionExport) [][]any {
	rows := make([][]any, 0, len(exp.Overrides))
	for _, ev := range exp.Overrides {
		rows = append(rows, []any{
			ev.SessionID, ev.QuestionNumber, string(ev.Previous), string(ev.Selection),
			ev.Reviewer, ev.Comment, ev.At.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	return rows
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
