package keyfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// csvTable is a header-addressed view over CSV rows.
type csvTable struct {
	columns map[string]int
	rows    [][]string
	lines   []int
}

func readCSV(data []byte, required ...string) (csvTable, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comment = '#'
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return csvTable{}, fmt.Errorf("parse csv: missing header row")
	}
	if err != nil {
		return csvTable{}, fmt.Errorf("parse csv: %w", err)
	}
	t := csvTable{columns: make(map[string]int, len(header))}
	for i, name := range header {
		t.columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := t.columns[name]; !ok {
			return csvTable{}, fmt.Errorf("parse csv: header lacks %q column", name)
		}
	}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return csvTable{}, fmt.Errorf("parse csv: %w", err)
		}
		line, _ := r.FieldPos(0)
		t.rows = append(t.rows, row)
		t.lines = append(t.lines, line)
	}
	return t, nil
}

func (t csvTable) get(row []string, column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t csvTable) question(i int) (int, error) {
	raw := t.get(t.rows[i], "question")
	q, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("line %d: question %q is not a number", t.lines[i], raw)
	}
	return q, nil
}

// parseKeyCSV reads a "question,correct,points,topic" table. Points and topic are optional.
func parseKeyCSV(data []byte) (KeyFile, error) {
	t, err := readCSV(data, "question", "correct")
	if err != nil {
		return KeyFile{}, err
	}
	key := KeyFile{Version: 1, Questions: make([]KeyQuestion, 0, len(t.rows))}
	seen := make(map[int]bool, len(t.rows))
	for i, row := range t.rows {
		q, err := t.question(i)
		if err != nil {
			return KeyFile{}, err
		}
		if seen[q] {
			return KeyFile{}, fmt.Errorf("line %d: question %d: %w", t.lines[i], q, ErrDuplicateQuestion)
		}
		seen[q] = true

		kq := KeyQuestion{
			Number:  q,
			Correct: t.get(row, "correct"),
			Topic:   t.get(row, "topic"),
		}
		if raw := t.get(row, "points"); raw != "" {
			pts, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return KeyFile{}, fmt.Errorf("line %d: points %q is not a number", t.lines[i], raw)
			}
			kq.Points = &pts
		}
		key.Questions = append(key.Questions, kq)
	}
	return key, nil
}

// parseResponsesCSV reads a "question,selection" table. An empty selection is unanswered.
func parseResponsesCSV(data []byte) (ResponseFile, error) {
	t, err := readCSV(data, "question", "selection")
	if err != nil {
		return ResponseFile{}, err
	}
	resp := ResponseFile{Version: 1, Responses: make(map[int]string, len(t.rows))}
	for i, row := range t.rows {
		q, err := t.question(i)
		if err != nil {
			return ResponseFile{}, err
		}
		if _, dup := resp.Responses[q]; dup {
			return ResponseFile{}, fmt.Errorf("line %d: question %d: %w", t.lines[i], q, ErrDuplicateQuestion)
		}
		resp.Responses[q] = t.get(row, "selection")
	}
	return resp, nil
}
