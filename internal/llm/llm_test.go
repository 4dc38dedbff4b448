package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pavelanni/omrgrader/internal/grading"
	"github.com/pavelanni/omrgrader/internal/model"
)

func exampleSummary(t *testing.T) (grading.Summary, []grading.AnswerRecord) {
	t.Helper()
	rs, err := grading.Evaluate(grading.Responses{1: "A", 2: "B"}, []grading.KeyEntry{
		{QuestionNumber: 1, CorrectOption: "A", MaxPoints: 2, Topic: "Algebra"},
		{QuestionNumber: 2, CorrectOption: "D", MaxPoints: 2, Topic: "Geometry"},
		{QuestionNumber: 3, CorrectOption: "C", MaxPoints: 2, Topic: "Algebra"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	agg, err := grading.NewAggregator(grading.DefaultGradeScale, grading.DefaultTargetPercent)
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	return agg.Summarize(rs), rs.Records()
}

// fakeChatServer answers chat completions with content and records the prompt it got.
func fakeChatServer(t *testing.T, content string, gotPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) > 0 {
			*gotPrompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInsights(t *testing.T) {
	sum, records := exampleSummary(t)
	var prompt string
	srv := fakeChatServer(t, `{"headline": "Solid algebra start", "strengths": ["Algebra"], "focus_topics": ["Geometry"], "advice": "Review angles."}`, &prompt)

	c := New(srv.URL+"/v1", "test-key", "test-model", "brief")
	got, err := c.Insights(context.Background(), model.ExamInfo{Subject: "Mathematics"}, sum, Missed(records))
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if got.Headline != "Solid algebra start" {
		t.Errorf("headline = %q", got.Headline)
	}
	if len(got.FocusTopics) != 1 || got.FocusTopics[0] != "Geometry" {
		t.Errorf("focus topics = %v", got.FocusTopics)
	}

	for _, want := range []string{"SUBJECT: Mathematics", "2 of 6 points (33.3%)", "question 2", "question 3", "marked -"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt should contain %q\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "question 1 ") {
		t.Error("prompt should not list correctly answered questions as missed")
	}
}

func TestInsightsBadJSON(t *testing.T) {
	sum, records := exampleSummary(t)
	var prompt string
	srv := fakeChatServer(t, "not json", &prompt)

	c := New(srv.URL+"/v1", "k", "m", "detailed")
	if _, err := c.Insights(context.Background(), model.ExamInfo{}, sum, Missed(records)); err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(prompt, "INSTRUCTIONS:") {
		t.Error("detailed variant should include instructions")
	}
}

func TestInsightsEmptyLists(t *testing.T) {
	sum, _ := exampleSummary(t)
	var prompt string
	srv := fakeChatServer(t, `{"headline": "ok"}`, &prompt)

	got, err := New(srv.URL+"/v1", "k", "m", "unknown-variant").Insights(context.Background(), model.ExamInfo{}, sum, nil)
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if got.Strengths == nil || got.FocusTopics == nil {
		t.Error("lists should be empty, not nil")
	}
	if !strings.Contains(prompt, "- none") {
		t.Error("prompt should say no questions were missed")
	}
}

func TestMissed(t *testing.T) {
	_, records := exampleSummary(t)
	missed := Missed(records)
	if len(missed) != 2 {
		t.Fatalf("expected 2 missed, got %d", len(missed))
	}
	if missed[0].QuestionNumber != 2 || missed[1].QuestionNumber != 3 {
		t.Errorf("unexpected missed questions: %+v", missed)
	}
}
