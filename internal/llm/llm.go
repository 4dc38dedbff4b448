package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pavelanni/omrgrader/internal/grading"
	"github.com/pavelanni/omrgrader/internal/llm/prompts"
	"github.com/pavelanni/omrgrader/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Insights is the LLM's study feedback for one graded exam.
type Insights struct {
	Headline    string   `json:"headline"`
	Strengths   []string `json:"strengths"`
	FocusTopics []string `json:"focus_topics"`
	Advice      string   `json:"advice"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
}

// New creates a new LLM client. An unknown variant falls back to the brief prompt.
func New(baseURL, apiKey, modelName, variant string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	v := prompts.VariantBrief
	if prompts.IsValidVariant(variant) {
		v = prompts.Variant(variant)
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: v,
	}
}

// Ping checks that the API is reachable and the configured model is listed.
func (c *Client) Ping(ctx context.Context) error {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range list.Models {
		if m.ID == c.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not offered by the API", c.model)
}

// Insights asks the LLM for study feedback on a graded exam. missed holds the
// incorrect and unanswered records.
func (c *Client) Insights(ctx context.Context, info model.ExamInfo, sum grading.Summary, missed []grading.AnswerRecord) (*Insights, error) {
	prompt, err := prompts.Build(c.variant, prompts.NewInsightsData(info, sum, missed))
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	var result Insights
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	if result.Strengths == nil {
		result.Strengths = []string{}
	}
	if result.FocusTopics == nil {
		result.FocusTopics = []string{}
	}
	return &result, nil
}

// Missed returns the records a candidate did not get right.
func Missed(records []grading.AnswerRecord) []grading.AnswerRecord {
	out := make([]grading.AnswerRecord, 0, len(records))
	for _, r := range records {
		if !r.IsCorrect {
			out = append(out, r)
		}
	}
	return out
}
