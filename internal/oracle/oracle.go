// Package oracle is the client for the external content-generation and
// grading service, spoken to over an OpenAI-compatible chat API. All
// responses are structured JSON validated against the domain shapes; a
// response that fails validation is reported the same way as a
// transport failure.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	openai "github.com/sashabaranov/go-openai"

	"github.com/mrab/sscprep/internal/model"
	"github.com/mrab/sscprep/internal/oracle/prompts"
)

// ErrUnavailable marks a failed or malformed oracle exchange. The
// in-progress operation is aborted and prior state left untouched;
// retries are user-initiated.
var ErrUnavailable = errors.New("oracle unavailable")

// Board exam composition: a scaled-down full-syllabus mock.
const (
	boardMCQCount = 15
	boardCQCount  = 2
)

// Client talks to an OpenAI-compatible generation/grading endpoint.
type Client struct {
	api      *openai.Client
	model    string
	validate *validator.Validate
}

// New creates an oracle client. baseURL may be empty for the default
// OpenAI endpoint.
func New(baseURL, apiKey, modelName string) (*Client, error) {
	if err := prompts.Load(); err != nil {
		return nil, err
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:      openai.NewClientWithConfig(config),
		model:    modelName,
		validate: validator.New(),
	}, nil
}

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, temperature float32, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

type mcqBatch struct {
	Questions []model.MCQQuestion `json:"questions"`
}

// GenerateQuestions fetches count board-style MCQs for one chapter.
// An empty slice with nil error means the oracle succeeded but had
// nothing usable; callers decide how to surface that.
func (c *Client) GenerateQuestions(ctx context.Context, subject model.Subject, chapter string, count int, lang model.Language) ([]model.MCQQuestion, error) {
	prompt, err := prompts.BuildGenerateMCQs(subject, chapter, count, lang)
	if err != nil {
		return nil, err
	}

	raw, err := c.complete(ctx, 0.7, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("oracle MCQ response", "raw", raw)

	var batch mcqBatch
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		return nil, fmt.Errorf("%w: parse MCQ response: %v", ErrUnavailable, err)
	}
	for i := range batch.Questions {
		q := &batch.Questions[i]
		if err := c.validate.Struct(q); err != nil {
			return nil, fmt.Errorf("%w: MCQ %d shape: %v", ErrUnavailable, i, err)
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return batch.Questions, nil
}

// GenerateCreativeQuestion fetches one CQ for a chapter. Returns
// (nil, nil) when the oracle succeeded but produced no question.
func (c *Client) GenerateCreativeQuestion(ctx context.Context, subject model.Subject, chapter string, lang model.Language) (*model.CQQuestion, error) {
	prompt, err := prompts.BuildGenerateCQ(subject, chapter, lang)
	if err != nil {
		return nil, err
	}

	raw, err := c.complete(ctx, 0.7, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("oracle CQ response", "raw", raw)

	if trimmed := strings.TrimSpace(raw); trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return nil, nil
	}

	var cq model.CQQuestion
	if err := json.Unmarshal([]byte(raw), &cq); err != nil {
		return nil, fmt.Errorf("%w: parse CQ response: %v", ErrUnavailable, err)
	}
	if err := c.validate.Struct(&cq); err != nil {
		return nil, fmt.Errorf("%w: CQ shape: %v", ErrUnavailable, err)
	}
	if err := cq.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &cq, nil
}

type gradeBatch struct {
	Results []model.GradingResult `json:"results"`
}

// GradeCreativeAnswer submits the stem, the four part prompts, and the
// learner's four part answers (text and/or inline image) in a single
// request and returns exactly four results in part order a, b, c, d.
func (c *Client) GradeCreativeAnswer(ctx context.Context, q *model.CQQuestion, ans model.CQAnswer, lang model.Language) ([]model.GradingResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	prompt, err := prompts.BuildGradeCQ(q, lang)
	if err != nil {
		return nil, err
	}

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: prompt},
	}
	for _, k := range model.PartKeys {
		pa := ans.Part(k)
		text := pa.Text
		if text == "" {
			text = "[See attached image if available]"
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: fmt.Sprintf("Student's Answer for Part %s: %s", strings.ToUpper(string(k)), text),
		})
		if pa.Image != "" {
			if _, _, err := model.DecodeDataURI(pa.Image); err != nil {
				return nil, fmt.Errorf("part %s image: %w", k, err)
			}
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: pa.Image},
			})
		}
	}

	raw, err := c.complete(ctx, 0.1, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, MultiContent: parts},
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("oracle grading response", "raw", raw)

	var batch gradeBatch
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		return nil, fmt.Errorf("%w: parse grading response: %v", ErrUnavailable, err)
	}
	if len(batch.Results) != len(model.PartKeys) {
		return nil, fmt.Errorf("%w: expected %d grading results, got %d", ErrUnavailable, len(model.PartKeys), len(batch.Results))
	}
	for i := range batch.Results {
		r := &batch.Results[i]
		if err := c.validate.Struct(r); err != nil {
			return nil, fmt.Errorf("%w: grading result %d shape: %v", ErrUnavailable, i, err)
		}
		if r.ObtainedMarks > r.MaxMarks {
			return nil, fmt.Errorf("%w: grading result %d obtained %g exceeds max %g", ErrUnavailable, i, r.ObtainedMarks, r.MaxMarks)
		}
		// Results are keyed to the question; part identity is positional.
		r.QuestionID = q.ID
	}
	return batch.Results, nil
}
