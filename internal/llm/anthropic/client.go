package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"tender-backend/internal/llm"
	"tender-backend/internal/shared/telemetry"
)

const (
	defaultModel     = "claude-3-haiku-20240307"
	defaultMaxTokens = 1000
)

// Client evaluates checklist items via the Anthropic Messages API.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New constructs a Client. model is the default used when the evaluate input
// does not specify one.
func New(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: defaultMaxTokens,
	}, nil
}

// Evaluate sends one item and document to the model and parses the structured
// response. All failures are wrapped in *llm.EvaluationError.
func (c *Client) Evaluate(ctx context.Context, in llm.EvaluateInput) (llm.Evaluation, error) {
	model := in.Model
	if model == "" {
		model = c.model
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(llm.BuildUserPrompt(in))),
		},
		System: []anthropic.TextBlockParam{
			{Text: llm.SystemPrompt()},
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Evaluation{}, &llm.EvaluationError{Model: model, Err: err}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return llm.Evaluation{}, &llm.EvaluationError{Model: model, Err: errors.New("empty response")}
	}

	eval, err := llm.ParseEvaluation(text.String())
	if err != nil {
		telemetry.Warn("llm.parse_failed", map[string]any{
			"model":  model,
			"length": text.Len(),
		})
		return llm.Evaluation{}, &llm.EvaluationError{Model: model, Err: err}
	}
	return eval, nil
}

var _ llm.Client = (*Client)(nil)
