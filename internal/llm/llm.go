package llm

import (
	"context"
	"fmt"
)

// ItemKind mirrors the checklist item kinds without importing the checklists
// package.
type ItemKind string

const (
	KindQuestion  ItemKind = "question"
	KindCondition ItemKind = "condition"
)

// EvaluateInput carries one checklist item and the document text to judge it
// against.
type EvaluateInput struct {
	ItemText     string
	ItemKind     ItemKind
	DocumentText string
	Model        string
}

// Evaluation is the structured outcome of judging one item against one
// document. Verdict is nil for questions and for conditions the model could
// not decide.
type Evaluation struct {
	Answer     string
	Verdict    *bool
	Confidence *float64
	Evidence   string
	Pages      []int
}

// EvaluationError marks a model call or response-parse failure for a single
// item. The surrounding unit keeps processing its remaining items.
type EvaluationError struct {
	Model string
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate with %s: %v", e.Model, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Client evaluates checklist items against document text.
type Client interface {
	Evaluate(ctx context.Context, in EvaluateInput) (Evaluation, error)
}

// PlaceholderClient stands in when no API key is configured. Every call
// fails, which error-marks the item instead of crashing the worker.
type PlaceholderClient struct{}

func (PlaceholderClient) Evaluate(ctx context.Context, in EvaluateInput) (Evaluation, error) {
	_ = ctx
	return Evaluation{}, &EvaluationError{Model: in.Model, Err: fmt.Errorf("llm client not configured")}
}
