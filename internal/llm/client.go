package llm

import (
	"context"
	"errors"
)

// jsonInstruction is sent as the system message to providers that take one.
// The extraction prompt already shows the schema; this keeps prose out.
const jsonInstruction = "Reply with a single JSON object and nothing else."

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty model response")

// LLMClient sends a single prompt and returns the model's text answer.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
