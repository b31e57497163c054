package port

import "context"

// Judge is an opaque LLM scoring capability: it receives a fully formatted
// evaluation prompt and returns the raw model response, expected to contain
// a JSON object with "score" and "reason" fields.
type Judge interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}
