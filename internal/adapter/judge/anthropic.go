package judge

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
)

// AnthropicJudge scores prompts with an Anthropic model over the Messages
// API. One judge instance is safe for concurrent use.
type AnthropicJudge struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func NewAnthropicJudge(apiKey, model string) *AnthropicJudge {
	return &AnthropicJudge{
		client:    anthropic.NewClient(apiKey),
		model:     model,
		maxTokens: 1024,
	}
}

func (j *AnthropicJudge) Model() string {
	return j.model
}

func (j *AnthropicJudge) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := j.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(j.model),
		MaxTokens: j.maxTokens,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					{Type: "text", Text: &prompt},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic completion: no text content in response")
}
