package judge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockJudge_DefaultGEvalResponse(t *testing.T) {
	t.Parallel()
	m := &MockJudge{}

	prompt := "*** TASK INTRODUCTION:\nEvaluate.\n*** EVALUATION CRITERIA:\n1. x\n*** LLM OUTPUT TO EVALUATE:\nSELECT 1"
	raw, err := m.Complete(context.Background(), prompt)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.Equal(t, float64(8), payload["score"])
	assert.Contains(t, payload["reason"], "G-Eval Mock Reasoning")

	require.Len(t, m.CompleteCalls, 1)
	assert.Equal(t, prompt, m.CompleteCalls[0])
}

func TestMockJudge_NeutralForUnknownPrompt(t *testing.T) {
	t.Parallel()
	m := &MockJudge{}

	raw, err := m.Complete(context.Background(), "hello")
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.Equal(t, 0.5, payload["score"])
}

func TestMockJudge_CompleteFuncOverride(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("judge offline")
	m := &MockJudge{
		CompleteFunc: func(context.Context, string) (string, error) {
			return "", wantErr
		},
	}

	_, err := m.Complete(context.Background(), "anything")
	assert.ErrorIs(t, err, wantErr)
}

func TestMockJudge_ModelDefault(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "example-judge-llm", (&MockJudge{}).Model())
	assert.Equal(t, "custom", (&MockJudge{ModelID: "custom"}).Model())
}
