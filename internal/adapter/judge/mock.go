package judge

import (
	"context"
	"strings"
	"sync"
)

// MockJudge is a deterministic in-process judge for tests and offline runs.
// Without a CompleteFunc it returns a canned positive evaluation for
// well-formed G-Eval prompts and a neutral one for anything else.
type MockJudge struct {
	CompleteFunc func(ctx context.Context, prompt string) (string, error)
	ModelID      string

	mu            sync.Mutex
	CompleteCalls []string
}

func (m *MockJudge) Model() string {
	if m.ModelID != "" {
		return m.ModelID
	}
	return "example-judge-llm"
}

func (m *MockJudge) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.CompleteCalls = append(m.CompleteCalls, prompt)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}

	if strings.Contains(prompt, "TASK INTRODUCTION:") &&
		strings.Contains(prompt, "EVALUATION CRITERIA:") &&
		strings.Contains(prompt, "LLM OUTPUT TO EVALUATE:") {
		return `{"score": 8, "reason": "G-Eval Mock Reasoning: Syntactic: OK. TableSel: OK. ColSel: OK. Filter: OK. Join: N/A. Group/Agg: N/A. Semantic: Good. Efficiency: OK. Overall positive."}`, nil
	}
	return `{"score": 0.5, "reason": "Neutral assessment from judge."}`, nil
}
