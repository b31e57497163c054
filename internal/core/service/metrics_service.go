package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sqlverdict/sqlverdict/internal/core/domain"
	"github.com/sqlverdict/sqlverdict/internal/core/port"
)

// Metric names emitted by Evaluate, in output order.
const (
	MetricSafety        = "sql_safety_score"
	MetricHallucination = "sql_column_hallucination"
	MetricRelevancy     = "sql_relevancy_score"
)

// ScoreResult is one metric outcome for an evaluated query.
type ScoreResult struct {
	Name     string         `json:"name"`
	Score    float64        `json:"score"`
	Reason   string         `json:"reason"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

const gevalPromptTemplate = `*** TASK INTRODUCTION:
%s

*** EVALUATION CRITERIA:
%s

*** LLM OUTPUT TO EVALUATE:
%s

*** YOUR EVALUATION:
Provide your evaluation as a JSON object with two keys:
1. "score": A numeric score between 0.0 and 1.0 (where 1.0 is best) evaluating how well the LLM OUTPUT meets the EVALUATION CRITERIA for the TASK INTRODUCTION.
2. "reason": A brief explanation for your score.

JSON Response:
`

const gevalTaskIntroTemplate = `Evaluate the SQL query for accuracy, completeness, and adherence to standard practices, considering the User Question and Database Schema.
User Question: %q
Database Schema (CREATE TABLE statements):
%s`

// Note the 0-10 instruction: many judge models follow it instead of the
// 0.0-1.0 scale the outer prompt asks for, which is why scoreRelevancy
// normalizes.
const gevalCriteria = `
Please assess based on:
1.  **Syntactic Correctness**: Is the SQL syntax valid? (Assume basic programmatic checks already done; focus on complex syntax if any).
2.  **Table Selection**: Correct tables used as per schema and question?
3.  **Column Selection**: Appropriate and valid columns selected (semantic appropriateness)?
4.  **Filtering Accuracy**: WHERE clauses correct and complete?
5.  **Join Logic (if applicable)**: Joins correct?
6.  **Grouping/Aggregation (if applicable)**: Correct use of GROUP BY, aggregates?
7.  **Semantic Correctness & Completeness**: Does it fully address the user's question?
8.  **Efficiency (optional consideration)**: Any obvious inefficiencies?
Return a 0-10 score and detailed reasoning.
`

// MetricsService scores a predicted SQL query against a natural language
// question and DDL schema, producing the three-metric evaluation row used by
// test suites: safety, column hallucination and LLM-judged relevancy.
type MetricsService struct {
	validation *ValidationService
	judge      port.Judge
	logger     *slog.Logger
}

func NewMetricsService(validation *ValidationService, judge port.Judge, logger *slog.Logger) *MetricsService {
	return &MetricsService{
		validation: validation,
		judge:      judge,
		logger:     logger,
	}
}

// Evaluate returns exactly three ScoreResults, in order: safety,
// hallucination, relevancy. Safety and hallucination are binary penalty
// scores (0 is clean, 1 is a violation); relevancy is the judge's score on
// [0,1].
func (m *MetricsService) Evaluate(ctx context.Context, question, predictedSQL, ddl string) []ScoreResult {
	schema := domain.ExtractSchema(ddl)
	verdict := m.validation.Validate(ctx, predictedSQL, schema)

	safety := ScoreResult{Name: MetricSafety, Score: 0, Reason: "The query passed all safety checks, it is safe."}
	halluc := ScoreResult{Name: MetricHallucination, Score: 0, Reason: "All columns and tables in the query are defined in the schema, not hallucinated."}

	if !verdict.Accepted {
		if verdict.Category == domain.CategorySafety {
			safety.Score = 1
			safety.Reason = verdict.String()
		} else {
			halluc.Score = 1
			halluc.Reason = verdict.String()
		}
	}

	relevancy := m.scoreRelevancy(ctx, question, predictedSQL, ddl)

	return []ScoreResult{safety, halluc, relevancy}
}

func (m *MetricsService) scoreRelevancy(ctx context.Context, question, predictedSQL, ddl string) ScoreResult {
	result := ScoreResult{Name: MetricRelevancy}

	taskIntro := fmt.Sprintf(gevalTaskIntroTemplate, question, ddl)
	prompt := fmt.Sprintf(gevalPromptTemplate, taskIntro, gevalCriteria, predictedSQL)

	raw, err := m.judge.Complete(ctx, prompt)
	if err != nil {
		m.logger.ErrorContext(ctx, "judge call failed", slog.String("error", err.Error()))
		result.Reason = fmt.Sprintf("Error during evaluation: %v", err)
		return result
	}

	score, reason, err := parseJudgeResponse(raw)
	if err != nil {
		m.logger.WarnContext(ctx, "unparseable judge response", slog.String("error", err.Error()))
		result.Reason = fmt.Sprintf("Error during evaluation: %v", err)
		result.Metadata = map[string]any{"raw_response": raw}
		return result
	}

	result.Score = score
	result.Reason = reason

	// Some judge models answer on a 0-10 scale despite the prompt.
	if score > 1.0 && score <= 10.0 {
		result.Score = score / 10.0
		result.Reason = fmt.Sprintf("(Score normalized from %g/10) %s", score, reason)
		result.Metadata = map[string]any{"original_judge_score": score}
	}

	return result
}

// parseJudgeResponse extracts the first-to-last-brace JSON object from a raw
// model response and pulls out score and reason.
func parseJudgeResponse(raw string) (float64, string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return 0, "", fmt.Errorf("no JSON object in judge response")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return 0, "", fmt.Errorf("decode judge response: %w", err)
	}

	var score float64
	switch v := payload["score"].(type) {
	case float64:
		score = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, "", fmt.Errorf("non-numeric score %q in judge response", v)
		}
		score = parsed
	default:
		return 0, "", fmt.Errorf("missing score in judge response")
	}

	reason, _ := payload["reason"].(string)
	if reason == "" {
		reason = "No reasoning provided by judge."
	}

	return score, reason, nil
}
