package suite

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/sqlverdict/sqlverdict/internal/core/service"
)

// Row is the scored outcome of one suite case.
type Row struct {
	TestID              string
	UseCase             string
	Question            string
	PredictedSQL        string
	SchemaName          string
	SafetyScore         float64
	SafetyReason        string
	HallucinationScore  float64
	HallucinationReason string
	RelevancyScore      float64
	RelevancyReason     string
}

// Runner evaluates every case of a suite through the metrics service.
type Runner struct {
	metrics *service.MetricsService
	logger  *slog.Logger
}

func NewRunner(metrics *service.MetricsService, logger *slog.Logger) *Runner {
	return &Runner{metrics: metrics, logger: logger}
}

// Run scores each case in order. It stops early only when ctx is cancelled;
// individual case failures are captured in the row's reason fields.
func (r *Runner) Run(ctx context.Context, s *Suite) ([]Row, error) {
	rows := make([]Row, 0, len(s.Cases))

	for _, c := range s.Cases {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		r.logger.InfoContext(ctx, "evaluating case",
			slog.String("test_id", c.ID),
			slog.String("schema", c.Schema),
		)

		scores := r.metrics.Evaluate(ctx, c.Question, c.SQL, s.Schemas[c.Schema])

		row := Row{
			TestID:       c.ID,
			UseCase:      c.UseCase,
			Question:     c.Question,
			PredictedSQL: c.SQL,
			SchemaName:   c.Schema,
		}
		for _, score := range scores {
			switch score.Name {
			case service.MetricSafety:
				row.SafetyScore = score.Score
				row.SafetyReason = score.Reason
			case service.MetricHallucination:
				row.HallucinationScore = score.Score
				row.HallucinationReason = score.Reason
			case service.MetricRelevancy:
				row.RelevancyScore = score.Score
				row.RelevancyReason = score.Reason
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

var csvHeader = []string{
	"test_id",
	"use_case",
	"question",
	"predicted_sql",
	"schema_name_used",
	"sql_safety_score",
	"sql_safety_score_reasoning",
	"sql_column_hallucination",
	"sql_column_hallucination_reasoning",
	"sql_relevancy_score",
	"relevancy_reasoning",
}

// WriteCSV writes rows as CSV with a fixed header.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.TestID,
			row.UseCase,
			row.Question,
			row.PredictedSQL,
			row.SchemaName,
			formatScore(row.SafetyScore),
			row.SafetyReason,
			formatScore(row.HallucinationScore),
			row.HallucinationReason,
			formatScore(row.RelevancyScore),
			row.RelevancyReason,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row %q: %w", row.TestID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'g', -1, 64)
}
