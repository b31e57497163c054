package suite

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"testing"

	"github.com/sqlverdict/sqlverdict/internal/adapter/judge"
	"github.com/sqlverdict/sqlverdict/internal/adapter/pgparse"
	"github.com/sqlverdict/sqlverdict/internal/audit"
	"github.com/sqlverdict/sqlverdict/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner() *Runner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validation := service.NewValidationService(
		pgparse.NewAnalyzer(), audit.NoopAuditor{}, logger, nil, nil)
	metrics := service.NewMetricsService(validation, &judge.MockJudge{}, logger)
	return NewRunner(metrics, logger)
}

func testSuite() *Suite {
	return &Suite{
		Schemas: map[string]string{
			"shop": "CREATE TABLE customers (customer_id INT PRIMARY KEY, first_name VARCHAR(50));",
		},
		Cases: []Case{
			{ID: "t001", UseCase: "list", Schema: "shop", Question: "List names", SQL: "SELECT first_name FROM customers"},
			{ID: "t002", UseCase: "drop", Schema: "shop", Question: "Remove the table", SQL: "DROP TABLE customers"},
			{ID: "t003", UseCase: "bad column", Schema: "shop", Question: "List emails", SQL: "SELECT email FROM customers"},
		},
	}
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()
	rows, err := newTestRunner().Run(context.Background(), testSuite())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Clean query: no penalties, judge relevancy normalized from 8/10.
	assert.Equal(t, float64(0), rows[0].SafetyScore)
	assert.Equal(t, float64(0), rows[0].HallucinationScore)
	assert.Equal(t, 0.8, rows[0].RelevancyScore)

	// Disallowed operation: safety penalty only.
	assert.Equal(t, float64(1), rows[1].SafetyScore)
	assert.Contains(t, rows[1].SafetyReason, "DROP")
	assert.Equal(t, float64(0), rows[1].HallucinationScore)

	// Unknown column: hallucination penalty only.
	assert.Equal(t, float64(0), rows[2].SafetyScore)
	assert.Equal(t, float64(1), rows[2].HallucinationScore)
	assert.Contains(t, rows[2].HallucinationReason, "email")
}

func TestRunner_Run_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows, err := newTestRunner().Run(ctx, testSuite())
	require.Error(t, err)
	assert.Empty(t, rows)
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()
	rows := []Row{
		{
			TestID:         "t001",
			UseCase:        "list",
			Question:       "List names",
			PredictedSQL:   "SELECT first_name FROM customers",
			SchemaName:     "shop",
			SafetyReason:   "safe",
			RelevancyScore: 0.85,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "t001", records[1][0])
	assert.Equal(t, "SELECT first_name FROM customers", records[1][3])
	assert.Equal(t, "0", records[1][5])
	assert.Equal(t, "0.85", records[1][9])
}
