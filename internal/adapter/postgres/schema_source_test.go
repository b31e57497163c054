package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sqlverdict/sqlverdict/internal/adapter/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testSchema = `
	CREATE TABLE customers (
		customer_id SERIAL PRIMARY KEY,
		first_name  TEXT NOT NULL,
		last_name   TEXT NOT NULL,
		email       TEXT UNIQUE
	);

	CREATE TABLE orders (
		order_id    SERIAL PRIMARY KEY,
		customer_id INTEGER NOT NULL REFERENCES customers(customer_id),
		order_date  DATE NOT NULL,
		total       NUMERIC(10,2) NOT NULL DEFAULT 0
	);

	CREATE VIEW customer_orders AS
		SELECT c.customer_id, c.first_name, o.order_id, o.total
		FROM customers c JOIN orders o ON c.customer_id = o.customer_id;

	CREATE SCHEMA reporting;
	CREATE TABLE reporting.daily_totals (
		day   DATE PRIMARY KEY,
		total NUMERIC(12,2) NOT NULL
	);
`

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, testSchema)
	require.NoError(t, err)

	return pool
}

func TestSnapshot_AllSchemas(t *testing.T) {
	pool := setupTestDB(t)
	source := postgres.NewSchemaSource(pool, nil)

	mapping, err := source.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"*", "customer_id", "first_name", "last_name", "email"}, mapping["customers"])
	assert.Equal(t, []string{"*", "order_id", "customer_id", "order_date", "total"}, mapping["orders"])
	// Views are included.
	assert.Contains(t, mapping, "customer_orders")
	// Non-default schemas too when no filter is set.
	assert.Contains(t, mapping, "daily_totals")
}

func TestSnapshot_SchemaFilter(t *testing.T) {
	pool := setupTestDB(t)
	source := postgres.NewSchemaSource(pool, []string{"public"})

	mapping, err := source.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Contains(t, mapping, "customers")
	assert.NotContains(t, mapping, "daily_totals")
}
