package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sqlverdict/sqlverdict/internal/core/domain"
	"github.com/sqlverdict/sqlverdict/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "sqlverdict"

// Tool names
const (
	ToolValidateQuery = "validate_query"
	ToolExtractSchema = "extract_schema"
	ToolEvaluateQuery = "evaluate_query"
)

// Tool descriptions
const (
	descValidateQuery = "Validate a SQL query for safety and schema conformance without executing it. " +
		"The query must be a single SELECT statement (or WITH...SELECT); every table and column it " +
		"references must exist in the schema. On success the query is echoed back unchanged; " +
		"on failure the response lists every detected issue. " +
		"Provide CREATE TABLE statements in 'ddl' to validate against an ad-hoc schema, " +
		"or omit it to use the server's configured schema."

	descValidateQuerySQL = "SQL query to validate (SELECT statements only)"
	descValidateQueryDDL = "CREATE TABLE/VIEW statements defining the schema to validate against (optional)"

	descExtractSchema = "Extract a table-to-columns mapping from SQL DDL. " +
		"Accepts CREATE TABLE and CREATE VIEW statements and returns a JSON object keyed by table name, " +
		"each with a '*' entry followed by the column names. Malformed statements are skipped."

	descExtractSchemaDDL = "CREATE TABLE/VIEW statements to extract the schema from"

	descEvaluateQuery = "Score a predicted SQL query against a natural language question and a DDL schema. " +
		"Returns three metrics: sql_safety_score and sql_column_hallucination are binary penalties " +
		"(0 is clean, 1 is a violation), and sql_relevancy_score is an LLM-judged score on [0,1] " +
		"of how well the query answers the question."

	descEvaluateQueryQuestion = "The natural language question the SQL is supposed to answer"
	descEvaluateQuerySQL      = "The predicted SQL query to evaluate"
	descEvaluateQueryDDL      = "CREATE TABLE statements defining the schema"
)

// Deps bundles the services the MCP tools dispatch to. Metrics and Schema
// are optional: without Metrics the evaluate_query tool is not registered,
// and without Schema the validate_query tool requires an explicit ddl.
type Deps struct {
	Validation *service.ValidationService
	Metrics    *service.MetricsService
	Schema     domain.SchemaMapping
}

func RegisterTools(s *server.MCPServer, deps Deps) {
	s.AddTool(
		mcp.NewTool(ToolValidateQuery,
			mcp.WithDescription(descValidateQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descValidateQuerySQL),
			),
			mcp.WithString("ddl",
				mcp.Description(descValidateQueryDDL),
			),
		),
		validateQueryHandler(deps),
	)

	s.AddTool(
		mcp.NewTool(ToolExtractSchema,
			mcp.WithDescription(descExtractSchema),
			mcp.WithString("ddl",
				mcp.Required(),
				mcp.Description(descExtractSchemaDDL),
			),
		),
		extractSchemaHandler(),
	)

	if deps.Metrics != nil {
		s.AddTool(
			mcp.NewTool(ToolEvaluateQuery,
				mcp.WithDescription(descEvaluateQuery),
				mcp.WithString("question",
					mcp.Required(),
					mcp.Description(descEvaluateQueryQuestion),
				),
				mcp.WithString("sql",
					mcp.Required(),
					mcp.Description(descEvaluateQuerySQL),
				),
				mcp.WithString("ddl",
					mcp.Required(),
					mcp.Description(descEvaluateQueryDDL),
				),
			),
			evaluateQueryHandler(deps.Metrics),
		)
	}
}

func validateQueryHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		schema := deps.Schema
		if ddl, _ := request.GetArguments()["ddl"].(string); ddl != "" {
			schema = domain.ExtractSchema(ddl)
		}
		if schema == nil {
			return mcp.NewToolResultError("no schema configured; provide ddl"), nil
		}

		ctx = service.WithToolName(ctx, ToolValidateQuery)
		verdict := deps.Validation.Validate(ctx, sql, schema)

		if !verdict.Accepted {
			return mcp.NewToolResultError(verdict.String()), nil
		}
		return mcp.NewToolResultText(verdict.String()), nil
	}
}

func extractSchemaHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ddl, ok := request.GetArguments()["ddl"].(string)
		if !ok || ddl == "" {
			return mcp.NewToolResultError("ddl is required"), nil
		}

		mapping := domain.ExtractSchema(ddl)

		data, err := json.Marshal(mapping)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func evaluateQueryHandler(metrics *service.MetricsService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, ok := request.GetArguments()["question"].(string)
		if !ok || question == "" {
			return mcp.NewToolResultError("question is required"), nil
		}
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}
		ddl, ok := request.GetArguments()["ddl"].(string)
		if !ok || ddl == "" {
			return mcp.NewToolResultError("ddl is required"), nil
		}

		ctx = service.WithToolName(ctx, ToolEvaluateQuery)
		results := metrics.Evaluate(ctx, question, sql, ddl)

		data, err := json.Marshal(results)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}
