package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlverdict/sqlverdict/internal/adapter/judge"
	"github.com/sqlverdict/sqlverdict/internal/adapter/mcp"
	"github.com/sqlverdict/sqlverdict/internal/adapter/pgparse"
	"github.com/sqlverdict/sqlverdict/internal/adapter/postgres"
	"github.com/sqlverdict/sqlverdict/internal/audit"
	"github.com/sqlverdict/sqlverdict/internal/config"
	"github.com/sqlverdict/sqlverdict/internal/core/domain"
	"github.com/sqlverdict/sqlverdict/internal/core/port"
	"github.com/sqlverdict/sqlverdict/internal/core/service"
	"github.com/sqlverdict/sqlverdict/internal/suite"
	"github.com/sqlverdict/sqlverdict/internal/telemetry"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses CLI args into config overrides. Pointer fields are only
// set for flags the user actually passed.
func parseFlags(args []string) (config.Overrides, error) {
	fs := flag.NewFlagSet("sqlverdict", flag.ContinueOnError)

	schemaFile := fs.String("schema-file", "", "path to a SQL file with CREATE TABLE statements")
	databaseURL := fs.String("database-url", "", "PostgreSQL connection URL to introspect the schema from")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	transport := fs.String("transport", "", `transport: "stdio" or "http"`)
	httpAddr := fs.String("http-addr", "", "listen address for HTTP transport")
	httpBearerToken := fs.String("http-bearer-token", "", "bearer token required for HTTP transport")
	judgeModel := fs.String("judge-model", "", "model name for the relevancy judge")
	otelEnabled := fs.Bool("otel", false, "enable OpenTelemetry tracing and metrics")
	suiteFile := fs.String("run", "", "path to a YAML test suite; runs it and exits")
	outputCSV := fs.String("output", "", "CSV output path for --run (default stdout)")
	auditLog := fs.String("audit-log", "", "path to an NDJSON audit log file")

	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}

	var o config.Overrides
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "schema-file":
			o.SchemaFile = schemaFile
		case "database-url":
			o.DatabaseURL = databaseURL
		case "log-level":
			o.LogLevel = logLevel
		case "transport":
			o.Transport = transport
		case "http-addr":
			o.HTTPAddr = httpAddr
		case "http-bearer-token":
			o.HTTPBearerToken = httpBearerToken
		case "judge-model":
			o.JudgeModel = judgeModel
		}
	})
	o.OTelEnabled = *otelEnabled
	o.SuiteFile = *suiteFile
	o.OutputCSV = *outputCSV
	o.AuditLog = *auditLog

	return o, nil
}

func run(args []string) error {
	overrides, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout is reserved for the MCP stdio transport
	// and for CSV output in suite mode.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var tracer trace.Tracer
	inst := telemetry.NoopInstruments()
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "sqlverdict", version)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Error("telemetry shutdown", slog.String("error", err.Error()))
			}
		}()
		tracer = otel.Tracer("sqlverdict")
		inst = telemetry.NewInstruments()
	} else {
		tracer = telemetry.NoopTracer()
	}

	var auditor port.VerdictAuditor = audit.NoopAuditor{}
	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer func() { _ = fa.Close() }()
		auditor = fa
	}

	validation := service.NewValidationService(pgparse.NewAnalyzer(), auditor, logger, tracer, inst)

	var scorer port.Judge
	if cfg.AnthropicAPIKey != "" {
		scorer = judge.NewAnthropicJudge(cfg.AnthropicAPIKey, cfg.JudgeModel)
	} else {
		logger.Warn("no ANTHROPIC_API_KEY set, relevancy scores come from a mock judge")
		scorer = &judge.MockJudge{ModelID: cfg.JudgeModel}
	}
	metrics := service.NewMetricsService(validation, scorer, logger)

	if cfg.SuiteFile != "" {
		return runSuite(ctx, cfg, metrics, logger)
	}
	return serve(ctx, cfg, validation, metrics, logger, tracer, inst)
}

// runSuite executes a YAML test suite and writes the scored rows as CSV.
func runSuite(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logger *slog.Logger) error {
	s, err := suite.LoadFromFile(cfg.SuiteFile)
	if err != nil {
		return fmt.Errorf("loading suite: %w", err)
	}

	logger.Info("running suite",
		slog.String("file", cfg.SuiteFile),
		slog.Int("cases", len(s.Cases)),
	)

	rows, err := suite.NewRunner(metrics, logger).Run(ctx, s)
	if err != nil {
		return fmt.Errorf("running suite: %w", err)
	}

	var out io.Writer = os.Stdout
	if cfg.OutputCSV != "" {
		f, err := os.Create(cfg.OutputCSV)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := suite.WriteCSV(out, rows); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}

	logger.Info("suite complete", slog.Int("rows", len(rows)))
	return nil
}

// serve loads the schema and runs the MCP server over the configured transport.
func serve(ctx context.Context, cfg *config.Config, validation *service.ValidationService, metrics *service.MetricsService, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) error {
	schema, err := loadSchema(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("schema loaded", slog.Int("tables", len(schema)))

	mcpServer := mcp.NewServer(version, mcp.Deps{
		Validation: validation,
		Metrics:    metrics,
		Schema:     schema,
	}, logger, tracer, inst)

	if cfg.Transport == "http" {
		return serveHTTP(ctx, cfg, mcpServer, logger)
	}

	logger.Info("serving MCP over stdio")
	stdioServer := mcpserver.NewStdioServer(mcpServer)
	if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("stdio server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// loadSchema builds the server schema from the DDL file or by introspecting
// the configured database.
func loadSchema(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.SchemaMapping, error) {
	if cfg.SchemaFile != "" {
		ddl, err := os.ReadFile(cfg.SchemaFile)
		if err != nil {
			return nil, fmt.Errorf("reading schema file: %w", err)
		}
		return domain.ExtractSchema(string(ddl)), nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	logger.Info("introspecting schema", slog.String("database_url", redactDSN(cfg.DatabaseURL)))

	schema, err := postgres.NewSchemaSource(pool, cfg.Schemas).Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspecting schema: %w", err)
	}
	return schema, nil
}

func serveHTTP(ctx context.Context, cfg *config.Config, mcpServer *mcpserver.MCPServer, logger *slog.Logger) error {
	httpServer := mcpserver.NewStreamableHTTPServer(mcpServer)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/mcp", bearerAuthMiddleware(httpServer, cfg.HTTPBearerToken))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           recoveryMiddleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving MCP over HTTP", slog.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// redactDSN masks the password component of a connection URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
