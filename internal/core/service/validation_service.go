package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sqlverdict/sqlverdict/internal/core/domain"
	"github.com/sqlverdict/sqlverdict/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type toolNameKey struct{}

// WithToolName returns a context carrying the MCP tool name for audit logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

func toolNameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(toolNameKey{}).(string); ok {
		return v
	}
	return ""
}

// ValidationService runs the validation pipeline for one query at a time:
// safety inspection first; only a safe query is structurally analyzed and
// checked against the schema. The pipeline is pure and deterministic per
// (query, schema) pair and safe to invoke concurrently.
type ValidationService struct {
	inspector *domain.SafetyInspector
	checker   *domain.ConformanceChecker
	analyzer  port.QueryAnalyzer
	auditor   port.VerdictAuditor
	logger    *slog.Logger
	tracer    trace.Tracer
	inst      port.Instrumentation
}

func NewValidationService(analyzer port.QueryAnalyzer, auditor port.VerdictAuditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *ValidationService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &ValidationService{
		inspector: domain.NewSafetyInspector(),
		checker:   domain.NewConformanceChecker(),
		analyzer:  analyzer,
		auditor:   auditor,
		logger:    logger,
		tracer:    tracer,
		inst:      inst,
	}
}

// Validate renders a verdict for query against schema. The mapping is only
// read; callers may share one mapping across concurrent calls.
func (s *ValidationService) Validate(ctx context.Context, query string, schema domain.SchemaMapping) domain.Verdict {
	ctx, span := s.tracer.Start(ctx, "ValidationService.Validate",
		trace.WithAttributes(
			attribute.String("db.operation.name", "validate"),
			attribute.String("db.statement", query),
		),
	)
	defer span.End()

	start := time.Now()
	verdict := s.validate(query, schema)
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordValidationDuration(ctx, float64(durationMS))

	s.auditor.Record(ctx, port.AuditEntry{
		Tool:       toolNameFromCtx(ctx),
		SQL:        query,
		Accepted:   verdict.Accepted,
		Category:   string(verdict.Category),
		Issues:     verdict.Issues,
		DurationMS: durationMS,
	})

	if verdict.Accepted {
		s.inst.IncrementAccepted(ctx)
		return verdict
	}

	s.inst.IncrementRejected(ctx)
	s.logger.WarnContext(ctx, "query rejected",
		slog.String("db.statement", query),
		slog.String("category", string(verdict.Category)),
		slog.Int("issue_count", len(verdict.Issues)),
	)
	span.SetStatus(codes.Error, string(verdict.Category))
	span.SetAttributes(attribute.Int("validation.issues", len(verdict.Issues)))

	return verdict
}

// ValidateAgainstDDL extracts a schema mapping from ddl and validates query
// against it.
func (s *ValidationService) ValidateAgainstDDL(ctx context.Context, query, ddl string) domain.Verdict {
	return s.Validate(ctx, query, domain.ExtractSchema(ddl))
}

func (s *ValidationService) validate(query string, schema domain.SchemaMapping) domain.Verdict {
	if issues := s.inspector.Inspect(query); len(issues) > 0 {
		return domain.Reject(query, domain.CategorySafety, issues)
	}

	facts, err := s.analyzeSafely(query)
	if err != nil {
		if errors.Is(err, domain.ErrParseFailed) {
			return domain.Reject(query, domain.CategoryParse, []string{
				fmt.Sprintf("Failed to parse the query structure. Check syntax. (Details: %v)", err),
			})
		}
		return domain.Reject(query, domain.CategoryUnexpected, []string{
			fmt.Sprintf("An unexpected issue occurred during validation. (Details: %v)", err),
		})
	}

	if ok, issues := s.checker.Check(facts, schema); !ok {
		return domain.Reject(query, domain.CategorySchema, issues)
	}

	return domain.Accept(query)
}

// analyzeSafely converts analyzer panics into errors so a single bad query
// can never abort the process.
func (s *ValidationService) analyzeSafely(query string) (facts *domain.QueryFacts, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()
	return s.analyzer.Analyze(query)
}
