package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/sqlverdict/sqlverdict"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	VerdictAccepted    metric.Int64Counter
	VerdictRejected    metric.Int64Counter
	ValidationDuration metric.Float64Histogram
	ToolDuration       metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
// Returns nil-safe instruments: if creation fails, noop instruments are used.
func NewInstruments() *Instruments {
	meter := otel.Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	meter := noop.NewMeterProvider().Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	accepted, _ := meter.Int64Counter("sqlverdict.verdict.accepted",
		metric.WithDescription("Total number of queries that passed validation"),
	)
	rejected, _ := meter.Int64Counter("sqlverdict.verdict.rejected",
		metric.WithDescription("Total number of queries rejected by validation"),
	)
	validationDuration, _ := meter.Float64Histogram("sqlverdict.validation.duration",
		metric.WithDescription("Validation pipeline duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	toolDuration, _ := meter.Float64Histogram("sqlverdict.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		VerdictAccepted:    accepted,
		VerdictRejected:    rejected,
		ValidationDuration: validationDuration,
		ToolDuration:       toolDuration,
	}
}

func (i *Instruments) RecordValidationDuration(ctx context.Context, ms float64) {
	i.ValidationDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementAccepted(ctx context.Context) {
	i.VerdictAccepted.Add(ctx, 1)
}

func (i *Instruments) IncrementRejected(ctx context.Context) {
	i.VerdictRejected.Add(ctx, 1)
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
