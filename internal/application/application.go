package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	SpanPrefix = "UC."

	OutcomeSuccess = "success"
	OutcomeError   = "error"
	StatusOK       = "OK"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// Meter holds the instruments a use case records into. Build it once in the
// use case constructor; never inside Execute.
type Meter struct {
	useCase string
	tracer  observability.Tracer
	log     observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewMeter(tel observability.Observability, service, useCase string) *Meter {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Meter{
		useCase:      useCase,
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
	}
}

func (m *Meter) Logger() observability.Logger { return m.log }

// Run tracks one execution. Callers set the outcome as they go and call End
// exactly once, usually in a defer.
type Run struct {
	meter   *Meter
	ctx     context.Context
	span    trace.Span
	logger  observability.Logger
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

// Start opens the use case span and binds a logger tagged with use_case.
// The returned context carries both.
func (m *Meter) Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	attrs = append(attrs, attribute.String("use_case", m.useCase))
	ctx, span := m.tracer.Start(ctx, SpanPrefix+spanName, attrs...)

	logger := logctx.FromOr(ctx, m.log).With(observability.F("use_case", m.useCase))
	ctx = logctx.With(ctx, logger)

	return ctx, &Run{
		meter:   m,
		ctx:     ctx,
		span:    span,
		logger:  logger,
		start:   time.Now(),
		outcome: OutcomeSuccess,
		status:  StatusOK,
	}
}

func (r *Run) Logger() observability.Logger { return r.logger }

func (r *Run) Span() trace.Span { return r.span }

// Fail marks the run as an error with the given status text.
func (r *Run) Fail(status string) {
	r.outcome, r.status = OutcomeError, status
}

// Set overrides outcome and status, for use cases with richer outcomes.
func (r *Run) Set(outcome, status string) {
	r.outcome, r.status = outcome, status
}

func (r *Run) Status() string { return r.status }

// Annotate adds fields to the closing use_case_done line.
func (r *Run) Annotate(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

// End closes the span, records RED metrics and writes use_case_done.
func (r *Run) End(err error) {
	lat := time.Since(r.start).Seconds()

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	r.meter.reqCounter.Add(1,
		observability.L("use_case", r.meter.useCase),
		observability.L("outcome", r.outcome),
	)
	r.meter.durHistogram.Observe(lat,
		observability.L("use_case", r.meter.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	fields = append(fields, observability.TraceFields(r.ctx)...)
	fields = append(fields, r.fields...)
	if err != nil {
		fields = append(fields, observability.Err(err))
	}

	r.logger.Info("use_case_done", fields...)
}
