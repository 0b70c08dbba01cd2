package workerpresentation

import (
	"context"

	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability/logctx"
	"github.com/google/uuid"
)

// WithEventContext injects an event-scoped logger for background executions.
// Dynamic fields only: event_id (generated if empty), trace_id/span_id of the
// span on ctx, the correlation id when one travelled with the event, plus
// caller-provided low-cardinality attributes (e.g. "event", "sink").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, len(attrs)+4)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))
	fields = append(fields, observability.TraceFields(ctx)...)
	if corr := logctx.CorrelationID(ctx); corr != "" {
		fields = append(fields, observability.F("correlation_id", corr))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}
