package logctx

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/stretchr/testify/assert"
)

func TestFromOr_FallsBackWhenMissing(t *testing.T) {
	fallback := observability.NopLogger()
	assert.Equal(t, fallback, FromOr(context.Background(), fallback))
	assert.Nil(t, From(context.Background()))
}

func TestWith_RoundTrip(t *testing.T) {
	logger := observability.NopLogger().With(observability.F("k", "v"))
	ctx := With(context.Background(), logger)
	assert.Equal(t, logger, From(ctx))
	assert.Equal(t, logger, FromOr(ctx, nil))
}

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationID(ctx))

	ctx = WithCorrelationID(ctx, "cycle-1")
	assert.Equal(t, "cycle-1", CorrelationID(ctx))

	// empty ids never overwrite an existing one
	assert.Equal(t, "cycle-1", CorrelationID(WithCorrelationID(ctx, "")))
}
