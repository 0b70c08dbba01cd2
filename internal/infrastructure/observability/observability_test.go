package observability

import (
	"testing"

	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/stretchr/testify/assert"
)

func TestNew_DefaultsToNop(t *testing.T) {
	p := New(nil, nil, nil, nil)
	assert.NotNil(t, p.Tracer())
	assert.NotNil(t, p.Logger())
	assert.NotPanics(t, func() {
		p.Metrics().Counter(observability.MUsecaseRequests).Add(1)
		p.Metrics().Histogram("unknown").Observe(1)
	})
}

func TestInstruments_RegistersEveryKey(t *testing.T) {
	counters, histograms := Instruments(prometrics.New("warehouse", "test"))
	p := New(nil, nil, counters, histograms)

	for _, k := range []observability.MetricKey{
		observability.MUsecaseRequests,
		observability.MHTTPRequests,
		observability.MExternalRequests,
		observability.MReplenishments,
	} {
		assert.Contains(t, counters, k)
		assert.Same(t, counters[k], p.Metrics().Counter(k))
	}
	for _, k := range []observability.MetricKey{
		observability.MUsecaseDuration,
		observability.MHTTPRequestDuration,
		observability.MExternalRequestDuration,
	} {
		assert.Contains(t, histograms, k)
	}

	assert.NotPanics(t, func() {
		p.Metrics().Counter(observability.MReplenishments).Add(1, observability.L("product", "desks"))
	})
}
