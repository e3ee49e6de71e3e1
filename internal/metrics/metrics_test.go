package metrics

import (
	"testing"

	"github.com/spaxe-dev/Tremor-Pro/internal/interpret"
	"github.com/spaxe-dev/Tremor-Pro/internal/ml"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// The adapters exist so ml and interpret stay free of a Prometheus
// dependency; they must keep satisfying the consumer-side interfaces.
var (
	_ ml.MetricsInterface        = (*MLAdapter)(nil)
	_ interpret.MetricsInterface = (*InterpretAdapter)(nil)
)

func TestMLAdapter(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	a := NewMLAdapter(m)

	a.ClassificationsInc()
	a.ClassificationsInc()
	a.ClassificationFailuresInc()
	a.FallbackUseInc()
	a.ClassifyLatencyObserve(0.002)
	a.ModelAgeSet(120)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Classifications))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassificationFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackUse))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.ModelAge))
}

func TestInterpretAdapter(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	a := NewInterpretAdapter(m)

	a.AnalyzeRequestsInc()
	a.AnalyzeRequestsInc()
	a.LLMFailuresInc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalyzeRequests))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMFailures))
}
