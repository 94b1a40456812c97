package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterSearchMetrics_Idempotent(t *testing.T) {
	RegisterSearchMetrics()
	RegisterSearchMetrics() // second call must not panic on duplicate registration

	if !searchMetricsRegistered {
		t.Fatal("expected metrics to be marked registered")
	}
}

func TestFieldFallbacks_Labels(t *testing.T) {
	before := testutil.ToFloat64(IngestFieldFallbacksTotal.WithLabelValues("price"))
	IngestFieldFallbacksTotal.WithLabelValues("price").Inc()
	after := testutil.ToFloat64(IngestFieldFallbacksTotal.WithLabelValues("price"))

	if after-before != 1 {
		t.Errorf("expected price fallbacks to grow by 1, got %f", after-before)
	}
}
