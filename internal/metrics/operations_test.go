package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewOperations_SharesCollectorsOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewOperations(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewOperations(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	first.Observe("search", time.Millisecond, nil)
	second.Observe("search", time.Millisecond, nil)
	second.Observe("search", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(first.total.WithLabelValues("search", "ok")); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(first.total.WithLabelValues("search", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestNewOperations_IncompatibleCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	clash := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shelf",
		Subsystem: "sdk",
		Name:      "operations_total",
		Help:      "Total SDK operations by type and status.",
	})
	reg.MustRegister(clash)

	if _, err := NewOperations(reg); err == nil {
		t.Fatal("expected error for clashing collector")
	}
}

func TestOperations_NilIsNoop(t *testing.T) {
	var o *Operations
	o.Observe("load", time.Second, nil)
}
