package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_RegistersOnProvidedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("closet_cast_test", reg)

	c.RecordIngestionPass("success")
	c.RecordIngestionPass("success")
	c.RecordIngestionPass("empty")
	c.RecordFeedError("timeout")

	if got := testutil.ToFloat64(c.IngestionPassesTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("success passes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.FeedErrorsTotal.WithLabelValues("timeout")); got != 1 {
		t.Errorf("timeout errors = %v, want 1", got)
	}

	// A second collector on a fresh registry must not collide with the first.
	NewCollector("closet_cast_test", prometheus.NewRegistry())
}

func TestCollector_UpdateDBConnectionPool(t *testing.T) {
	c := NewCollector("closet_cast_test", prometheus.NewRegistry())
	c.UpdateDBConnectionPool(3, 2, 5)

	if got := testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")); got != 5 {
		t.Errorf("total = %v, want 5", got)
	}
	if got := testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("in_use")); got != 3 {
		t.Errorf("in_use = %v, want 3", got)
	}
}
