package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"spool/internal/metrics"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(metrics.JobsFinishedTotal.WithLabelValues("done"))
	metrics.JobsFinishedTotal.WithLabelValues("done").Inc()
	after := testutil.ToFloat64(metrics.JobsFinishedTotal.WithLabelValues("done"))
	if after != before+1 {
		t.Fatalf("expected counter to advance by one, got %v -> %v", before, after)
	}
}
