package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusObserver(t *testing.T) {
	obs := NewPrometheusObserver()

	before := testutil.ToFloat64(renewalCounter.WithLabelValues(RenewalShared))
	obs.RecordRenewal(RenewalShared)
	if got := testutil.ToFloat64(renewalCounter.WithLabelValues(RenewalShared)); got != before+1 {
		t.Errorf("renewals{shared} = %v, want %v", got, before+1)
	}

	obs.SetAuthenticated(true)
	if got := testutil.ToFloat64(authGauge); got != 1 {
		t.Errorf("authenticated gauge = %v, want 1", got)
	}
	obs.SetAuthenticated(false)
	if got := testutil.ToFloat64(authGauge); got != 0 {
		t.Errorf("authenticated gauge = %v, want 0", got)
	}

	// Just call methods to ensure no panic
	obs.ObserveRequest("GET", 200, 10*time.Millisecond)
	obs.ObserveRequest("GET", 0, time.Millisecond)
	obs.RecordReplay()
	obs.IncSubscribers()
	obs.DecSubscribers()
}
