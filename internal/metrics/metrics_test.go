package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveHTTP("/cart/:userId", "GET", "200", time.Millisecond)
	r.CheckoutOutcome("created")
	r.FinalizeOutcome("manual", "paid")
	r.OrderExpired()
	r.ObserveOrderValue(3000)

	empty := New(nil)
	empty.CheckoutOutcome("created")
}

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.CheckoutOutcome("created")
	r.CheckoutOutcome("created")
	r.CheckoutOutcome("")
	r.FinalizeOutcome("webhook", "paid")
	r.OrderExpired()
	r.ObserveHTTP("", "GET", "404", 5*time.Millisecond)

	if got := testutil.ToFloat64(r.checkouts.WithLabelValues("created")); got != 2 {
		t.Fatalf("expected 2 created checkouts, got %v", got)
	}
	if got := testutil.ToFloat64(r.checkouts.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty outcome normalized to unknown, got %v", got)
	}
	if got := testutil.ToFloat64(r.finalizes.WithLabelValues("webhook", "paid")); got != 1 {
		t.Fatalf("expected 1 webhook finalize, got %v", got)
	}
	if got := testutil.ToFloat64(r.expirations); got != 1 {
		t.Fatalf("expected 1 expiration, got %v", got)
	}
	if got := testutil.ToFloat64(r.httpRequests.WithLabelValues("unknown", "GET", "404")); got != 1 {
		t.Fatalf("expected 1 http request, got %v", got)
	}
}
