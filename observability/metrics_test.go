package observability

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	pcnerrors "pcnchain/core/errors"
)

func TestObserveOperationLabelsKind(t *testing.T) {
	m := Network()
	before := testutil.ToFloat64(m.failures.WithLabelValues("channels", "test_open", "funds"))
	m.ObserveOperation("channels", "test_open", fmt.Errorf("wrap: %w", pcnerrors.ErrInsufficientFunds))
	after := testutil.ToFloat64(m.failures.WithLabelValues("channels", "test_open", "funds"))
	if after-before != 1 {
		t.Fatalf("expected funds failure to be counted, delta=%v", after-before)
	}

	m.ObserveOperation("channels", "test_open", errors.New("disk"))
	if got := testutil.ToFloat64(m.failures.WithLabelValues("channels", "test_open", "internal")); got < 1 {
		t.Fatalf("expected internal failure, got %v", got)
	}

	okBefore := testutil.ToFloat64(m.operations.WithLabelValues("channels", "test_open", "success"))
	m.ObserveOperation("channels", "test_open", nil)
	if got := testutil.ToFloat64(m.operations.WithLabelValues("channels", "test_open", "success")); got-okBefore != 1 {
		t.Fatalf("expected success increment")
	}
}

func TestGaugesAndPayouts(t *testing.T) {
	m := Network()
	m.SetOpenChannels(3)
	if got := testutil.ToFloat64(m.openChannels); got != 3 {
		t.Fatalf("open channels gauge = %v", got)
	}
	m.SetPendingHTLCs(2)
	if got := testutil.ToFloat64(m.pendingHTLCs); got != 2 {
		t.Fatalf("pending gauge = %v", got)
	}
	before := testutil.ToFloat64(m.payouts.WithLabelValues("test"))
	m.RecordPayout("test", big.NewInt(80))
	m.RecordPayout("test", nil)
	if got := testutil.ToFloat64(m.payouts.WithLabelValues("test")); got-before != 80 {
		t.Fatalf("payout delta = %v", got-before)
	}
}

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	m.Observe("query", "channel", 404, 0)
	if got := testutil.ToFloat64(m.errors.WithLabelValues("query", "channel", "404")); got < 1 {
		t.Fatalf("expected 404 error to be counted")
	}
	m.RecordThrottle("", "")
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unknown", "unspecified")); got < 1 {
		t.Fatalf("expected throttle to be counted")
	}
}
