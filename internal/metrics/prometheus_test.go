package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruralpay/cartable/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	p := NewPrometheus("cartable")
	require.NoError(t, p.Register(registry))

	p.RecordDecision("APPROVE", "ok", 20*time.Millisecond)
	p.RecordDecision("APPROVE", "ok", 10*time.Millisecond)
	p.RecordDecision("REJECT", "conflict", time.Millisecond)
	p.RecordBatchItem("ok")
	p.RecordTransition("OwnersApproved")
	p.RecordCircuitState("bank", CircuitOpen)
	p.RecordExpired(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.decisions.WithLabelValues("APPROVE", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.decisions.WithLabelValues("REJECT", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.batchItems.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.circuitState.WithLabelValues("bank")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.circuitOpens.WithLabelValues("bank")))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.expired))

	// registering twice collides
	assert.Error(t, p.Register(registry))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "conflict", Outcome(errs.ErrInvalidTransition))
	assert.Equal(t, "otp", Outcome(errs.ErrOTPMismatch))
	assert.Equal(t, "internal", Outcome(errors.New("boom")))
}

func TestNoOpSatisfiesCollector(t *testing.T) {
	var c Collector = NoOp{}
	c.RecordDecision("APPROVE", "ok", time.Second)
	c.RecordCircuitState("bank", CircuitHalfOpen)
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
}
