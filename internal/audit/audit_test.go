package audit

import (
	"errors"
	"testing"

	"github.com/ruralpay/cartable/internal/logging"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.InfoLevel)
	return NewLogger(logging.Wrap(zap.New(core))), logs
}

func TestDecision(t *testing.T) {
	a, logs := newObserved()
	order := &models.PaymentOrder{ID: "o-1", AccountID: "acc-1", Status: models.OrderOwnersApproved}

	a.Decision(order, "user-1", models.DecisionApprove, "looks fine")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "audit", entry.LoggerName)
	fields := entry.ContextMap()
	assert.Equal(t, EventDecision, fields["event_type"])
	assert.Equal(t, "o-1", fields["order_id"])
	assert.Equal(t, "acc-1", fields["account_id"])
	assert.Equal(t, "APPROVE", fields["status"])
}

func TestBankAndError(t *testing.T) {
	a, logs := newObserved()
	order := &models.PaymentOrder{ID: "o-2", AccountID: "acc-1", Amount: decimal.RequireFromString("12.50"), Currency: "EUR"}

	a.Bank(order, "system", "MSG-1", "SUBMITTED")
	a.Error("o-2", "system", "dispatch", errors.New("gateway down"))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, EventBank, logs.All()[0].ContextMap()["event_type"])
	errEntry := logs.All()[1].ContextMap()
	assert.Equal(t, "FAILED", errEntry["status"])
	assert.Equal(t, map[string]string{"operation": "dispatch", "error": "gateway down"}, errEntry["details"])
}

func TestOTPOmitsOrderFields(t *testing.T) {
	a, logs := newObserved()
	a.OTP("user-1", "h-1", "request", "ISSUED")

	fields := logs.All()[0].ContextMap()
	_, hasOrder := fields["order_id"]
	assert.False(t, hasOrder)
	assert.Equal(t, "ISSUED", fields["status"])
}
