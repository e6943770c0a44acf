package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/logging"
	"github.com/ruralpay/cartable/internal/metrics"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type captureNotifier struct {
	codes map[string]string
	err   error
}

func (n *captureNotifier) Deliver(_ context.Context, c *models.Challenge, code string) error {
	if n.err != nil {
		return n.err
	}
	n.codes[c.Handle] = code
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func testConfig() Config {
	cfg := DefaultConfig()
	// cheap argon2 parameters keep the suite fast
	cfg.Hash = HashParams{Time: 1, Memory: 1024, Threads: 1, KeyLength: 16, SaltLen: 8}
	return cfg
}

func newTestGate(t *testing.T) (*Gate, *captureNotifier, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = clk.now
	notifier := &captureNotifier{codes: map[string]string{}}
	g := NewGate(store, notifier, testConfig(), logging.Wrap(zaptest.NewLogger(t)), metrics.NoOp{})
	g.now = clk.now
	return g, notifier, clk
}

func wrongCode(code string) string {
	if code[0] == '9' {
		return "0" + code[1:]
	}
	return string(code[0]+1) + code[1:]
}

func TestGate_RequestAndVerify(t *testing.T) {
	ctx := context.Background()
	g, notifier, _ := newTestGate(t)

	c, err := g.Request(ctx, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, c.Handle)
	assert.Len(t, notifier.codes[c.Handle], 6)
	assert.NotEqual(t, notifier.codes[c.Handle], c.CodeHash)

	err = g.Verify(ctx, c.Handle, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"}, notifier.codes[c.Handle])
	require.NoError(t, err)

	// single use
	err = g.Verify(ctx, c.Handle, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"}, notifier.codes[c.Handle])
	assert.ErrorIs(t, err, errs.ErrOTPAlreadyUsed)
}

func TestGate_Mismatch(t *testing.T) {
	ctx := context.Background()
	g, notifier, _ := newTestGate(t)

	c, err := g.Request(ctx, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"})
	require.NoError(t, err)

	err = g.Verify(ctx, c.Handle, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"}, wrongCode(notifier.codes[c.Handle]))
	assert.ErrorIs(t, err, errs.ErrOTPMismatch)
	assert.Equal(t, errs.KindOTP, errs.KindOf(err))

	// a mismatch does not consume the challenge
	err = g.Verify(ctx, c.Handle, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"}, notifier.codes[c.Handle])
	assert.NoError(t, err)
}

func TestGate_Binding(t *testing.T) {
	ctx := context.Background()
	g, notifier, _ := newTestGate(t)

	c, err := g.Request(ctx, "alice", models.OpApproveOrder, models.IntentBatch, []string{"order-2", "order-1", "order-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"order-1", "order-2"}, c.Targets)
	code := notifier.codes[c.Handle]

	tests := []struct {
		name    string
		actor   string
		op      models.OperationType
		intent  models.Intent
		targets []string
	}{
		{"other actor", "bob", models.OpApproveOrder, models.IntentBatch, []string{"order-1", "order-2"}},
		{"other operation", "alice", models.OpRejectOrder, models.IntentBatch, []string{"order-1", "order-2"}},
		{"other intent", "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1", "order-2"}},
		{"subset of targets", "alice", models.OpApproveOrder, models.IntentBatch, []string{"order-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Verify(ctx, c.Handle, tt.actor, tt.op, tt.intent, tt.targets, code)
			assert.ErrorIs(t, err, errs.ErrOTPBinding)
		})
	}

	// target order is irrelevant
	err = g.Verify(ctx, c.Handle, "alice", models.OpApproveOrder, models.IntentBatch, []string{"order-2", "order-1"}, code)
	assert.NoError(t, err)
}

func TestGate_BatchOfOneIsNotSingle(t *testing.T) {
	ctx := context.Background()
	g, notifier, _ := newTestGate(t)

	c, err := g.Request(ctx, "alice", models.OpRejectOrder, models.IntentBatch, []string{"order-1"})
	require.NoError(t, err)

	err = g.Verify(ctx, c.Handle, "alice", models.OpRejectOrder, models.IntentSingle, []string{"order-1"}, notifier.codes[c.Handle])
	assert.ErrorIs(t, err, errs.ErrOTPBinding)
}

func TestGate_Expired(t *testing.T) {
	ctx := context.Background()
	g, notifier, clk := newTestGate(t)

	c, err := g.Request(ctx, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"})
	require.NoError(t, err)

	clk.t = clk.t.Add(3 * time.Minute)
	err = g.Verify(ctx, c.Handle, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"}, notifier.codes[c.Handle])
	assert.ErrorIs(t, err, errs.ErrOTPExpired)

	// resend re-arms an expired challenge
	c2, err := g.Resend(ctx, c.Handle, "alice")
	require.NoError(t, err)
	assert.Equal(t, c.Handle, c2.Handle)
	assert.True(t, c2.ExpiresAt.After(clk.t))

	err = g.Verify(ctx, c.Handle, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"}, notifier.codes[c.Handle])
	assert.NoError(t, err)
}

func TestGate_ResendInvalidatesPreviousCode(t *testing.T) {
	ctx := context.Background()
	g, notifier, _ := newTestGate(t)

	c, err := g.Request(ctx, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"})
	require.NoError(t, err)
	oldCode := notifier.codes[c.Handle]

	_, err = g.Resend(ctx, c.Handle, "alice")
	require.NoError(t, err)
	newCode := notifier.codes[c.Handle]

	if oldCode != newCode {
		err = g.Verify(ctx, c.Handle, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"}, oldCode)
		assert.ErrorIs(t, err, errs.ErrOTPMismatch)
	}

	err = g.Verify(ctx, c.Handle, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"}, newCode)
	require.NoError(t, err)

	_, err = g.Resend(ctx, c.Handle, "alice")
	assert.ErrorIs(t, err, errs.ErrOTPAlreadyUsed)
}

func TestGate_ResendByOtherActor(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGate(t)

	c, err := g.Request(ctx, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"})
	require.NoError(t, err)

	_, err = g.Resend(ctx, c.Handle, "mallory")
	assert.ErrorIs(t, err, errs.ErrOTPBinding)

	_, err = g.Resend(ctx, "unknown-handle", "alice")
	assert.ErrorIs(t, err, errs.ErrOTPNotFound)
}

func TestGate_AttemptLimit(t *testing.T) {
	ctx := context.Background()
	g, notifier, _ := newTestGate(t)

	c, err := g.Request(ctx, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"})
	require.NoError(t, err)
	code := notifier.codes[c.Handle]

	for i := 0; i < g.cfg.MaxAttempts; i++ {
		err = g.Verify(ctx, c.Handle, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"}, wrongCode(code))
		require.ErrorIs(t, err, errs.ErrOTPMismatch)
	}

	err = g.Verify(ctx, c.Handle, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"}, code)
	assert.ErrorIs(t, err, errs.ErrOTPExpired)
}

func TestGate_RateLimit(t *testing.T) {
	ctx := context.Background()
	g, _, clk := newTestGate(t)
	g.cfg.RateLimit = 2

	for i := 0; i < 2; i++ {
		_, err := g.Request(ctx, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"})
		require.NoError(t, err)
	}
	_, err := g.Request(ctx, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"})
	assert.ErrorIs(t, err, errs.ErrOTPRateLimited)
	assert.Equal(t, errs.KindTransient, errs.KindOf(err))

	// other actors are unaffected
	_, err = g.Request(ctx, "bob", models.OpApproveOrder, models.IntentSingle, []string{"order-1"})
	assert.NoError(t, err)

	clk.t = clk.t.Add(11 * time.Minute)
	_, err = g.Request(ctx, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"})
	assert.NoError(t, err)
}

func TestGate_RequestValidation(t *testing.T) {
	ctx := context.Background()
	g, _, _ := newTestGate(t)

	_, err := g.Request(ctx, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1", "order-2"})
	assert.ErrorIs(t, err, errs.ErrIntentMismatch)

	_, err = g.Request(ctx, "alice", models.OpApproveOrder, models.IntentBatch, []string{" ", ""})
	assert.ErrorIs(t, err, errs.ErrEmptyBatch)

	_, err = g.Request(ctx, "alice", models.OperationType("TRANSFER"), models.IntentBatch, []string{"order-1"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestGate_DeliveryFailure(t *testing.T) {
	ctx := context.Background()
	g, notifier, _ := newTestGate(t)
	notifier.err = errors.New("sms gateway timeout")

	_, err := g.Request(ctx, "alice", models.OpApproveOrder, models.IntentSingle, []string{"order-1"})
	assert.ErrorIs(t, err, errs.ErrOTPDelivery)
	assert.Equal(t, errs.KindTransient, errs.KindOf(err))
}

func TestHashParams(t *testing.T) {
	p := testConfig().Hash
	salt, digest, err := p.Hash("123456")
	require.NoError(t, err)

	assert.True(t, p.Matches("123456", salt, digest))
	assert.False(t, p.Matches("123457", salt, digest))
	assert.False(t, p.Matches("123456", "%%%", digest))
}

func TestGenerateCode(t *testing.T) {
	code, err := generateCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.Regexp(t, `^[0-9]{8}$`, code)
}
