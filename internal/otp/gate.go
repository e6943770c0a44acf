// Package otp issues and verifies one-time codes bound to an actor, an operation and a
// set of target orders. A code is valid for one successful verification only.
package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/logging"
	"github.com/ruralpay/cartable/internal/metrics"
	"github.com/ruralpay/cartable/internal/models"
	"go.uber.org/zap"
)

type Config struct {
	CodeLength      int
	TTL             time.Duration
	MaxAttempts     int
	RateLimit       int
	RateLimitWindow time.Duration
	// Retention keeps challenges past expiry so late submissions report expired instead of unknown.
	Retention time.Duration
	Hash      HashParams
}

func DefaultConfig() Config {
	return Config{
		CodeLength:      6,
		TTL:             2 * time.Minute,
		MaxAttempts:     5,
		RateLimit:       10,
		RateLimitWindow: 10 * time.Minute,
		Retention:       30 * time.Minute,
		Hash:            DefaultHashParams(),
	}
}

type Gate struct {
	store    Store
	notifier Notifier
	cfg      Config
	log      *logging.Logger
	metrics  metrics.Collector
	now      func() time.Time
}

func NewGate(store Store, notifier Notifier, cfg Config, logger *logging.Logger, collector metrics.Collector) *Gate {
	if cfg.Retention < cfg.TTL {
		cfg.Retention = cfg.TTL
	}
	if collector == nil {
		collector = metrics.NoOp{}
	}
	return &Gate{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		log:      logger.Named("otp"),
		metrics:  collector,
		now:      time.Now,
	}
}

// Request issues a challenge for actorID over targets and delivers the code.
func (g *Gate) Request(ctx context.Context, actorID string, op models.OperationType, intent models.Intent, targets []string) (*models.Challenge, error) {
	if !op.Valid() {
		return nil, errs.Validation("unknown operation %q", op)
	}
	if !intent.Valid() {
		return nil, errs.Validation("unknown intent %q", intent)
	}
	targets = models.NormalizeTargets(targets)
	if len(targets) == 0 {
		return nil, errs.ErrEmptyBatch
	}
	if intent == models.IntentSingle && len(targets) != 1 {
		return nil, fmt.Errorf("single intent with %d targets: %w", len(targets), errs.ErrIntentMismatch)
	}

	if err := g.checkRate(ctx, actorID); err != nil {
		return nil, err
	}

	now := g.now()
	c := &models.Challenge{
		Handle:    uuid.NewString(),
		ActorID:   actorID,
		Operation: op,
		Intent:    intent,
		Targets:   targets,
		CreatedAt: now,
	}
	if err := g.arm(ctx, c); err != nil {
		return nil, err
	}

	g.metrics.RecordOTPIssued(string(intent))
	g.log.Info("challenge issued",
		zap.String("handle", c.Handle),
		zap.String("actor_id", actorID),
		zap.String("operation", string(op)),
		zap.String("intent", string(intent)),
		zap.Int("targets", len(targets)),
	)
	return c, nil
}

// Resend replaces the code of an existing challenge. The binding and handle are kept,
// the previous code stops matching and the validity window restarts.
func (g *Gate) Resend(ctx context.Context, handle, actorID string) (*models.Challenge, error) {
	c, err := g.store.Load(ctx, handle)
	if err != nil {
		return nil, err
	}
	if c.ActorID != actorID {
		return nil, errs.ErrOTPBinding
	}
	used, err := g.store.IsUsed(ctx, handle)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, errs.ErrOTPAlreadyUsed
	}
	if err := g.checkRate(ctx, actorID); err != nil {
		return nil, err
	}
	if err := g.store.ResetAttempts(ctx, handle); err != nil {
		return nil, err
	}
	c.Attempts = 0
	if err := g.arm(ctx, c); err != nil {
		return nil, err
	}

	g.metrics.RecordOTPIssued(string(c.Intent))
	g.log.Info("challenge resent", zap.String("handle", handle), zap.String("actor_id", actorID))
	return c, nil
}

// Verify checks code against the challenge and the expected binding, then consumes it.
func (g *Gate) Verify(ctx context.Context, handle, actorID string, op models.OperationType, intent models.Intent, targets []string, code string) error {
	err := g.verify(ctx, handle, actorID, op, intent, targets, code)
	g.metrics.RecordOTPVerification(verifyResult(err))
	if err != nil {
		g.log.Info("challenge rejected",
			zap.String("handle", handle),
			zap.String("actor_id", actorID),
			zap.Error(err),
		)
	}
	return err
}

func (g *Gate) verify(ctx context.Context, handle, actorID string, op models.OperationType, intent models.Intent, targets []string, code string) error {
	c, err := g.store.Load(ctx, handle)
	if err != nil {
		return err
	}
	if c.Binding() != models.BindingKey(actorID, op, intent, targets) {
		return errs.ErrOTPBinding
	}

	used, err := g.store.IsUsed(ctx, handle)
	if err != nil {
		return err
	}
	if used {
		return errs.ErrOTPAlreadyUsed
	}
	if !g.now().Before(c.ExpiresAt) {
		return errs.ErrOTPExpired
	}

	attempts, err := g.store.IncrementAttempts(ctx, handle, g.cfg.Retention)
	if err != nil {
		return err
	}
	if attempts > g.cfg.MaxAttempts {
		return fmt.Errorf("attempt limit reached: %w", errs.ErrOTPExpired)
	}
	if !g.cfg.Hash.Matches(code, c.Salt, c.CodeHash) {
		return errs.ErrOTPMismatch
	}

	first, err := g.store.MarkUsed(ctx, handle, g.cfg.Retention)
	if err != nil {
		return err
	}
	if !first {
		return errs.ErrOTPAlreadyUsed
	}
	return nil
}

// arm generates a fresh code for c, stores it and delivers it.
func (g *Gate) arm(ctx context.Context, c *models.Challenge) error {
	code, err := generateCode(g.cfg.CodeLength)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	salt, digest, err := g.cfg.Hash.Hash(code)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	c.Salt = salt
	c.CodeHash = digest
	c.ExpiresAt = g.now().Add(g.cfg.TTL)

	if err := g.store.Save(ctx, c, g.cfg.Retention); err != nil {
		return err
	}
	if err := g.notifier.Deliver(ctx, c, code); err != nil {
		g.log.Warn("otp delivery failed", zap.String("handle", c.Handle), zap.Error(err))
		// A code that never reached the actor must not stay verifiable.
		if delErr := g.store.Delete(ctx, c.Handle); delErr != nil {
			g.log.Error("failed to drop undelivered challenge", zap.String("handle", c.Handle), zap.Error(delErr))
		}
		return errs.E(errs.KindTransient, errs.ErrOTPDelivery.Msg, err)
	}
	return nil
}

func (g *Gate) checkRate(ctx context.Context, actorID string) error {
	if g.cfg.RateLimit <= 0 {
		return nil
	}
	count, err := g.store.Hit(ctx, actorID, g.cfg.RateLimitWindow)
	if err != nil {
		return err
	}
	if count > int64(g.cfg.RateLimit) {
		return errs.ErrOTPRateLimited
	}
	return nil
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrOTPMismatch):
		return "mismatch"
	case errors.Is(err, errs.ErrOTPExpired):
		return "expired"
	case errors.Is(err, errs.ErrOTPAlreadyUsed):
		return "used"
	case errors.Is(err, errs.ErrOTPBinding):
		return "binding"
	case errors.Is(err, errs.ErrOTPNotFound):
		return "not_found"
	default:
		return "error"
	}
}
