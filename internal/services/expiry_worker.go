package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/repository"
	"go.uber.org/zap"
)

// ExpiryWorker expires orders that waited for owners longer than the approval SLA.
type ExpiryWorker struct {
	base
	sla       time.Duration
	interval  time.Duration
	batchSize int
}

func NewExpiryWorker(d Deps, sla, interval time.Duration, batchSize int) *ExpiryWorker {
	if batchSize < 1 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiryWorker{
		base:      newBase(d, "expiry"),
		sla:       sla,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run sweeps on every tick until ctx is done.
func (w *ExpiryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("expiry worker started", zap.Duration("sla", w.sla), zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("expiry worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
				w.log.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep expires one batch of stale orders and returns how many it moved.
func (w *ExpiryWorker) Sweep(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.sla)
	ids, err := w.store.StaleOrderIDs(ctx, cutoff, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale orders: %w", err)
	}

	expired := 0
	for _, id := range ids {
		ok, err := w.expire(ctx, id, cutoff)
		if err != nil {
			if errors.Is(err, errs.ErrVersionConflict) {
				w.log.Debug("order changed during sweep", zap.String("order_id", id))
				continue
			}
			return expired, err
		}
		if ok {
			expired++
		}
	}
	if expired > 0 {
		w.metrics.RecordExpired(expired)
		w.log.Info("orders expired", zap.Int("count", expired))
	}
	return expired, nil
}

func (w *ExpiryWorker) expire(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	var moved *transition
	err := w.store.InTx(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		// a decision may have landed since the listing
		if o.Status != models.OrderWaitingForOwnersApproval || o.SubmittedAt == nil || !o.SubmittedAt.Before(cutoff) {
			return nil
		}
		t, err := w.move(ctx, tx, o, models.OrderExpired, models.SystemActor.ID, fmt.Sprintf("approval SLA of %s elapsed", w.sla))
		if err != nil {
			return err
		}
		moved = &t
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("expire order %s: %w", id, err)
	}
	if moved == nil {
		return false, nil
	}
	w.publish(*moved)
	return true, nil
}
