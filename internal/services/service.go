package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/cartable/internal/audit"
	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/logging"
	"github.com/ruralpay/cartable/internal/metrics"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/repository"
	"github.com/ruralpay/cartable/internal/workflow"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Store   repository.Store
	Machine workflow.Machine
	Audit   *audit.Logger
	Metrics metrics.Collector
	Logger  *logging.Logger
}

type base struct {
	store   repository.Store
	machine workflow.Machine
	audit   *audit.Logger
	metrics metrics.Collector
	log     *logging.Logger
	now     func() time.Time
	newID   func() string
}

func newBase(d Deps, name string) base {
	if d.Logger == nil {
		d.Logger = logging.NewNoOpLogger()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NoOp{}
	}
	if d.Audit == nil {
		d.Audit = audit.NewLogger(d.Logger)
	}
	return base{
		store:   d.Store,
		machine: d.Machine,
		audit:   d.Audit,
		metrics: d.Metrics,
		log:     d.Logger.Named(name),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// transition is a committed status change waiting to be published.
type transition struct {
	order    *models.PaymentOrder
	from, to models.OrderStatus
	actor    string
	reason   string
}

// move validates and applies a status change to a locked order, stamps the matching
// timestamp and appends the history row. The order version is bumped by UpdateOrder.
func (b *base) move(ctx context.Context, tx repository.Tx, o *models.PaymentOrder, to models.OrderStatus, actor, reason string) (transition, error) {
	from := o.Status
	if err := workflow.Transition(from, to); err != nil {
		return transition{}, fmt.Errorf("order %s: %w", o.ID, err)
	}

	now := b.now()
	o.Status = to
	o.UpdatedAt = now
	switch to {
	case models.OrderWaitingForOwnersApproval:
		o.SubmittedAt = &now
	case models.OrderOwnersApproved:
		o.ApprovedAt = &now
	case models.OrderSubmittedToBank:
		o.SentAt = &now
	}
	if workflow.Terminal(to) {
		o.ProcessedAt = &now
	}

	if err := tx.UpdateOrder(ctx, o); err != nil {
		return transition{}, err
	}
	err := tx.AppendEvent(ctx, &models.OrderEvent{
		OrderID:   o.ID,
		Type:      models.EventTransition,
		From:      string(from),
		To:        string(to),
		Actor:     actor,
		Reason:    reason,
		CreatedAt: now,
	})
	if err != nil {
		return transition{}, err
	}
	return transition{order: o, from: from, to: to, actor: actor, reason: reason}, nil
}

// publish emits audit events and metrics for transitions after their transaction committed.
func (b *base) publish(transitions ...transition) {
	for _, t := range transitions {
		b.audit.Transition(t.order, t.actor, t.from, t.to, t.reason)
		b.metrics.RecordTransition(string(t.to))
	}
}

func requireRole(actor models.Actor, role models.Role) error {
	if actor.ID == "" {
		return errs.ErrUnauthenticated
	}
	if !actor.HasRole(role) {
		return errs.ErrForbidden
	}
	return nil
}

// resolveQuorum re-evaluates a waiting order against the account quorum and moves it
// when decided. Waiting approvers whose signer left Enabled no longer count.
func (b *base) resolveQuorum(ctx context.Context, tx repository.Tx, o *models.PaymentOrder, a *models.Account, actor, reason string) (*transition, error) {
	to, changed := b.machine.Resolve(a.MinSignatures, workflow.Eligible(o.Approvers, a.IsSignerEnabled))
	if !changed {
		return nil, nil
	}
	t, err := b.move(ctx, tx, o, to, actor, reason)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
