package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/metrics"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/repository"
	"go.uber.org/zap"
)

const DefaultMaxBatchSize = 100

// OTPGate is the part of otp.Gate the approval flow depends on.
type OTPGate interface {
	Request(ctx context.Context, actorID string, op models.OperationType, intent models.Intent, targets []string) (*models.Challenge, error)
	Resend(ctx context.Context, handle, actorID string) (*models.Challenge, error)
	Verify(ctx context.Context, handle, actorID string, op models.OperationType, intent models.Intent, targets []string, code string) error
}

// ApprovalService records owner decisions on waiting orders under a one-time code.
type ApprovalService struct {
	base
	gate         OTPGate
	maxBatchSize int
}

func NewApprovalService(d Deps, gate OTPGate, maxBatchSize int) *ApprovalService {
	if maxBatchSize < 1 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &ApprovalService{
		base:         newBase(d, "approvals"),
		gate:         gate,
		maxBatchSize: maxBatchSize,
	}
}

// RequestOTP issues a code bound to the actor, the operation and the target orders.
// Single requests are checked for eligibility up front; batch targets are checked per
// order when the decision is made.
func (s *ApprovalService) RequestOTP(ctx context.Context, actor models.Actor, req models.OTPRequest) (*models.Challenge, error) {
	if actor.ID == "" {
		return nil, errs.ErrUnauthenticated
	}
	targets := dedupe(req.OrderIDs)
	if len(targets) == 0 {
		return nil, errs.ErrEmptyBatch
	}
	if req.Intent == models.IntentBatch && len(targets) > s.maxBatchSize {
		return nil, errs.ErrBatchTooLarge
	}
	if req.Intent == models.IntentSingle && len(targets) == 1 {
		if err := s.checkEligible(ctx, actor, targets[0]); err != nil {
			return nil, err
		}
	}

	c, err := s.gate.Request(ctx, actor.ID, req.Operation, req.Intent, targets)
	if err != nil {
		s.audit.OTP(actor.ID, "", "request", "FAILED")
		return nil, err
	}
	s.audit.OTP(actor.ID, c.Handle, "request", "ISSUED")
	return c, nil
}

func (s *ApprovalService) ResendOTP(ctx context.Context, actor models.Actor, handle string) (*models.Challenge, error) {
	if actor.ID == "" {
		return nil, errs.ErrUnauthenticated
	}
	c, err := s.gate.Resend(ctx, handle, actor.ID)
	if err != nil {
		s.audit.OTP(actor.ID, handle, "resend", "FAILED")
		return nil, err
	}
	s.audit.OTP(actor.ID, handle, "resend", "ISSUED")
	return c, nil
}

// Decide records one approver decision. The code is checked and consumed first; the
// decision, quorum evaluation and any transition then commit together.
func (s *ApprovalService) Decide(ctx context.Context, actor models.Actor, orderID string, req models.DecisionRequest) (*models.PaymentOrder, error) {
	start := time.Now()
	order, err := s.decide(ctx, actor, orderID, req)
	s.metrics.RecordDecision(string(req.Decision), metrics.Outcome(err), time.Since(start))
	if err != nil {
		s.audit.Error(orderID, actor.ID, "decision", err)
		return nil, err
	}
	return order, nil
}

func (s *ApprovalService) decide(ctx context.Context, actor models.Actor, orderID string, req models.DecisionRequest) (*models.PaymentOrder, error) {
	if !req.Decision.Valid() {
		return nil, errs.Validation("unknown decision %q", req.Decision)
	}
	if err := s.checkEligible(ctx, actor, orderID); err != nil {
		return nil, err
	}

	err := s.gate.Verify(ctx, req.Handle, actor.ID, req.Decision.OperationType(), models.IntentSingle, []string{orderID}, req.Code)
	if err != nil {
		s.audit.OTP(actor.ID, req.Handle, "verify", "FAILED")
		return nil, err
	}
	s.audit.OTP(actor.ID, req.Handle, "verify", "VERIFIED")

	return s.record(ctx, actor, orderID, req.Decision, req.Comment)
}

// DecideBatch verifies one code for the whole set and then decides every order in its
// own transaction. Per-order failures are reported in the result, not returned.
func (s *ApprovalService) DecideBatch(ctx context.Context, actor models.Actor, req models.BatchDecisionRequest) (*models.BatchResult, error) {
	start := time.Now()
	result, err := s.decideBatch(ctx, actor, req)
	s.metrics.RecordDecision("BATCH_"+string(req.Decision), metrics.Outcome(err), time.Since(start))
	return result, err
}

func (s *ApprovalService) decideBatch(ctx context.Context, actor models.Actor, req models.BatchDecisionRequest) (*models.BatchResult, error) {
	if actor.ID == "" {
		return nil, errs.ErrUnauthenticated
	}
	if !req.Decision.Valid() {
		return nil, errs.Validation("unknown decision %q", req.Decision)
	}
	ids := dedupe(req.OrderIDs)
	if len(ids) == 0 {
		return nil, errs.ErrEmptyBatch
	}
	if len(ids) > s.maxBatchSize {
		return nil, errs.ErrBatchTooLarge
	}

	err := s.gate.Verify(ctx, req.Handle, actor.ID, req.Decision.OperationType(), models.IntentBatch, ids, req.Code)
	if err != nil {
		s.audit.OTP(actor.ID, req.Handle, "verify", "FAILED")
		return nil, err
	}
	s.audit.OTP(actor.ID, req.Handle, "verify", "VERIFIED")

	result := &models.BatchResult{
		Intent:   models.IntentBatch,
		Decision: req.Decision,
		Total:    len(ids),
		Items:    make([]models.BatchItemResult, 0, len(ids)),
	}
	for _, id := range ids {
		item := models.BatchItemResult{OrderID: id}
		order, err := s.record(ctx, actor, id, req.Decision, req.Comment)
		if err != nil {
			item.Kind = errs.KindOf(err).String()
			item.Error = err.Error()
			result.Failed++
			s.log.Warn("batch item failed", zap.String("order_id", id), zap.String("actor", actor.ID), zap.Error(err))
		} else {
			item.OK = true
			item.Status = order.Status
			result.Succeeded++
		}
		s.metrics.RecordBatchItem(metrics.Outcome(err))
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// checkEligible is a lock-free precheck so a doomed decision does not burn a code.
func (s *ApprovalService) checkEligible(ctx context.Context, actor models.Actor, orderID string) error {
	if actor.ID == "" {
		return errs.ErrUnauthenticated
	}
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	a, err := s.store.GetAccount(ctx, o.AccountID)
	if err != nil {
		return err
	}
	_, err = eligibleApprover(o, a, actor.ID)
	return err
}

// eligibleApprover returns the actor's waiting approver record on a waiting order.
func eligibleApprover(o *models.PaymentOrder, a *models.Account, actorID string) (*models.Approver, error) {
	if o.Status != models.OrderWaitingForOwnersApproval {
		return nil, fmt.Errorf("order %s is %s: %w", o.ID, o.Status, errs.ErrInvalidTransition)
	}
	sg, ok := a.SignerByUser(actorID)
	if !ok || sg.Status != models.SignerEnabled {
		return nil, errs.ErrNotEligible
	}
	ap, ok := o.ApproverByUser(actorID)
	if !ok {
		return nil, errs.ErrNotEligible
	}
	if ap.Status != models.ApproverWaiting {
		return nil, errs.ErrAlreadyDecided
	}
	return ap, nil
}

// record applies a decision to one order in its own transaction.
func (s *ApprovalService) record(ctx context.Context, actor models.Actor, orderID string, decision models.Decision, comment string) (*models.PaymentOrder, error) {
	var (
		order *models.PaymentOrder
		moved *transition
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		a, err := tx.GetAccount(ctx, o.AccountID)
		if err != nil {
			return err
		}
		ap, err := eligibleApprover(o, a, actor.ID)
		if err != nil {
			return err
		}

		now := s.now()
		ap.Status = decision.ApproverStatus()
		ap.DecidedAt = &now
		ap.Comment = strings.TrimSpace(comment)
		if err := tx.UpdateApprover(ctx, ap); err != nil {
			return err
		}
		err = tx.AppendEvent(ctx, &models.OrderEvent{
			OrderID:   o.ID,
			Type:      models.EventDecision,
			Actor:     actor.ID,
			Reason:    ap.Comment,
			Metadata:  models.Metadata{"decision": string(decision), "signer_id": ap.SignerID},
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		moved, err = s.resolveQuorum(ctx, tx, o, a, actor.ID, "quorum evaluated after "+strings.ToLower(string(decision)))
		if err != nil {
			return err
		}
		if moved == nil {
			// the decision alone still bumps the version
			o.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, o); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s order %s: %w", strings.ToLower(string(decision)), orderID, err)
	}

	s.audit.Decision(order, actor.ID, decision, comment)
	if moved != nil {
		s.publish(*moved)
	}
	s.log.Info("decision recorded",
		zap.String("order_id", order.ID),
		zap.String("actor", actor.ID),
		zap.String("decision", string(decision)),
		zap.String("status", string(order.Status)),
	)
	return order, nil
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
