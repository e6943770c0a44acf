package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/repository"
	"github.com/ruralpay/cartable/internal/workflow"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*pageSize far from int overflow.
	MaxPage = 1_000_000
	// AmountScale is the number of minor-unit digits stored per amount.
	AmountScale = 2
)

// OrderService owns the payment order lifecycle outside of owner decisions.
type OrderService struct {
	base
	gateway BankGateway
	builder *Pacs008Builder
}

func NewOrderService(d Deps, gateway BankGateway, builder *Pacs008Builder) *OrderService {
	return &OrderService{
		base:    newBase(d, "orders"),
		gateway: gateway,
		builder: builder,
	}
}

// CreateDraft registers an order with its line items. The account must accept new orders.
func (s *OrderService) CreateDraft(ctx context.Context, actor models.Actor, req models.CreateOrderRequest) (*models.PaymentOrder, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, errs.Validation("order needs at least one line item")
	}

	account, err := s.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.Enabled {
		return nil, errs.ErrAccountDisabled
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = account.Currency
	}
	if currency != account.Currency {
		return nil, errs.ErrCurrencyMismatch
	}

	now := s.now()
	order := &models.PaymentOrder{
		ID:          s.newID(),
		AccountID:   account.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Currency:    currency,
		Status:      models.OrderDraft,
		CreatedBy:   actor.ID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, it := range req.Items {
		if !it.Amount.GreaterThan(decimal.Zero) {
			return nil, errs.Validation("line item %d: amount must be positive", i+1)
		}
		if !it.Amount.Equal(it.Amount.Round(AmountScale)) {
			return nil, errs.Validation("line item %d: amount has more than %d decimal places", i+1, AmountScale)
		}
		if !ValidIBAN(it.DestinationIBAN) {
			return nil, fmt.Errorf("line item %d: %w", i+1, errs.ErrInvalidIBAN)
		}
		order.Items = append(order.Items, models.LineItem{
			ID:              s.newID(),
			OrderID:         order.ID,
			Seq:             i + 1,
			DestinationIBAN: strings.ToUpper(strings.ReplaceAll(it.DestinationIBAN, " ", "")),
			BeneficiaryName: it.BeneficiaryName,
			Amount:          it.Amount,
			Description:     it.Description,
			Status:          models.ItemRegistered,
			UpdatedAt:       now,
		})
	}
	order.Amount = order.Total()
	order.StatusLabel = order.Status.Label()

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &models.OrderEvent{
			OrderID:   order.ID,
			Type:      models.EventTransition,
			To:        string(models.OrderDraft),
			Actor:     actor.ID,
			Reason:    "created",
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("account_id", order.AccountID),
		zap.Int("items", len(order.Items)),
		zap.String("amount", order.Amount.String()),
	)
	return order, nil
}

// Submit sends a draft to the account's enabled signers for approval.
func (s *OrderService) Submit(ctx context.Context, actor models.Actor, orderID string) (*models.PaymentOrder, error) {
	var (
		order *models.PaymentOrder
		moved transition
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.CreatedBy != actor.ID {
			return errs.ErrNotOrderCreator
		}
		if o.Status != models.OrderDraft {
			return fmt.Errorf("submit %s from %s: %w", o.ID, o.Status, errs.ErrInvalidTransition)
		}

		a, err := tx.LockAccount(ctx, o.AccountID)
		if err != nil {
			return err
		}
		if !a.Enabled {
			return errs.ErrAccountDisabled
		}
		var approvers []models.Approver
		for _, sg := range a.Signers {
			if sg.Status != models.SignerEnabled {
				continue
			}
			approvers = append(approvers, models.Approver{
				OrderID:  o.ID,
				SignerID: sg.ID,
				UserID:   sg.UserID,
				Name:     sg.Name,
				Status:   models.ApproverWaiting,
			})
		}
		if len(approvers) < a.MinSignatures || len(approvers) == 0 {
			return errs.Conflict("account has %d enabled signers, %d signatures required", len(approvers), a.MinSignatures)
		}
		if err := tx.CreateApprovers(ctx, o.ID, approvers); err != nil {
			return err
		}
		o.Approvers = approvers

		moved, err = s.move(ctx, tx, o, models.OrderWaitingForOwnersApproval, actor.ID, "submitted for approval")
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit order %s: %w", orderID, err)
	}
	s.publish(moved)
	return order, nil
}

// Cancel withdraws an order that has not reached the bank.
func (s *OrderService) Cancel(ctx context.Context, actor models.Actor, orderID, reason string) (*models.PaymentOrder, error) {
	if reason == "" {
		reason = "canceled by creator"
	}
	var (
		order *models.PaymentOrder
		moved transition
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.CreatedBy != actor.ID && !actor.HasRole(models.RoleAdmin) {
			return errs.ErrNotOrderCreator
		}
		if !workflow.Cancelable(o.Status) {
			return fmt.Errorf("cancel %s in %s: %w", o.ID, o.Status, errs.ErrInvalidTransition)
		}
		moved, err = s.move(ctx, tx, o, models.OrderCanceled, actor.ID, reason)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	s.publish(moved)
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	return s.store.GetOrder(ctx, orderID)
}

func (s *OrderService) List(ctx context.Context, f models.OrderFilter) (*models.OrderPage, error) {
	if f.Page > MaxPage {
		return nil, errs.Validation("page must be at most %d", MaxPage)
	}
	return s.store.ListOrders(ctx, NormalizeFilter(f))
}

// NormalizeFilter applies page defaults and caps the page size.
func NormalizeFilter(f models.OrderFilter) models.OrderFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	f.Query = strings.TrimSpace(f.Query)
	return f
}

// Dispatch moves an owner-approved order on: to the manager when the gate is on,
// otherwise straight to the bank.
func (s *OrderService) Dispatch(ctx context.Context, actor models.Actor, orderID string) (*models.PaymentOrder, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return nil, err
	}
	return s.advance(ctx, actor, orderID, models.OrderOwnersApproved, "dispatch", func(ctx context.Context, tx repository.Tx, o *models.PaymentOrder) ([]transition, error) {
		target := s.machine.DispatchTarget()
		if target == models.OrderWaitForManagerApproval {
			t, err := s.move(ctx, tx, o, target, actor.ID, "waiting for manager")
			return []transition{t}, err
		}
		return s.submitToBank(ctx, tx, o, actor.ID)
	})
}

// ManagerApprove releases an order held at the manager gate to the bank.
func (s *OrderService) ManagerApprove(ctx context.Context, actor models.Actor, orderID string) (*models.PaymentOrder, error) {
	if err := requireRole(actor, models.RoleManager); err != nil {
		return nil, err
	}
	return s.advance(ctx, actor, orderID, models.OrderWaitForManagerApproval, "manager approval", func(ctx context.Context, tx repository.Tx, o *models.PaymentOrder) ([]transition, error) {
		return s.submitToBank(ctx, tx, o, actor.ID)
	})
}

func (s *OrderService) advance(ctx context.Context, actor models.Actor, orderID string, want models.OrderStatus, op string, step func(context.Context, repository.Tx, *models.PaymentOrder) ([]transition, error)) (*models.PaymentOrder, error) {
	var (
		order *models.PaymentOrder
		moved []transition
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != want {
			return fmt.Errorf("%s %s in %s: %w", op, o.ID, o.Status, errs.ErrInvalidTransition)
		}
		moved, err = step(ctx, tx, o)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		s.audit.Error(orderID, actor.ID, op, err)
		return nil, fmt.Errorf("%s order %s: %w", op, orderID, err)
	}
	s.publish(moved...)
	return order, nil
}

// submitToBank sends the order inside the caller's transaction so that a failed send
// leaves the order where it was.
func (s *OrderService) submitToBank(ctx context.Context, tx repository.Tx, o *models.PaymentOrder, actor string) ([]transition, error) {
	account, err := tx.GetAccount(ctx, o.AccountID)
	if err != nil {
		return nil, err
	}
	doc, err := s.builder.Build(o, account)
	if err != nil {
		return nil, err
	}
	ack, err := s.gateway.Submit(ctx, doc)
	if err != nil {
		s.audit.Bank(o, actor, string(doc.GrpHdr.MsgId), "FAILED")
		return nil, err
	}

	now := s.now()
	for i := range o.Items {
		o.Items[i].Status = models.ItemSentToBank
		o.Items[i].UpdatedAt = now
		if err := tx.UpdateLineItem(ctx, &o.Items[i]); err != nil {
			return nil, err
		}
	}
	t, err := s.move(ctx, tx, o, models.OrderSubmittedToBank, actor, "message "+ack.MessageID)
	if err != nil {
		return nil, err
	}
	s.audit.Bank(o, actor, ack.MessageID, ack.Status)
	return []transition{t}, nil
}

// ApplyBankReport records per line item outcomes and settles the order once every
// item is final.
func (s *OrderService) ApplyBankReport(ctx context.Context, actor models.Actor, orderID string, req models.BankReportRequest) (*models.PaymentOrder, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, errs.Validation("report has no items")
	}

	var (
		order *models.PaymentOrder
		moved []transition
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != models.OrderSubmittedToBank {
			return fmt.Errorf("bank report for %s in %s: %w", o.ID, o.Status, errs.ErrInvalidTransition)
		}

		now := s.now()
		codes := make(map[string]string, len(req.Items))
		for _, r := range req.Items {
			status, err := workflow.ItemStatusFromISO(r.StatusCode)
			if err != nil {
				return fmt.Errorf("line item %s: %w", r.LineItemID, err)
			}
			it := itemByID(o, r.LineItemID)
			if it == nil {
				return fmt.Errorf("%s: %w", r.LineItemID, errs.ErrItemNotFound)
			}
			if it.Status.Final() {
				return errs.Conflict("line item %s is already %s", it.ID, it.Status)
			}
			it.Status = status
			it.BankReference = r.BankReference
			it.FailureReason = r.Reason
			it.UpdatedAt = now
			if err := tx.UpdateLineItem(ctx, it); err != nil {
				return err
			}
			codes[it.ID] = strings.ToUpper(r.StatusCode)
		}

		metadata := models.Metadata{}
		for id, code := range codes {
			metadata[id] = code
		}
		err = tx.AppendEvent(ctx, &models.OrderEvent{
			OrderID:   o.ID,
			Type:      models.EventBankReport,
			Actor:     actor.ID,
			Metadata:  metadata,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		if to, final := workflow.BankOutcome(o.Items); final {
			t, err := s.move(ctx, tx, o, to, actor.ID, "bank report")
			if err != nil {
				return err
			}
			moved = append(moved, t)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply bank report to %s: %w", orderID, err)
	}
	s.publish(moved...)
	return order, nil
}

func itemByID(o *models.PaymentOrder, id string) *models.LineItem {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i]
		}
	}
	return nil
}
