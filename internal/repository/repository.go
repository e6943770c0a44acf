// Package repository persists accounts, groups and payment orders. Writes happen inside
// InTx; LockAccount and LockOrder take row locks that hold until the transaction ends,
// and Update* calls fail with errs.ErrVersionConflict when the row changed underneath.
package repository

import (
	"context"
	"time"

	"github.com/ruralpay/cartable/internal/models"
)

type Reader interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)

	GetGroup(ctx context.Context, id string) (*models.AccountGroup, error)
	ListGroups(ctx context.Context) ([]models.AccountGroup, error)

	// GetOrder loads an order with its items, approvers and history.
	GetOrder(ctx context.Context, id string) (*models.PaymentOrder, error)
	ListOrders(ctx context.Context, f models.OrderFilter) (*models.OrderPage, error)
	ExportRows(ctx context.Context, f models.OrderFilter) ([]models.ExportRow, error)

	// WaitingOrderIDs lists the account's orders that wait for owner approval.
	WaitingOrderIDs(ctx context.Context, accountID string) ([]string, error)
	// StaleOrderIDs lists waiting orders submitted for approval before cutoff, oldest first.
	StaleOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

type Writer interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	LockAccount(ctx context.Context, id string) (*models.Account, error)
	UpdateAccount(ctx context.Context, a *models.Account) error
	CreateSigner(ctx context.Context, s *models.Signer) error
	UpdateSigner(ctx context.Context, s *models.Signer) error

	CreateGroup(ctx context.Context, g *models.AccountGroup) error
	UpdateGroup(ctx context.Context, g *models.AccountGroup) error
	DeleteGroup(ctx context.Context, id string) error
	AddGroupAccount(ctx context.Context, groupID, accountID string) error
	RemoveGroupAccount(ctx context.Context, groupID, accountID string) error

	CreateOrder(ctx context.Context, o *models.PaymentOrder) error
	// LockOrder loads an order with items and approvers, without history.
	LockOrder(ctx context.Context, id string) (*models.PaymentOrder, error)
	UpdateOrder(ctx context.Context, o *models.PaymentOrder) error
	CreateApprovers(ctx context.Context, orderID string, approvers []models.Approver) error
	UpdateApprover(ctx context.Context, a *models.Approver) error
	UpdateLineItem(ctx context.Context, it *models.LineItem) error
	AppendEvent(ctx context.Context, e *models.OrderEvent) error
}

// Tx is the view of the store inside one transaction.
type Tx interface {
	Reader
	Writer
}

type Store interface {
	Reader
	// InTx runs fn in a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

var (
	_ Store = (*Postgres)(nil)
	_ Tx    = (*queries)(nil)
	_ Store = (*Memory)(nil)
	_ Tx    = (*memState)(nil)
)
