package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	err := m.InTx(context.Background(), func(tx Tx) error {
		ctx := context.Background()
		if err := tx.CreateAccount(ctx, &models.Account{ID: "acc-1", Title: "Ops", IBAN: "DE89370400440532013000", Currency: "EUR", MinSignatures: 1, Enabled: true, Version: 1, CreatedAt: now}); err != nil {
			return err
		}
		for i, id := range []string{"o-1", "o-2", "o-3"} {
			created := now.Add(time.Duration(i) * time.Hour)
			o := &models.PaymentOrder{
				ID: id, AccountID: "acc-1", Title: "Payroll " + id, Currency: "EUR", Status: models.OrderDraft,
				Version: 1, CreatedAt: created, UpdatedAt: created,
				Items: []models.LineItem{{ID: id + "-i1", OrderID: id, Seq: 1, Amount: decimal.NewFromInt(10), Status: models.ItemRegistered}},
			}
			if err := tx.CreateOrder(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return m
}

func TestMemory_RollbackOnError(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	err := m.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, "o-1")
		if err != nil {
			return err
		}
		o.Status = models.OrderCanceled
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	o, err := m.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderDraft, o.Status)
	assert.Equal(t, 1, o.Version)
}

func TestMemory_VersionConflict(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	stale, err := m.GetOrder(ctx, "o-1")
	require.NoError(t, err)

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		o, _ := tx.LockOrder(ctx, "o-1")
		o.Status = models.OrderWaitingForOwnersApproval
		return tx.UpdateOrder(ctx, o)
	}))

	err = m.InTx(ctx, func(tx Tx) error {
		stale.Status = models.OrderCanceled
		return tx.UpdateOrder(ctx, stale)
	})
	assert.ErrorIs(t, err, errs.ErrVersionConflict)
}

func TestMemory_ReadsAreCopies(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	o, err := m.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	o.Items[0].Status = models.ItemSucceeded

	again, err := m.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, models.ItemRegistered, again.Items[0].Status)
}

func TestMemory_ListOrders(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	page, err := m.ListOrders(ctx, models.OrderFilter{AccountID: "acc-1", Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, "o-3", page.Orders[0].ID)

	page, err = m.ListOrders(ctx, models.OrderFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, "o-1", page.Orders[0].ID)

	page, err = m.ListOrders(ctx, models.OrderFilter{Query: "O-2", PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)

	page, err = m.ListOrders(ctx, models.OrderFilter{Statuses: []models.OrderStatus{models.OrderCanceled}, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
}

func TestMemory_SignersAndGroups(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	err := m.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateSigner(ctx, &models.Signer{ID: "s-1", AccountID: "acc-1", UserID: "alice", Status: models.SignerEnabled}); err != nil {
			return err
		}
		return tx.CreateSigner(ctx, &models.Signer{ID: "s-2", AccountID: "acc-1", UserID: "alice"})
	})
	assert.ErrorIs(t, err, errs.ErrDuplicateSigner)

	acc, err := m.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, acc.Signers)

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateGroup(ctx, &models.AccountGroup{ID: "g-1", Title: "Treasury", Enabled: true}); err != nil {
			return err
		}
		return tx.AddGroupAccount(ctx, "g-1", "acc-1")
	}))
	err = m.InTx(ctx, func(tx Tx) error { return tx.AddGroupAccount(ctx, "g-1", "acc-1") })
	assert.ErrorIs(t, err, errs.ErrDuplicateMember)

	g, err := m.GetGroup(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1"}, g.AccountIDs)
}

func TestMemory_StaleOrders(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()
	submitted := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		o, _ := tx.LockOrder(ctx, "o-2")
		o.Status = models.OrderWaitingForOwnersApproval
		o.SubmittedAt = &submitted
		return tx.UpdateOrder(ctx, o)
	}))

	ids, err := m.StaleOrderIDs(ctx, submitted.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"o-2"}, ids)

	ids, err = m.StaleOrderIDs(ctx, submitted, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = m.WaitingOrderIDs(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"o-2"}, ids)
}

func TestMemory_Events(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	require.NoError(t, m.InTx(ctx, func(tx Tx) error {
		return tx.AppendEvent(ctx, &models.OrderEvent{OrderID: "o-1", Type: models.EventTransition, To: "WaitingForOwnersApproval"})
	}))

	o, err := m.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, o.History, 1)
	assert.Equal(t, int64(1), o.History[0].ID)
}
