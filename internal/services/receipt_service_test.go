package services

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, workflow.NewMachine(workflow.PolicyVeto, false))
	svc := NewReceiptService(f.store)

	waiting := f.waitingOrder(t)
	_, err := svc.Receipt(ctx, waiting.ID)
	assert.True(t, errs.IsKind(err, errs.KindConflict))

	approved := f.approvedOrder(t)
	data, err := svc.Receipt(ctx, approved.ID)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, receiptSize, img.Bounds().Dx())

	_, err = svc.Receipt(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrOrderNotFound)
}

func TestReceiptPayload(t *testing.T) {
	o := &models.PaymentOrder{ID: "o-1", Status: models.OrderBankSucceeded, Amount: decimal.RequireFromString("150.5"), Currency: "EUR"}
	assert.Equal(t, "o-1|BankSucceeded|150.50|EUR", ReceiptPayload(o))
}
