package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/repository"
	"github.com/skip2/go-qrcode"
)

const receiptSize = 256

// ReceiptService renders a QR receipt for orders the owners approved.
type ReceiptService struct {
	store repository.Reader
}

func NewReceiptService(store repository.Reader) *ReceiptService {
	return &ReceiptService{store: store}
}

// ReceiptPayload is the text encoded in the receipt QR code.
func ReceiptPayload(o *models.PaymentOrder) string {
	return fmt.Sprintf("%s|%s|%s|%s", o.ID, o.Status, o.Amount.StringFixed(2), o.Currency)
}

func pastOwnerApproval(s models.OrderStatus) bool {
	switch s {
	case models.OrderOwnersApproved, models.OrderWaitForManagerApproval, models.OrderSubmittedToBank,
		models.OrderBankSucceeded, models.OrderPartiallySucceeded, models.OrderBankRejected, models.OrderDoneWithError:
		return true
	}
	return false
}

// Receipt returns the PNG QR code of an order.
func (s *ReceiptService) Receipt(ctx context.Context, orderID string) ([]byte, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !pastOwnerApproval(o.Status) {
		return nil, errs.Conflict("order %s is %s; receipts exist after owner approval", o.ID, o.Status)
	}

	qr, err := qrcode.New(ReceiptPayload(o), qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(receiptSize)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
