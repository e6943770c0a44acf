package workflow

import (
	"fmt"
	"strings"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
)

// ItemStatusFromISO maps an ISO 20022 ExternalPaymentTransactionStatus1Code to a line item status.
// Well-formed codes outside the accepted, rejected and pending sets count as failures.
func ItemStatusFromISO(code string) (models.LineItemStatus, error) {
	switch strings.ToUpper(code) {
	case "ACSC", "ACCC", "ACWC":
		return models.ItemSucceeded, nil
	case "RJCT", "CANC":
		return models.ItemRejected, nil
	case "ACCP", "ACSP", "ACTC", "PDNG", "RCVD":
		return models.ItemSentToBank, nil
	}
	if !isStatusCode(code) {
		return "", fmt.Errorf("status code %q: %w", code, errs.ErrUnknownBankStatus)
	}
	return models.ItemFailed, nil
}

func isStatusCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

// BankOutcome rolls the line items of a submitted order into its final status.
// final is false while any item is still being processed.
func BankOutcome(items []models.LineItem) (status models.OrderStatus, final bool) {
	if len(items) == 0 {
		return models.OrderSubmittedToBank, false
	}

	var succeeded, rejected, failed int
	for _, it := range items {
		switch it.Status {
		case models.ItemSucceeded:
			succeeded++
		case models.ItemRejected:
			rejected++
		case models.ItemFailed:
			failed++
		default:
			return models.OrderSubmittedToBank, false
		}
	}

	switch {
	case succeeded == len(items):
		return models.OrderBankSucceeded, true
	case succeeded > 0:
		return models.OrderPartiallySucceeded, true
	case failed == 0 && rejected == len(items):
		return models.OrderBankRejected, true
	default:
		return models.OrderDoneWithError, true
	}
}
