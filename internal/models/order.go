package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentOrder is a batch of transfers submitted under one account.
type PaymentOrder struct {
	ID          string          `json:"id" db:"id"`
	AccountID   string          `json:"accountId" db:"account_id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Currency    string          `json:"currency" db:"currency"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Status      OrderStatus     `json:"status" db:"status"`
	StatusLabel string          `json:"statusLabel"`
	CreatedBy   string          `json:"createdBy" db:"created_by"`
	Version     int             `json:"version" db:"version"`
	Items       []LineItem      `json:"items,omitempty"`
	Approvers   []Approver      `json:"approvers,omitempty"`
	History     []OrderEvent    `json:"history,omitempty"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	SubmittedAt *time.Time      `json:"submittedAt,omitempty" db:"submitted_at"`
	ApprovedAt  *time.Time      `json:"approvedAt,omitempty" db:"approved_at"`
	SentAt      *time.Time      `json:"sentAt,omitempty" db:"sent_at"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty" db:"processed_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// Total sums the line item amounts.
func (o *PaymentOrder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Amount)
	}
	return total
}

// ApproverByUser returns the approver record of userID, if any.
func (o *PaymentOrder) ApproverByUser(userID string) (*Approver, bool) {
	for i := range o.Approvers {
		if o.Approvers[i].UserID == userID {
			return &o.Approvers[i], true
		}
	}
	return nil, false
}

// LineItem is one transfer inside a payment order.
type LineItem struct {
	ID              string          `json:"id" db:"id"`
	OrderID         string          `json:"orderId" db:"order_id"`
	Seq             int             `json:"seq" db:"seq"`
	DestinationIBAN string          `json:"destinationIban" db:"destination_iban"`
	BeneficiaryName string          `json:"beneficiaryName" db:"beneficiary_name"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Description     string          `json:"description" db:"description"`
	Status          LineItemStatus  `json:"status" db:"status"`
	BankReference   string          `json:"bankReference,omitempty" db:"bank_reference"`
	FailureReason   string          `json:"failureReason,omitempty" db:"failure_reason"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// Approver is one eligible signer's decision on one order.
type Approver struct {
	OrderID   string         `json:"orderId" db:"order_id"`
	SignerID  string         `json:"signerId" db:"signer_id"`
	UserID    string         `json:"userId" db:"user_id"`
	Name      string         `json:"name" db:"name"`
	Status    ApproverStatus `json:"status" db:"status"`
	DecidedAt *time.Time     `json:"decidedAt,omitempty" db:"decided_at"`
	Comment   string         `json:"comment,omitempty" db:"comment"`
}

// Order event types.
const (
	EventTransition = "TRANSITION"
	EventDecision   = "DECISION"
	EventBankReport = "BANK_REPORT"
)

// OrderEvent is a change history row of an order.
type OrderEvent struct {
	ID        int64     `json:"id" db:"id"`
	OrderID   string    `json:"orderId" db:"order_id"`
	Type      string    `json:"type" db:"event_type"`
	From      string    `json:"from,omitempty" db:"from_status"`
	To        string    `json:"to,omitempty" db:"to_status"`
	Actor     string    `json:"actor" db:"actor"`
	Reason    string    `json:"reason,omitempty" db:"reason"`
	Metadata  Metadata  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// OrderFilter narrows order and line item listings.
type OrderFilter struct {
	AccountID string
	Statuses  []OrderStatus
	From      *time.Time
	To        *time.Time
	Query     string
	Page      int
	PageSize  int
}

// Offset returns the SQL offset of the page (pages start at 1).
func (f OrderFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// OrderPage is one page of an order listing.
type OrderPage struct {
	Orders   []PaymentOrder `json:"orders"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

// ExportRow is a flattened line item used by spreadsheet exports.
type ExportRow struct {
	OrderID         string
	OrderTitle      string
	AccountID       string
	OrderStatus     OrderStatus
	Seq             int
	DestinationIBAN string
	BeneficiaryName string
	Amount          decimal.Decimal
	Currency        string
	ItemStatus      LineItemStatus
	BankReference   string
	CreatedAt       time.Time
}
