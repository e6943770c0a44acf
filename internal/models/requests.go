package models

import "github.com/shopspring/decimal"

type CreateAccountRequest struct {
	Title         string `json:"title" validate:"required,min=2,max=100"`
	BankCode      string `json:"bankCode" validate:"required,max=11"`
	IBAN          string `json:"iban" validate:"required,iban"`
	Currency      string `json:"currency" validate:"required,len=3"`
	MinSignatures int    `json:"minSignatures" validate:"required,min=1"`
}

type AddSignerRequest struct {
	UserID string `json:"userId" validate:"required,max=64"`
	Name   string `json:"name" validate:"required,min=2,max=100"`
	Phone  string `json:"phone" validate:"required,e164"`
}

type UpdateMinSignaturesRequest struct {
	MinSignatures int `json:"minSignatures" validate:"required,min=1"`
}

type GroupRequest struct {
	Title       string `json:"title" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type GroupMemberRequest struct {
	AccountID string `json:"accountId" validate:"required"`
}

type LineItemRequest struct {
	DestinationIBAN string          `json:"destinationIban" validate:"required,iban"`
	BeneficiaryName string          `json:"beneficiaryName" validate:"required,max=140"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	Description     string          `json:"description" validate:"max=140"`
}

type CreateOrderRequest struct {
	AccountID   string            `json:"accountId" validate:"required"`
	Title       string            `json:"title" validate:"required,max=140"`
	Description string            `json:"description" validate:"max=500"`
	Currency    string            `json:"currency" validate:"omitempty,len=3"`
	Items       []LineItemRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

type OTPRequest struct {
	Operation OperationType `json:"operation" validate:"required,oneof=ORDER_APPROVE ORDER_REJECT"`
	Intent    Intent        `json:"intent" validate:"required,oneof=SINGLE BATCH"`
	OrderIDs  []string      `json:"orderIds" validate:"required,min=1,dive,required"`
}

type OTPResendRequest struct {
	Handle string `json:"handle" validate:"required"`
}

type DecisionRequest struct {
	Decision Decision `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	Handle   string   `json:"handle" validate:"required"`
	Code     string   `json:"code" validate:"required,numeric,min=4,max=10"`
	Comment  string   `json:"comment" validate:"max=500"`
}

type BatchDecisionRequest struct {
	OrderIDs []string `json:"orderIds" validate:"required,min=1,dive,required"`
	Decision Decision `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	Handle   string   `json:"handle" validate:"required"`
	Code     string   `json:"code" validate:"required,numeric,min=4,max=10"`
	Comment  string   `json:"comment" validate:"max=500"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type BankItemReport struct {
	LineItemID    string `json:"lineItemId" validate:"required"`
	StatusCode    string `json:"statusCode" validate:"required,min=4,max=4"`
	BankReference string `json:"bankReference" validate:"max=35"`
	Reason        string `json:"reason" validate:"max=140"`
}

type BankReportRequest struct {
	Items []BankItemReport `json:"items" validate:"required,min=1,dive"`
}

// BatchItemResult is the per-order outcome of a batch decision.
type BatchItemResult struct {
	OrderID string      `json:"orderId"`
	OK      bool        `json:"ok"`
	Status  OrderStatus `json:"status,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// BatchResult aggregates a batch decision.
type BatchResult struct {
	Intent    Intent            `json:"intent"`
	Decision  Decision          `json:"decision"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     []BatchItemResult `json:"items"`
}
