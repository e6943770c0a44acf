package models

import "fmt"

// OrderStatus is the lifecycle state of a payment order.
type OrderStatus string

const (
	OrderDraft                    OrderStatus = "Draft"
	OrderWaitingForOwnersApproval OrderStatus = "WaitingForOwnersApproval"
	OrderOwnersApproved           OrderStatus = "OwnersApproved"
	OrderOwnerRejected            OrderStatus = "OwnerRejected"
	OrderWaitForManagerApproval   OrderStatus = "WaitForManagerApproval"
	OrderSubmittedToBank          OrderStatus = "SubmittedToBank"
	OrderBankSucceeded            OrderStatus = "BankSucceeded"
	OrderPartiallySucceeded       OrderStatus = "PartiallySucceeded"
	OrderBankRejected             OrderStatus = "BankRejected"
	OrderDoneWithError            OrderStatus = "DoneWithError"
	OrderCanceled                 OrderStatus = "Canceled"
	OrderExpired                  OrderStatus = "Expired"
)

var orderStatusLabels = map[OrderStatus]string{
	OrderDraft:                    "Draft",
	OrderWaitingForOwnersApproval: "Waiting for owners approval",
	OrderOwnersApproved:           "Approved by owners",
	OrderOwnerRejected:            "Rejected by owner",
	OrderWaitForManagerApproval:   "Waiting for manager approval",
	OrderSubmittedToBank:          "Submitted to bank",
	OrderBankSucceeded:            "Succeeded",
	OrderPartiallySucceeded:       "Partially succeeded",
	OrderBankRejected:             "Rejected by bank",
	OrderDoneWithError:            "Done with error",
	OrderCanceled:                 "Canceled",
	OrderExpired:                  "Expired",
}

// OrderStatuses lists every order status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderDraft, OrderWaitingForOwnersApproval, OrderOwnersApproved, OrderOwnerRejected,
		OrderWaitForManagerApproval, OrderSubmittedToBank, OrderBankSucceeded,
		OrderPartiallySucceeded, OrderBankRejected, OrderDoneWithError, OrderCanceled, OrderExpired,
	}
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatusLabels[s]
	return ok
}

// Label returns the human readable name shown in the cartable.
func (s OrderStatus) Label() string {
	if l, ok := orderStatusLabels[s]; ok {
		return l
	}
	return "Unknown"
}

func (s *OrderStatus) UnmarshalText(b []byte) error {
	v, err := ParseOrderStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	v := OrderStatus(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return v, nil
}

// LineItemStatus mirrors bank processing of a single transfer.
type LineItemStatus string

const (
	ItemRegistered LineItemStatus = "Registered"
	ItemQueued     LineItemStatus = "Queued"
	ItemSentToBank LineItemStatus = "SentToBank"
	ItemSucceeded  LineItemStatus = "Succeeded"
	ItemFailed     LineItemStatus = "Failed"
	ItemRejected   LineItemStatus = "Rejected"
)

var lineItemStatusLabels = map[LineItemStatus]string{
	ItemRegistered: "Registered",
	ItemQueued:     "Queued",
	ItemSentToBank: "Sent to bank",
	ItemSucceeded:  "Succeeded",
	ItemFailed:     "Failed",
	ItemRejected:   "Rejected",
}

func (s LineItemStatus) Valid() bool {
	_, ok := lineItemStatusLabels[s]
	return ok
}

func (s LineItemStatus) Label() string {
	if l, ok := lineItemStatusLabels[s]; ok {
		return l
	}
	return "Unknown"
}

// Final reports whether the bank has finished processing the item.
func (s LineItemStatus) Final() bool {
	return s == ItemSucceeded || s == ItemFailed || s == ItemRejected
}

func (s *LineItemStatus) UnmarshalText(b []byte) error {
	v := LineItemStatus(b)
	if !v.Valid() {
		return fmt.Errorf("unknown line item status %q", string(b))
	}
	*s = v
	return nil
}

// SignerStatus is the enablement state of an account signer.
type SignerStatus string

const (
	SignerEnableRequested  SignerStatus = "EnableRequested"
	SignerEnabled          SignerStatus = "Enabled"
	SignerDisabled         SignerStatus = "Disabled"
	SignerDisableRequested SignerStatus = "DisableRequested"
	SignerRejected         SignerStatus = "Rejected"
)

var signerStatusLabels = map[SignerStatus]string{
	SignerEnableRequested:  "Enable requested",
	SignerEnabled:          "Enabled",
	SignerDisabled:         "Disabled",
	SignerDisableRequested: "Disable requested",
	SignerRejected:         "Rejected",
}

func (s SignerStatus) Valid() bool {
	_, ok := signerStatusLabels[s]
	return ok
}

func (s SignerStatus) Label() string {
	if l, ok := signerStatusLabels[s]; ok {
		return l
	}
	return "Unknown"
}

func (s *SignerStatus) UnmarshalText(b []byte) error {
	v := SignerStatus(b)
	if !v.Valid() {
		return fmt.Errorf("unknown signer status %q", string(b))
	}
	*s = v
	return nil
}

// ApproverStatus is a signer's decision on one order.
type ApproverStatus string

const (
	ApproverWaiting  ApproverStatus = "Waiting"
	ApproverAccepted ApproverStatus = "Accepted"
	ApproverRejected ApproverStatus = "Rejected"
)

var approverStatusLabels = map[ApproverStatus]string{
	ApproverWaiting:  "Waiting",
	ApproverAccepted: "Accepted",
	ApproverRejected: "Rejected",
}

func (s ApproverStatus) Valid() bool {
	_, ok := approverStatusLabels[s]
	return ok
}

func (s ApproverStatus) Label() string {
	if l, ok := approverStatusLabels[s]; ok {
		return l
	}
	return "Unknown"
}

// Decision is what an approver submits.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// ApproverStatus returns the ledger status recorded for the decision.
func (d Decision) ApproverStatus() ApproverStatus {
	if d == DecisionApprove {
		return ApproverAccepted
	}
	return ApproverRejected
}

// OperationType returns the OTP operation a decision must be bound to.
func (d Decision) OperationType() OperationType {
	if d == DecisionApprove {
		return OpApproveOrder
	}
	return OpRejectOrder
}
