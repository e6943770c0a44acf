// Package workflow holds the payment order lifecycle: which transitions are legal,
// when the owners' quorum is met and how bank outcomes roll up into an order status.
// It has no I/O; callers run it inside their own transactions.
package workflow

import (
	"fmt"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
)

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderDraft: {
		models.OrderWaitingForOwnersApproval,
		models.OrderCanceled,
	},
	models.OrderWaitingForOwnersApproval: {
		models.OrderOwnersApproved,
		models.OrderOwnerRejected,
		models.OrderCanceled,
		models.OrderExpired,
	},
	models.OrderOwnersApproved: {
		models.OrderWaitForManagerApproval,
		models.OrderSubmittedToBank,
		models.OrderCanceled,
	},
	models.OrderWaitForManagerApproval: {
		models.OrderSubmittedToBank,
		models.OrderCanceled,
	},
	models.OrderSubmittedToBank: {
		models.OrderBankSucceeded,
		models.OrderPartiallySucceeded,
		models.OrderBankRejected,
		models.OrderDoneWithError,
	},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to.
func Transition(from, to models.OrderStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, errs.ErrInvalidTransition)
	}
	return nil
}

// Terminal reports whether no transitions leave s.
func Terminal(s models.OrderStatus) bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Cancelable reports whether the creator may still withdraw an order in s.
func Cancelable(s models.OrderStatus) bool {
	return CanTransition(s, models.OrderCanceled)
}

// Machine carries the deployment's workflow policy.
type Machine struct {
	Policy      RejectionPolicy
	ManagerGate bool
}

func NewMachine(policy RejectionPolicy, managerGate bool) Machine {
	return Machine{Policy: policy, ManagerGate: managerGate}
}

// DispatchTarget is where an OwnersApproved order goes next.
func (m Machine) DispatchTarget() models.OrderStatus {
	if m.ManagerGate {
		return models.OrderWaitForManagerApproval
	}
	return models.OrderSubmittedToBank
}

// Resolve evaluates the approver ledger of an order waiting for owners and returns
// the status it should move to. changed is false when the order stays waiting.
func (m Machine) Resolve(quorum int, approvers []models.Approver) (to models.OrderStatus, changed bool) {
	switch Evaluate(quorum, approvers, m.Policy) {
	case Approved:
		return models.OrderOwnersApproved, true
	case Rejected:
		return models.OrderOwnerRejected, true
	default:
		return models.OrderWaitingForOwnersApproval, false
	}
}
