package models

import (
	"sort"
	"strings"
	"time"
)

// OperationType names the state-changing operation an OTP authorizes.
type OperationType string

const (
	OpApproveOrder OperationType = "ORDER_APPROVE"
	OpRejectOrder  OperationType = "ORDER_REJECT"
)

func (t OperationType) Valid() bool {
	return t == OpApproveOrder || t == OpRejectOrder
}

// Intent is the caller's declared path: the single-order button or a bulk action.
type Intent string

const (
	IntentSingle Intent = "SINGLE"
	IntentBatch  Intent = "BATCH"
)

func (i Intent) Valid() bool {
	return i == IntentSingle || i == IntentBatch
}

// Challenge is an issued one-time code bound to an actor, an operation and a target set.
type Challenge struct {
	Handle    string        `json:"handle"`
	ActorID   string        `json:"actorId"`
	Operation OperationType `json:"operation"`
	Intent    Intent        `json:"intent"`
	Targets   []string      `json:"targets"`
	CodeHash  string        `json:"-"`
	Salt      string        `json:"-"`
	Attempts  int           `json:"attempts"`
	ExpiresAt time.Time     `json:"expiresAt"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Binding renders the challenge scope as a canonical string.
func (c *Challenge) Binding() string {
	return BindingKey(c.ActorID, c.Operation, c.Intent, c.Targets)
}

// NormalizeTargets sorts and de-duplicates a target id set.
func NormalizeTargets(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// BindingKey is the canonical form of (actor, operation, intent, targets).
func BindingKey(actorID string, op OperationType, intent Intent, targets []string) string {
	return actorID + "|" + string(op) + "|" + string(intent) + "|" + strings.Join(NormalizeTargets(targets), ",")
}
