package workflow

import (
	"fmt"
	"strings"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
)

// RejectionPolicy decides when rejections end an order.
type RejectionPolicy string

const (
	// PolicyVeto rejects the order on the first rejecting approver.
	PolicyVeto RejectionPolicy = "veto"
	// PolicyQuorum rejects once the waiting approvers can no longer lift accepted to the quorum.
	PolicyQuorum RejectionPolicy = "quorum"
)

func ParsePolicy(s string) (RejectionPolicy, error) {
	switch RejectionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyVeto, "":
		return PolicyVeto, nil
	case PolicyQuorum:
		return PolicyQuorum, nil
	default:
		return "", fmt.Errorf("unknown rejection policy %q", s)
	}
}

// Outcome of evaluating an approver ledger.
type Outcome int

const (
	Pending Outcome = iota
	Approved
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Tally counts approver decisions.
type Tally struct {
	Accepted int
	Rejected int
	Waiting  int
}

func Count(approvers []models.Approver) Tally {
	var t Tally
	for _, a := range approvers {
		switch a.Status {
		case models.ApproverAccepted:
			t.Accepted++
		case models.ApproverRejected:
			t.Rejected++
		default:
			t.Waiting++
		}
	}
	return t
}

// Eligible drops waiting approvers whose signer can no longer decide. Recorded
// decisions are kept.
func Eligible(approvers []models.Approver, enabled func(signerID string) bool) []models.Approver {
	out := make([]models.Approver, 0, len(approvers))
	for _, a := range approvers {
		if a.Status == models.ApproverWaiting && !enabled(a.SignerID) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Evaluate applies the quorum and the rejection policy to a ledger.
// Approval wins when accepted >= quorum regardless of rejections.
func Evaluate(quorum int, approvers []models.Approver, policy RejectionPolicy) Outcome {
	t := Count(approvers)
	if quorum > 0 && t.Accepted >= quorum {
		return Approved
	}

	switch policy {
	case PolicyQuorum:
		if t.Accepted+t.Waiting < quorum {
			return Rejected
		}
	default:
		if t.Rejected > 0 {
			return Rejected
		}
	}
	return Pending
}

// ValidateQuorum checks 1 <= quorum <= enabled.
func ValidateQuorum(quorum, enabled int) error {
	if quorum < 1 || quorum > enabled {
		return fmt.Errorf("quorum %d with %d enabled signers: %w", quorum, enabled, errs.ErrInvalidQuorum)
	}
	return nil
}
