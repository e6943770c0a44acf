package workflow

import (
	"errors"
	"testing"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvers(statuses ...models.ApproverStatus) []models.Approver {
	out := make([]models.Approver, len(statuses))
	for i, s := range statuses {
		out[i] = models.Approver{SignerID: string(rune('A' + i)), Status: s}
	}
	return out
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to models.OrderStatus
		ok       bool
	}{
		{models.OrderDraft, models.OrderWaitingForOwnersApproval, true},
		{models.OrderDraft, models.OrderCanceled, true},
		{models.OrderDraft, models.OrderOwnersApproved, false},
		{models.OrderWaitingForOwnersApproval, models.OrderOwnersApproved, true},
		{models.OrderWaitingForOwnersApproval, models.OrderOwnerRejected, true},
		{models.OrderWaitingForOwnersApproval, models.OrderExpired, true},
		{models.OrderWaitingForOwnersApproval, models.OrderSubmittedToBank, false},
		{models.OrderOwnersApproved, models.OrderWaitForManagerApproval, true},
		{models.OrderOwnersApproved, models.OrderSubmittedToBank, true},
		{models.OrderWaitForManagerApproval, models.OrderSubmittedToBank, true},
		{models.OrderSubmittedToBank, models.OrderPartiallySucceeded, true},
		{models.OrderSubmittedToBank, models.OrderCanceled, false},
		{models.OrderCanceled, models.OrderDraft, false},
		{models.OrderExpired, models.OrderWaitingForOwnersApproval, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
			err := Transition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
				assert.Equal(t, errs.KindConflict, errs.KindOf(err))
			}
		})
	}
}

func TestTerminalStates(t *testing.T) {
	terminal := map[models.OrderStatus]bool{
		models.OrderBankSucceeded:      true,
		models.OrderPartiallySucceeded: true,
		models.OrderBankRejected:       true,
		models.OrderDoneWithError:      true,
		models.OrderCanceled:           true,
		models.OrderExpired:            true,
		models.OrderOwnerRejected:      true,
	}
	for _, s := range models.OrderStatuses() {
		assert.Equal(t, terminal[s], Terminal(s), s)
	}
	assert.False(t, Terminal(models.OrderStatus("Bogus")))
}

func TestCancelable(t *testing.T) {
	assert.True(t, Cancelable(models.OrderDraft))
	assert.True(t, Cancelable(models.OrderWaitingForOwnersApproval))
	assert.True(t, Cancelable(models.OrderOwnersApproved))
	assert.True(t, Cancelable(models.OrderWaitForManagerApproval))
	assert.False(t, Cancelable(models.OrderSubmittedToBank))
	assert.False(t, Cancelable(models.OrderBankSucceeded))
}

func TestEvaluate(t *testing.T) {
	W, A, R := models.ApproverWaiting, models.ApproverAccepted, models.ApproverRejected

	tests := []struct {
		name     string
		quorum   int
		ledger   []models.Approver
		policy   RejectionPolicy
		expected Outcome
	}{
		{"first of two accepts", 2, approvers(A, W, W), PolicyVeto, Pending},
		{"second of two accepts", 2, approvers(A, A, W), PolicyVeto, Approved},
		{"veto on single rejection", 2, approvers(A, R, W), PolicyVeto, Rejected},
		{"quorum policy tolerates a rejection", 2, approvers(A, R, W), PolicyQuorum, Pending},
		{"quorum policy unreachable", 2, approvers(R, R, W), PolicyQuorum, Rejected},
		{"acceptance wins over rejection", 2, approvers(A, A, R), PolicyVeto, Approved},
		{"quorum of one", 1, approvers(A, W), PolicyQuorum, Approved},
		{"nobody decided", 3, approvers(W, W, W), PolicyQuorum, Pending},
		{"approvers fewer than quorum", 3, approvers(W, W), PolicyQuorum, Rejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Evaluate(tt.quorum, tt.ledger, tt.policy))
		})
	}
}

func TestEligible(t *testing.T) {
	W, A, R := models.ApproverWaiting, models.ApproverAccepted, models.ApproverRejected
	ledger := approvers(A, R, W, W)
	// only B and C are still enabled
	enabled := func(id string) bool { return id == "B" || id == "C" }

	kept := Eligible(ledger, enabled)
	require.Len(t, kept, 3)
	assert.Equal(t, Tally{Accepted: 1, Rejected: 1, Waiting: 1}, Count(kept))
	assert.Len(t, ledger, 4)

	// one acceptance plus one reachable signer is short of a quorum of three
	assert.Equal(t, Pending, Evaluate(3, ledger, PolicyQuorum))
	assert.Equal(t, Rejected, Evaluate(3, kept, PolicyQuorum))
}

func TestMachineResolve(t *testing.T) {
	m := NewMachine(PolicyVeto, false)

	to, changed := m.Resolve(2, approvers(models.ApproverAccepted, models.ApproverWaiting, models.ApproverWaiting))
	assert.False(t, changed)
	assert.Equal(t, models.OrderWaitingForOwnersApproval, to)

	to, changed = m.Resolve(2, approvers(models.ApproverAccepted, models.ApproverAccepted, models.ApproverWaiting))
	assert.True(t, changed)
	assert.Equal(t, models.OrderOwnersApproved, to)

	to, changed = m.Resolve(2, approvers(models.ApproverRejected, models.ApproverWaiting, models.ApproverWaiting))
	assert.True(t, changed)
	assert.Equal(t, models.OrderOwnerRejected, to)

	assert.Equal(t, models.OrderSubmittedToBank, m.DispatchTarget())
	assert.Equal(t, models.OrderWaitForManagerApproval, NewMachine(PolicyVeto, true).DispatchTarget())
}

func TestValidateQuorum(t *testing.T) {
	assert.NoError(t, ValidateQuorum(1, 1))
	assert.NoError(t, ValidateQuorum(2, 3))
	assert.ErrorIs(t, ValidateQuorum(0, 3), errs.ErrInvalidQuorum)
	assert.ErrorIs(t, ValidateQuorum(4, 3), errs.ErrInvalidQuorum)
	assert.ErrorIs(t, ValidateQuorum(1, 0), errs.ErrInvalidQuorum)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyVeto, p)

	p, err = ParsePolicy(" Quorum ")
	require.NoError(t, err)
	assert.Equal(t, PolicyQuorum, p)

	_, err = ParsePolicy("majority")
	assert.Error(t, err)
}

func TestItemStatusFromISO(t *testing.T) {
	tests := map[string]models.LineItemStatus{
		"ACSC": models.ItemSucceeded,
		"accc": models.ItemSucceeded,
		"RJCT": models.ItemRejected,
		"ACSP": models.ItemSentToBank,
		"PDNG": models.ItemSentToBank,
		"BLCK": models.ItemFailed,
		"NARR": models.ItemFailed,
	}
	for code, expected := range tests {
		got, err := ItemStatusFromISO(code)
		require.NoError(t, err, code)
		assert.Equal(t, expected, got, code)
	}

	_, err := ItemStatusFromISO("12AB")
	assert.ErrorIs(t, err, errs.ErrUnknownBankStatus)
	_, err = ItemStatusFromISO("ACSCX")
	assert.ErrorIs(t, err, errs.ErrUnknownBankStatus)
}

func TestBankOutcome(t *testing.T) {
	items := func(statuses ...models.LineItemStatus) []models.LineItem {
		out := make([]models.LineItem, len(statuses))
		for i, s := range statuses {
			out[i] = models.LineItem{Seq: i + 1, Status: s}
		}
		return out
	}
	S, F, R, P := models.ItemSucceeded, models.ItemFailed, models.ItemRejected, models.ItemSentToBank

	tests := []struct {
		name     string
		items    []models.LineItem
		expected models.OrderStatus
		final    bool
	}{
		{"all succeeded", items(S, S), models.OrderBankSucceeded, true},
		{"some succeeded", items(S, R, F), models.OrderPartiallySucceeded, true},
		{"all rejected", items(R, R), models.OrderBankRejected, true},
		{"rejected and failed", items(R, F), models.OrderDoneWithError, true},
		{"all failed", items(F), models.OrderDoneWithError, true},
		{"still in flight", items(S, P), models.OrderSubmittedToBank, false},
		{"no items", nil, models.OrderSubmittedToBank, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, final := BankOutcome(tt.items)
			assert.Equal(t, tt.expected, status)
			assert.Equal(t, tt.final, final)
		})
	}
}
