package services

import (
	"context"
	"sync"
	"testing"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproval_QuorumOfTwo(t *testing.T) {
	f := newFixture(t, workflow.NewMachine(workflow.PolicyVeto, false))
	o := f.waitingOrder(t)
	require.Len(t, o.Approvers, 3)

	o, err := f.decide(t, alice, o.ID, models.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.OrderWaitingForOwnersApproval, o.Status)

	o, err = f.decide(t, bob, o.ID, models.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOwnersApproved, o.Status)
	assert.NotNil(t, o.ApprovedAt)

	stored, err := f.store.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	tally := workflow.Count(stored.Approvers)
	assert.GreaterOrEqual(t, tally.Accepted, 2)

	var decisions, transitions int
	for _, ev := range stored.History {
		switch ev.Type {
		case models.EventDecision:
			decisions++
		case models.EventTransition:
			transitions++
		}
	}
	assert.Equal(t, 2, decisions)
	// created, submitted, approved
	assert.Equal(t, 3, transitions)

	// late decision on a decided order
	_, err = f.decide(t, carol, o.ID, models.DecisionApprove)
	assert.ErrorIs(t, err, errs.ErrInvalidTransition)
}

func TestApproval_VetoRejects(t *testing.T) {
	f := newFixture(t, workflow.NewMachine(workflow.PolicyVeto, false))
	o := f.waitingOrder(t)

	o, err := f.decide(t, carol, o.ID, models.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOwnerRejected, o.Status)
	assert.NotNil(t, o.ProcessedAt)
}

func TestApproval_QuorumPolicyToleratesOneRejection(t *testing.T) {
	f := newFixture(t, workflow.NewMachine(workflow.PolicyQuorum, false))
	o := f.waitingOrder(t)

	o, err := f.decide(t, carol, o.ID, models.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, models.OrderWaitingForOwnersApproval, o.Status)

	o, err = f.decide(t, bob, o.ID, models.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOwnerRejected, o.Status)
}

func TestApproval_QuorumPolicyIgnoresSignersLeavingEnabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, workflow.NewMachine(workflow.PolicyQuorum, false))
	o := f.waitingOrder(t)

	// carol stays on the ledger but can no longer decide
	_, err := f.accounts.RequestDisable(ctx, operator, accountID, "s-carol")
	require.NoError(t, err)

	// alice rejects, and only bob is left to reach a quorum of two
	o, err = f.decide(t, alice, o.ID, models.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOwnerRejected, o.Status)
}

func TestApproval_ConcurrentDecisionsSerialize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, workflow.NewMachine(workflow.PolicyVeto, false))
	o := f.waitingOrder(t)

	signers := []models.Actor{alice, bob, carol}
	requests := make([]models.DecisionRequest, len(signers))
	for i, actor := range signers {
		c, err := f.approvals.RequestOTP(ctx, actor, models.OTPRequest{Operation: models.OpApproveOrder, Intent: models.IntentSingle, OrderIDs: []string{o.ID}})
		require.NoError(t, err)
		requests[i] = models.DecisionRequest{Decision: models.DecisionApprove, Handle: c.Handle, Code: f.codes.code(c.Handle)}
	}

	results := make([]error, len(signers))
	var wg sync.WaitGroup
	for i := range signers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.approvals.Decide(ctx, signers[i], o.ID, requests[i])
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, errs.ErrInvalidTransition)
		assert.True(t, errs.IsKind(err, errs.KindConflict))
	}
	assert.Equal(t, 2, succeeded)

	stored, err := f.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOwnersApproved, stored.Status)
	tally := workflow.Count(stored.Approvers)
	assert.Equal(t, 2, tally.Accepted)
	assert.Equal(t, 1, tally.Waiting)

	var approvals int
	for _, ev := range stored.History {
		if ev.Type == models.EventTransition && ev.To == string(models.OrderOwnersApproved) {
			approvals++
		}
	}
	assert.Equal(t, 1, approvals)
}

func TestApproval_WrongCodeLeavesOrderUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, workflow.NewMachine(workflow.PolicyVeto, false))
	o := f.waitingOrder(t)

	c, err := f.approvals.RequestOTP(ctx, alice, models.OTPRequest{Operation: models.OpApproveOrder, Intent: models.IntentSingle, OrderIDs: []string{o.ID}})
	require.NoError(t, err)

	_, err = f.approvals.Decide(ctx, alice, o.ID, models.DecisionRequest{
		Decision: models.DecisionApprove,
		Handle:   c.Handle,
		Code:     wrongCode(f.codes.code(c.Handle)),
	})
	assert.ErrorIs(t, err, errs.ErrOTPMismatch)

	stored, err := f.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Version, stored.Version)
	ap, _ := stored.ApproverByUser("alice")
	assert.Equal(t, models.ApproverWaiting, ap.Status)

	// the right code still works afterwards
	_, err = f.approvals.Decide(ctx, alice, o.ID, models.DecisionRequest{Decision: models.DecisionApprove, Handle: c.Handle, Code: f.codes.code(c.Handle)})
	require.NoError(t, err)
}

func TestApproval_CodeBoundToDecision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, workflow.NewMachine(workflow.PolicyVeto, false))
	o := f.waitingOrder(t)

	c, err := f.approvals.RequestOTP(ctx, alice, models.OTPRequest{Operation: models.OpApproveOrder, Intent: models.IntentSingle, OrderIDs: []string{o.ID}})
	require.NoError(t, err)

	_, err = f.approvals.Decide(ctx, alice, o.ID, models.DecisionRequest{Decision: models.DecisionReject, Handle: c.Handle, Code: f.codes.code(c.Handle)})
	assert.ErrorIs(t, err, errs.ErrOTPBinding)

	// another signer cannot use alice's code
	_, err = f.approvals.Decide(ctx, bob, o.ID, models.DecisionRequest{Decision: models.DecisionApprove, Handle: c.Handle, Code: f.codes.code(c.Handle)})
	assert.ErrorIs(t, err, errs.ErrOTPBinding)
}

func TestApproval_Eligibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, workflow.NewMachine(workflow.PolicyVeto, false))
	o := f.waitingOrder(t)

	outsider := models.Actor{ID: "mallory", Roles: []models.Role{models.RoleSigner}}
	_, err := f.decide(t, outsider, o.ID, models.DecisionApprove)
	assert.ErrorIs(t, err, errs.ErrNotEligible)

	_, err = f.decide(t, alice, o.ID, models.DecisionApprove)
	require.NoError(t, err)
	_, err = f.decide(t, alice, o.ID, models.DecisionApprove)
	assert.ErrorIs(t, err, errs.ErrAlreadyDecided)

	_, err = f.approvals.RequestOTP(ctx, alice, models.OTPRequest{Operation: models.OpApproveOrder, Intent: models.IntentSingle, OrderIDs: []string{"missing"}})
	assert.ErrorIs(t, err, errs.ErrOrderNotFound)
}

func TestApproval_Batch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, workflow.NewMachine(workflow.PolicyVeto, false))
	x := f.waitingOrder(t)
	y := f.waitingOrder(t)
	_, err := f.orders.Cancel(ctx, operator, y.ID, "")
	require.NoError(t, err)

	ids := []string{x.ID, y.ID, x.ID}
	c, err := f.approvals.RequestOTP(ctx, alice, models.OTPRequest{Operation: models.OpApproveOrder, Intent: models.IntentBatch, OrderIDs: ids})
	require.NoError(t, err)

	result, err := f.approvals.DecideBatch(ctx, alice, models.BatchDecisionRequest{
		OrderIDs: ids,
		Decision: models.DecisionApprove,
		Handle:   c.Handle,
		Code:     f.codes.code(c.Handle),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Items, 2)
	assert.Equal(t, x.ID, result.Items[0].OrderID)
	assert.True(t, result.Items[0].OK)
	assert.Equal(t, models.OrderWaitingForOwnersApproval, result.Items[0].Status)
	assert.Equal(t, y.ID, result.Items[1].OrderID)
	assert.False(t, result.Items[1].OK)
	assert.Equal(t, "conflict", result.Items[1].Kind)

	stored, err := f.store.GetOrder(ctx, x.ID)
	require.NoError(t, err)
	ap, _ := stored.ApproverByUser("alice")
	assert.Equal(t, models.ApproverAccepted, ap.Status)
}

func TestApproval_BatchOfOneStaysBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, workflow.NewMachine(workflow.PolicyVeto, false))
	o := f.waitingOrder(t)

	c, err := f.approvals.RequestOTP(ctx, alice, models.OTPRequest{Operation: models.OpApproveOrder, Intent: models.IntentBatch, OrderIDs: []string{o.ID}})
	require.NoError(t, err)

	_, err = f.approvals.Decide(ctx, alice, o.ID, models.DecisionRequest{Decision: models.DecisionApprove, Handle: c.Handle, Code: f.codes.code(c.Handle)})
	assert.ErrorIs(t, err, errs.ErrOTPBinding)

	single, err := f.approvals.RequestOTP(ctx, alice, models.OTPRequest{Operation: models.OpApproveOrder, Intent: models.IntentSingle, OrderIDs: []string{o.ID}})
	require.NoError(t, err)
	_, err = f.approvals.DecideBatch(ctx, alice, models.BatchDecisionRequest{
		OrderIDs: []string{o.ID}, Decision: models.DecisionApprove, Handle: single.Handle, Code: f.codes.code(single.Handle),
	})
	assert.ErrorIs(t, err, errs.ErrOTPBinding)

	result, err := f.approvals.DecideBatch(ctx, alice, models.BatchDecisionRequest{
		OrderIDs: []string{o.ID}, Decision: models.DecisionApprove, Handle: c.Handle, Code: f.codes.code(c.Handle),
	})
	require.NoError(t, err)
	assert.Equal(t, models.IntentBatch, result.Intent)
	assert.Equal(t, 1, result.Succeeded)
}

func TestApproval_BatchLimits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, workflow.NewMachine(workflow.PolicyVeto, false))

	_, err := f.approvals.DecideBatch(ctx, alice, models.BatchDecisionRequest{OrderIDs: []string{" ", ""}, Decision: models.DecisionApprove, Handle: "h", Code: "123456"})
	assert.ErrorIs(t, err, errs.ErrEmptyBatch)

	many := make([]string, 11)
	for i := range many {
		many[i] = string(rune('a' + i))
	}
	_, err = f.approvals.RequestOTP(ctx, alice, models.OTPRequest{Operation: models.OpApproveOrder, Intent: models.IntentBatch, OrderIDs: many})
	assert.ErrorIs(t, err, errs.ErrBatchTooLarge)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, dedupe([]string{"b", " a ", "b", "", "a"}))
}
