package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportService_Export(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, workflow.NewMachine(workflow.PolicyVeto, false))
	o := f.waitingOrder(t)
	_, err := f.orders.CreateDraft(ctx, operator, draftRequest())
	require.NoError(t, err)

	svc := NewExportService(f.store)
	var buf bytes.Buffer
	n, err := svc.Export(ctx, models.OrderFilter{Statuses: []models.OrderStatus{models.OrderWaitingForOwnersApproval}}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(ExportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Order ID", rows[0][0])
	assert.Equal(t, o.ID, rows[1][0])
	assert.Equal(t, "Waiting for owners approval", rows[1][3])
	assert.Equal(t, "GB82WEST12345698765432", rows[1][5])
	assert.Equal(t, "100.5", rows[1][7])
	assert.Equal(t, "Registered", rows[2][9])
}

func TestExportService_EmptyFilterStillHasHeader(t *testing.T) {
	f := newFixture(t, workflow.NewMachine(workflow.PolicyVeto, false))

	var buf bytes.Buffer
	n, err := NewExportService(f.store).Export(context.Background(), models.OrderFilter{AccountID: "none"}, &buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	rows, err := wb.GetRows(ExportSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
