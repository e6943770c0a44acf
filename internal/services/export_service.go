package services

import (
	"context"
	"fmt"
	"io"

	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/repository"
	"github.com/xuri/excelize/v2"
)

const (
	ExportSheet       = "Transactions"
	ExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var exportHeader = []any{
	"Order ID", "Order Title", "Account ID", "Order Status", "Seq",
	"Destination IBAN", "Beneficiary", "Amount", "Currency", "Item Status", "Bank Reference", "Created At",
}

// ExportService writes filtered line items to an XLSX workbook.
type ExportService struct {
	store repository.Reader
}

func NewExportService(store repository.Reader) *ExportService {
	return &ExportService{store: store}
}

// Export writes one row per line item matching f, after a header row.
func (s *ExportService) Export(ctx context.Context, f models.OrderFilter, w io.Writer) (int, error) {
	rows, err := s.store.ExportRows(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("load export rows: %w", err)
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", ExportSheet); err != nil {
		return 0, err
	}
	if err := file.SetSheetRow(ExportSheet, "A1", &exportHeader); err != nil {
		return 0, err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		values := []any{
			r.OrderID, r.OrderTitle, r.AccountID, r.OrderStatus.Label(), r.Seq,
			r.DestinationIBAN, r.BeneficiaryName, r.Amount.InexactFloat64(), r.Currency,
			r.ItemStatus.Label(), r.BankReference, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := file.SetSheetRow(ExportSheet, cell, &values); err != nil {
			return 0, err
		}
	}
	if err := file.SetPanes(ExportSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return 0, err
	}

	if _, err := file.WriteTo(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(rows), nil
}
