package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/aquila-erp/invoice-extractor/internal/ledger"
	"github.com/aquila-erp/invoice-extractor/internal/pipeline"
)

// Service renders one extraction result as an XLSX workbook for the finance
// team: header fields, line items, and any ledger tables attached.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

const (
	sheetInvoice = "Invoice"
	sheetItems   = "Line Items"
	sheetLedger  = "Ledger"
)

// WorkbookBytes builds the workbook and returns its bytes.
func (s *Service) WorkbookBytes(res pipeline.Result) ([]byte, error) {
	start := time.Now()
	if res.Fields == nil {
		return nil, fmt.Errorf("no fields to export")
	}

	f := excelize.NewFile()
	// excelize starts with "Sheet1"; rename it to the invoice sheet
	if err := f.SetSheetName("Sheet1", sheetInvoice); err != nil {
		return nil, err
	}

	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	fields := res.Fields
	header := [][2]string{
		{"Invoice No", fields.InvoiceNo},
		{"Invoice Date", fields.InvoiceDate},
		{"PO Number", fields.PONumber},
		{"Order Number", fields.OrderNumber},
		{"Customer Name", fields.CustomerName},
		{"Customer Ref No", fields.CustomerRefNo},
		{"LPO Reference", fields.LPOReference},
		{"VATIN", fields.VATIN},
		{"Customer TRN", fields.CustomerTRN},
		{"Vendor Name", fields.VendorName},
		{"VAT %", fields.VATPercentage},
		{"Subtotal", fields.Subtotal},
		{"Total", fields.Total},
		{"Extraction Method", string(res.Method)},
		{"Model", res.Model},
	}
	for i, kv := range header {
		write(sheetInvoice, 1, i+1, kv[0])
		write(sheetInvoice, 2, i+1, kv[1])
	}

	if len(fields.Items) > 0 {
		if _, err := f.NewSheet(sheetItems); err != nil {
			return nil, err
		}
		itemCols := []string{"Item No", "Description", "Quantity", "Unit", "Unit Price", "Amount"}
		for i, h := range itemCols {
			write(sheetItems, i+1, 1, h)
		}
		for r, item := range fields.Items {
			row := r + 2
			write(sheetItems, 1, row, item.ItemNo)
			write(sheetItems, 2, row, item.ItemDescription)
			write(sheetItems, 3, row, item.Quantity)
			write(sheetItems, 4, row, item.Unit)
			write(sheetItems, 5, row, item.UnitPrice)
			write(sheetItems, 6, row, item.Amount)
		}
	}

	if res.HasLedgerData && res.Ledger != nil {
		if _, err := f.NewSheet(sheetLedger); err != nil {
			return nil, err
		}
		row := 1
		row = writeTable(f, write, "Vendor", res.Ledger.Vendor, row)
		_ = writeTable(f, write, "Purchase Order", res.Ledger.PO, row)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.ok",
		"invoice_no", fields.InvoiceNo,
		"items", len(fields.Items),
		"ledger", res.HasLedgerData,
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, write func(sheet string, col, row int, v any), title string, t *ledger.Table, startRow int) int {
	if t.Empty() {
		return startRow
	}
	row := startRow
	write(sheetLedger, 1, row, title)
	row++
	for i, c := range t.Columns {
		write(sheetLedger, i+1, row, c)
	}
	row++
	for _, r := range t.Rows {
		for i, v := range r {
			write(sheetLedger, i+1, row, v)
		}
		row++
	}
	return row + 1
}
