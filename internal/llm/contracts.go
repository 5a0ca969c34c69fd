package llm

import (
	"context"
	"time"
)

// LineItem is one invoice line. All values stay strings; "" when absent.
type LineItem struct {
	ItemNo          string `json:"Item_No"`
	ItemDescription string `json:"Item_Description"`
	Quantity        string `json:"Quantity"`
	Unit            string `json:"Unit"`
	UnitPrice       string `json:"Unit_Price"`
	Amount          string `json:"Amount"`
}

// InvoiceFields is the normalized field map extracted from one invoice.
// JSON tags mirror the schema the model is prompted with.
type InvoiceFields struct {
	InvoiceNo     string     `json:"Invoice_No"`
	InvoiceDate   string     `json:"Invoice_Date"` // YYYY-MM-DD
	PONumber      string     `json:"PO_Number"`
	OrderNumber   string     `json:"Order_Number"`
	CustomerName  string     `json:"Customer_Name"`
	CustomerRefNo string     `json:"Customer_RefNo"`
	LPOReference  string     `json:"LPO_reference"`
	VATIN         string     `json:"VATIN"`
	CustomerTRN   string     `json:"CustomerTRN"`
	VendorName    string     `json:"Vendor_Name"`
	VATPercentage string     `json:"VAT_Percentage"`
	Subtotal      string     `json:"Subtotal"`
	Total         string     `json:"Total"`
	Items         []LineItem `json:"Items"`
}

// Method identifies which extraction variant produced an outcome.
type Method string

const (
	MethodWorkflow Method = "workflow"
	MethodText     Method = "text"
	MethodVision   Method = "vision"
)

// Outcome is the shared result contract of every extraction variant.
// On failure Raw preserves the unparseable model output for diagnostics.
type Outcome struct {
	Success        bool
	Fields         *InvoiceFields
	Method         Method
	Model          string
	ProcessingTime time.Duration
	Error          string
	Raw            string
}

// FieldExtractor submits invoice content to a model and parses the response.
type FieldExtractor interface {
	// ExtractText runs text-mode extraction over already-extracted text.
	ExtractText(ctx context.Context, invoiceText string) Outcome
	// ExtractVision runs vision-mode extraction directly on an image file.
	ExtractVision(ctx context.Context, imagePath string) Outcome
}

// WorkflowExtractor posts the raw file to an external workflow endpoint.
type WorkflowExtractor interface {
	ExtractFile(ctx context.Context, path string) Outcome
}
