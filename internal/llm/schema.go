package llm

import (
	"encoding/json"
	"strings"
)

// ExtractionPrompt is the fixed schema-describing prompt for text-mode
// extraction. The invoice text is appended by Prompt.
const ExtractionPrompt = "You are given invoice data in various formats (text, PDF extraction, OCR, or raw text). Your task is to extract and output **only the valid JSON object** that strictly follows this format. Your output **must contain only the JSON object**, with **no additional text, explanations, comments, or markdown**. If a field is missing or empty, output it as an empty string \"\".\n\nThe structure should be exactly as follows:\n\n" + schemaBlock + "\n\nEnsure:\n- Invoice Number maybe numeric or character or mix. Do not skip invoiceNo\n- Invoice_Date is in the format `YYYY-MM-DD`.\n- If any field is missing, output it as an empty string.\n- If Items exist, the `Items` field must be an array with each object containing all six fields (Item_No, Item_Description, Quantity, Unit, Unit_Price, Amount).\n- **Do not include comments, explanations, markdown, or any extra text. Return only the JSON object.**\n"

const schemaBlock = `{
  "Invoice_No": "string",
  "Invoice_Date": "YYYY-MM-DD",
  "PO_Number": "string",
  "Order_Number": "string",
  "Customer_Name": "string",
  "Customer_RefNo": "entityId",
  "LPO_reference": "string",
  "VATIN": "string",
  "CustomerTRN": "string",
  "Vendor_Name": "string",
  "VAT_Percentage": "string",
  "Subtotal": "string",
  "Total": "string",
  "Items": [
    {
      "Item_No": "string",
      "Item_Description": "string",
      "Quantity": "string",
      "Unit": "string",
      "Unit_Price": "string",
      "Amount": "string"
    }
  ]
}`

// Prompt renders the text-mode prompt for one invoice.
func Prompt(invoiceText string) string {
	return ExtractionPrompt + "\ndata = " + invoiceText
}

// VisionPrompt is the abbreviated prompt used when sending an image
// directly to a vision-capable model.
func VisionPrompt() string {
	var b strings.Builder
	b.WriteString("Analyze this invoice image and extract the data into a JSON object.\n")
	b.WriteString("Focus on: Invoice_No, Invoice_Date, PO_Number, Vendor_Name, Total.\n")
	b.WriteString("Return ONLY valid JSON.\n")
	b.WriteString(ExtractionPrompt)
	return b.String()
}

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map, used to sanity-check model output locally.
func BuildInvoiceJSONSchema() map[string]any {
	str := map[string]any{"type": "string"}
	itemProps := map[string]any{
		"Item_No":          str,
		"Item_Description": str,
		"Quantity":         str,
		"Unit":             str,
		"Unit_Price":       str,
		"Amount":           str,
	}
	props := map[string]any{
		"Invoice_No":     str,
		"Invoice_Date":   str,
		"PO_Number":      str,
		"Order_Number":   str,
		"Customer_Name":  str,
		"Customer_RefNo": str,
		"LPO_reference":  str,
		"VATIN":          str,
		"CustomerTRN":    str,
		"Vendor_Name":    str,
		"VAT_Percentage": str,
		"Subtotal":       str,
		"Total":          str,
		"Items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":       "object",
				"properties": itemProps,
			},
		},
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

// SerializeFields renders the field map as JSON for downstream text scans
// (tax-ID extraction runs over this form).
func SerializeFields(f *InvoiceFields) string {
	if f == nil {
		return ""
	}
	b, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	return string(b)
}
