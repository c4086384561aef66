package registry

import "regexp"

// CurrencySymbols maps common currency glyphs to ISO 4217 codes during value
// post-processing.
var CurrencySymbols = map[string]string{
	"$": "USD",
	"£": "GBP",
	"€": "EUR",
	"₹": "INR",
}

func rx(p string) *regexp.Regexp { return regexp.MustCompile(`(?im)` + p) }

// Default returns the built-in billing-document field catalog.
func Default() *Registry {
	return New([]FieldDefinition{
		{
			Key:    "invoice_number",
			Label:  "Invoice Number",
			Detect: rx(`(?:invoice|inv|bill|receipt|ref(?:erence)?)\s*(?:#|no\.?|number|num|id)`),
			Values: []*regexp.Regexp{
				rx(`(?:invoice|inv|bill|receipt|ref(?:erence)?)\s*(?:#|no\.?|number|num|id)?[:\s\-]*([A-Z0-9][\w\-\/]{2,20})`),
			},
			BaseConfidence: 88,
		},
		{
			Key:    "date",
			Label:  "Date",
			Detect: rx(`\bdate\b`),
			Values: []*regexp.Regexp{
				rx(`(?:invoice\s*)?date\s*[:\-]?\s*(\d{1,2}[\/\-\.]\d{1,2}[\/\-\.]\d{2,4})`),
				rx(`(?:invoice\s*)?date\s*[:\-]?\s*(\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*[\s,]*\d{2,4})`),
				rx(`(?:invoice\s*)?date\s*[:\-]?\s*((?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{1,2}[\s,]*\d{2,4})`),
				rx(`(\d{4}[\/\-]\d{1,2}[\/\-]\d{1,2})`),
				rx(`(\d{1,2}[\/\-\.]\d{1,2}[\/\-\.]\d{2,4})`),
			},
			BaseConfidence: 82,
		},
		{
			Key:    "due_date",
			Label:  "Due Date",
			Detect: rx(`(?:due|payment)\s*date|due\s*[:\-]`),
			Values: []*regexp.Regexp{
				rx(`(?:due|payment)\s*date\s*[:\-]?\s*(\d{1,2}[\/\-\.]\d{1,2}[\/\-\.]\d{2,4})`),
				rx(`(?:due|payment)\s*date\s*[:\-]?\s*(\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*[\s,]*\d{2,4})`),
				rx(`due\s*[:\-]?\s*(\d{1,2}[\/\-\.]\d{1,2}[\/\-\.]\d{2,4})`),
			},
			BaseConfidence: 84,
		},
		{
			Key:    "total_amount",
			Label:  "Total Amount",
			Detect: rx(`total|amount\s*(?:due|payable)|balance\s*due`),
			Values: []*regexp.Regexp{
				rx(`(?:grand\s*)?total\s*(?:amount|due|payable)?\s*[:\-]?\s*[$£€₹]?\s*([\d,]+\.?\d{0,2})`),
				rx(`amount\s*(?:due|payable)\s*[:\-]?\s*[$£€₹]?\s*([\d,]+\.?\d{0,2})`),
				rx(`balance\s*due\s*[:\-]?\s*[$£€₹]?\s*([\d,]+\.?\d{0,2})`),
				rx(`total\s*[:\-]?\s*[$£€₹]\s*([\d,]+\.?\d{0,2})`),
			},
			BaseConfidence: 85,
		},
		{
			Key:    "subtotal",
			Label:  "Subtotal",
			Detect: rx(`sub\s*[-]?\s*total|net\s*(?:amount|total)`),
			Values: []*regexp.Regexp{
				rx(`sub\s*[-]?\s*total\s*[:\-]?\s*[$£€₹]?\s*([\d,]+\.?\d{0,2})`),
				rx(`net\s*(?:amount|total)\s*[:\-]?\s*[$£€₹]?\s*([\d,]+\.?\d{0,2})`),
			},
			BaseConfidence: 80,
		},
		{
			Key:    "tax_amount",
			Label:  "Tax Amount",
			Detect: rx(`\btax\b|\b(?:vat|gst|cgst|sgst|igst)\b`),
			Values: []*regexp.Regexp{
				rx(`(?:sales\s*)?tax\s*(?:amount)?\s*[:\-]?\s*[$£€₹]?\s*([\d,]+\.?\d{0,2})`),
				rx(`(?:vat|gst|cgst|sgst|igst)\s*(?:amount)?\s*[:\-]?\s*[$£€₹]?\s*([\d,]+\.?\d{0,2})`),
				rx(`tax\s*\(?\d*%?\)?\s*[:\-]?\s*[$£€₹]?\s*([\d,]+\.?\d{0,2})`),
			},
			BaseConfidence: 80,
		},
		{
			Key:    "vendor_name",
			Label:  "Vendor / Company",
			Detect: rx(`\b(?:from|vendor|seller|company|billed?\s*by|issued\s*by)\b`),
			Values: []*regexp.Regexp{
				rx(`(?:from|vendor|seller|company|billed?\s*by|issued\s*by)\s*[:\-]?\s*(.{3,80})`),
				rx(`^([A-Z][A-Za-z\s&.,]+(?:Inc|LLC|Ltd|Corp|Co|Pvt|Limited|LLP)?\.?)$`),
			},
			BaseConfidence: 68,
			MaxLength:      100,
		},
		{
			Key:    "customer_name",
			Label:  "Customer / Bill To",
			Detect: rx(`bill\s*to|customer|client|sold\s*to|ship\s*to|buyer|attn|attention`),
			Values: []*regexp.Regexp{
				rx(`(?:bill\s*to|customer|client|sold\s*to|ship\s*to|buyer)\s*[:\-]?\s*(.{3,80})`),
				rx(`(?:attn|attention)\s*[:\-]?\s*(.{3,60})`),
			},
			BaseConfidence: 72,
			MaxLength:      100,
		},
		{
			Key:    "currency",
			Label:  "Currency",
			Detect: rx(`currency|\b(?:USD|EUR|GBP|INR|AUD|CAD|JPY|AED|SGD)\b|[$£€₹]`),
			Values: []*regexp.Regexp{
				rx(`currency\s*[:\-]?\s*([A-Z]{3})`),
				rx(`\b(USD|EUR|GBP|INR|AUD|CAD|JPY|AED|SGD)\b`),
				rx(`([$£€₹])`),
			},
			BaseConfidence: 78,
		},
		{
			Key:    "payment_method",
			Label:  "Payment Method",
			Detect: rx(`payment\s*(?:method|mode|type|via|terms?)|paid?\s*(?:by|via|through)`),
			Values: []*regexp.Regexp{
				rx(`payment\s*(?:method|mode|type|via|terms?)\s*[:\-]?\s*(.{3,60})`),
				rx(`(?:paid?\s*(?:by|via|through))\s*[:\-]?\s*(.{3,40})`),
			},
			BaseConfidence: 72,
			MaxLength:      60,
		},
		{
			Key:    "po_number",
			Label:  "PO Number",
			Detect: rx(`purchase\s*order|\bp\.?o\.?\b`),
			Values: []*regexp.Regexp{
				rx(`(?:purchase\s*order|p\.?o\.?)\s*(?:#|no\.?|number)?\s*[:\-]?\s*([A-Z0-9][\w\-\/]{2,20})`),
			},
			BaseConfidence: 82,
		},
		{
			Key:    "address",
			Label:  "Address",
			Detect: rx(`\baddress\b`),
			Values: []*regexp.Regexp{
				rx(`address\s*[:\-]?\s*(.+(?:\n.+){0,3})`),
			},
			BaseConfidence: 62,
			MaxLength:      200,
		},
	})
}
