// Package render turns typed invoice and payroll views into documents on disk.
package render

import "context"

// Renderer writes a document for a view and returns its path.
type Renderer interface {
	RenderInvoice(ctx context.Context, v InvoiceView) (string, error)
	RenderPayroll(ctx context.Context, v PayrollView) (string, error)
}

// InvoiceView carries every pre-formatted field printed on an invoice.
type InvoiceView struct {
	InvoiceNumber string // zero padded, e.g. "0007"
	BillingID     string // zero padded, e.g. "03"
	InvoiceDate   string // "January 20, 2025"
	PeriodLabel   string // "Jan 06 - Jan 20, 2025"
	Students      string
	Subjects      string
	Lines         []InvoiceLine
	SessionCount  int
	TotalHours    string
	SessionTotal  string
	CurrentTab    string
	TotalDue      string
}

type InvoiceLine struct {
	Date    string
	Student string
	Tutor   string
	Hours   string
	Rate    string
	Amount  string
}

// PayrollView carries every pre-formatted field printed on a payroll statement.
type PayrollView struct {
	PayrollNumber string
	DateGenerated string
	DatePaid      string
	PeriodLabel   string
	Entries       []PayrollLine
	TotalHours    string
	TotalAmount   string
}

type PayrollLine struct {
	Tutor    string
	Sessions int
	Hours    string
	Students int
	Earned   string
}

// InvoiceFileName is the document name for an invoice, e.g. "INV-0007-03.pdf".
func InvoiceFileName(v InvoiceView) string {
	return "INV-" + v.InvoiceNumber + "-" + v.BillingID + ".pdf"
}

// PayrollFileName is the document name for a payroll, e.g. "PAY-0002.pdf".
func PayrollFileName(v PayrollView) string {
	return "PAY-" + v.PayrollNumber + ".pdf"
}
