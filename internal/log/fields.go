package log

import "propel/internal/core"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRunID       = "run_id"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldDuration    = "duration_ms"
	FieldPeriodStart = "period_start"
	FieldPeriodEnd   = "period_end"
	FieldBillingID   = "billing_id"
	FieldInvoiceID   = "invoice_id"
	FieldPayrollID   = "payroll_id"
	FieldTutorID     = "tutor_id"
	FieldAmountCents = "amount_cents"
	FieldDocument    = "document"
	FieldRecipient   = "recipient"
	FieldOutcome     = "outcome"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentCycle     = "cycle"
	ComponentLedger    = "ledger"
	ComponentInvoice   = "invoice"
	ComponentPayroll   = "payroll"
	ComponentNotify    = "notify"
	ComponentIngest    = "ingest"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentArchive   = "archive"
	ComponentMetrics   = "metrics"
	ComponentScheduler = "scheduler"
	ComponentSheets    = "sheets"
)

// Operations defines standard operation names
const (
	OpIngest   = "ingest"
	OpInvoice  = "invoice"
	OpPayroll  = "payroll"
	OpSend     = "send"
	OpRender   = "render"
	OpArchive  = "archive"
	OpPublish  = "publish"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPeriod adds the period bounds
func (f LogFields) WithPeriod(p core.Period) LogFields {
	f[FieldPeriodStart] = p.Start.String()
	f[FieldPeriodEnd] = p.End.String()
	return f
}

// WithInvoice adds invoice identity and amount
func (f LogFields) WithInvoice(inv core.Invoice) LogFields {
	f[FieldBillingID] = inv.BillingID
	if inv.ID != 0 {
		f[FieldInvoiceID] = inv.ID
	}
	f[FieldAmountCents] = core.ToCents(inv.TotalAmount)
	return f
}

// WithPayroll adds payroll identity and amount
func (f LogFields) WithPayroll(p core.Payroll) LogFields {
	if p.ID != 0 {
		f[FieldPayrollID] = p.ID
	}
	f[FieldAmountCents] = core.ToCents(p.TotalAmount)
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
