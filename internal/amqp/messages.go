package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"propel/internal/core"
)

// Event types, used as the AMQP message type.
const (
	EventInvoiceIssued    = "invoice.issued"
	EventPayrollGenerated = "payroll.generated"
)

// InvoiceIssuedMessage announces a newly created invoice.
type InvoiceIssuedMessage struct {
	MessageID        string    `json:"message_id"`
	RunID            string    `json:"run_id,omitempty"`
	InvoiceID        int64     `json:"invoice_id"`
	BillingID        int64     `json:"billing_id"`
	BiweekStart      string    `json:"biweek_start"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	Document         string    `json:"document"`
	Timestamp        time.Time `json:"timestamp"`
}

// PayrollGeneratedMessage announces a newly created payroll.
type PayrollGeneratedMessage struct {
	MessageID        string    `json:"message_id"`
	RunID            string    `json:"run_id,omitempty"`
	PayrollID        int64     `json:"payroll_id"`
	BiweekStart      string    `json:"biweek_start"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	DatePaid         string    `json:"date_paid"`
	Tutors           int       `json:"tutors"`
	Timestamp        time.Time `json:"timestamp"`
}

func NewInvoiceIssuedMessage(runID string, inv core.Invoice, document string) *InvoiceIssuedMessage {
	return &InvoiceIssuedMessage{
		MessageID:        uuid.NewString(),
		RunID:            runID,
		InvoiceID:        inv.ID,
		BillingID:        inv.BillingID,
		BiweekStart:      inv.BiweekStart.String(),
		TotalAmountCents: core.ToCents(inv.TotalAmount),
		Document:         document,
		Timestamp:        time.Now(),
	}
}

func NewPayrollGeneratedMessage(runID string, p core.Payroll, tutors int) *PayrollGeneratedMessage {
	return &PayrollGeneratedMessage{
		MessageID:        uuid.NewString(),
		RunID:            runID,
		PayrollID:        p.ID,
		BiweekStart:      p.BiweekStart.String(),
		TotalAmountCents: core.ToCents(p.TotalAmount),
		DatePaid:         p.DatePaid.String(),
		Tutors:           tutors,
		Timestamp:        time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvoiceIssuedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToJSON converts the message to JSON bytes
func (m *PayrollGeneratedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
