package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"propel/internal/billing"
	"propel/internal/core"
	"propel/internal/notify"
	"propel/internal/services"
)

func TestPrintCycleReport(t *testing.T) {
	period := core.Biweek(core.NewDate(2025, 1, 6))
	rep := services.CycleReport{
		RunID:  "run-1",
		Ingest: &services.IngestReport{Read: 5, InPeriod: 4, Inserted: 3, Duplicates: 1},
		Invoices: services.InvoiceRunReport{
			RunID:  "run-1",
			Period: period,
			Accounts: []services.AccountOutcome{
				{BillingID: 1, Outcome: services.OutcomeCreated, InvoiceID: 7, Kind: notify.KindRecurring},
				{BillingID: 2, Outcome: services.OutcomeSendFailed, InvoiceID: 8, Err: errors.New("smtp down")},
			},
			Unbilled: 2,
		},
		Payroll: services.PayrollReport{Result: billing.PayrollResult{
			Payroll: core.Payroll{
				ID:          3,
				TotalHours:  decimal.RequireFromString("4.5"),
				TotalAmount: decimal.RequireFromString("1234.5"),
				DatePaid:    core.NewDate(2025, 1, 27),
			},
			Entries: make([]core.PayrollEntry, 2),
			Created: true,
		}},
	}

	var buf bytes.Buffer
	PrintCycleReport(&buf, rep)
	out := buf.String()

	assert.Contains(t, out, "3 inserted, 1 duplicate")
	assert.Contains(t, out, "Invoices for 2025-01-06")
	assert.Contains(t, out, "recurring")
	assert.Contains(t, out, "smtp down")
	assert.Contains(t, out, "1 created, 0 already billed, 0 failed, 1 send failed, 0 missing")
	assert.Contains(t, out, "2 sessions have no billing account")
	assert.Contains(t, out, "Payroll 3 created: 2 tutors, 4.50 hours, $1,234.50, paid 2025-01-27")
}

func TestPrintReports_Empty(t *testing.T) {
	var buf bytes.Buffer
	PrintInvoiceReport(&buf, services.InvoiceRunReport{Period: core.Biweek(core.NewDate(2025, 1, 6))})
	PrintPayrollReport(&buf, services.PayrollReport{Skipped: true})

	assert.Contains(t, buf.String(), "No billable sessions.")
	assert.Contains(t, buf.String(), "Payroll: no sessions, skipped")
}
