package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"propel/internal/core"
	"propel/internal/services"
)

// PrintIngestReport writes the ingest counters.
func PrintIngestReport(w io.Writer, rep services.IngestReport) {
	fmt.Fprintf(w, "Sessions: %d read, %d in period, %d inserted, %d duplicate, %d unknown, %d invalid\n",
		rep.Read, rep.InPeriod, rep.Inserted, rep.Duplicates, rep.Unknown, rep.Invalid)
}

// PrintInvoiceReport writes one line per billing account.
func PrintInvoiceReport(w io.Writer, rep services.InvoiceRunReport) {
	fmt.Fprintf(w, "Invoices for %s (run %s)\n", rep.Period, rep.RunID)
	if len(rep.Accounts) == 0 {
		fmt.Fprintln(w, "No billable sessions.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BILLING\tOUTCOME\tINVOICE\tEMAIL\tERROR")
	for _, a := range rep.Accounts {
		invoice := "-"
		if a.InvoiceID != 0 {
			invoice = fmt.Sprintf("%d", a.InvoiceID)
		}
		kind := "-"
		if a.Kind != "" {
			kind = string(a.Kind)
		}
		errText := ""
		if a.Err != nil {
			errText = a.Err.Error()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.BillingID, a.Outcome, invoice, kind, errText)
	}
	tw.Flush()

	fmt.Fprintf(w, "%d created, %d already billed, %d failed, %d send failed, %d missing\n",
		rep.Count(services.OutcomeCreated),
		rep.Count(services.OutcomeAlreadyBilled),
		rep.Count(services.OutcomeFailed),
		rep.Count(services.OutcomeSendFailed),
		rep.Count(services.OutcomeAccountMissing))
	if rep.Unbilled > 0 {
		fmt.Fprintf(w, "%d sessions have no billing account and were not invoiced\n", rep.Unbilled)
	}
}

// PrintPayrollReport writes the payroll header.
func PrintPayrollReport(w io.Writer, rep services.PayrollReport) {
	if rep.Skipped {
		fmt.Fprintln(w, "Payroll: no sessions, skipped")
		return
	}
	p := rep.Result.Payroll
	state := "already generated"
	if rep.Result.Created {
		state = "created"
	}
	fmt.Fprintf(w, "Payroll %d %s: %d tutors, %s hours, %s, paid %s\n",
		p.ID, state, len(rep.Result.Entries),
		core.FormatHours(p.TotalHours), core.FormatMoney(p.TotalAmount), p.DatePaid)
}

// PrintCycleReport writes every stage of a cycle.
func PrintCycleReport(w io.Writer, rep services.CycleReport) {
	if rep.Ingest != nil {
		PrintIngestReport(w, *rep.Ingest)
	}
	PrintInvoiceReport(w, rep.Invoices)
	PrintPayrollReport(w, rep.Payroll)
}
