package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"propel/internal/core"
	"propel/internal/render"
)

const (
	longDateLayout  = "January 02, 2006"
	shortDateLayout = "Jan 02"
)

// PeriodLabel renders a period as "Jan 06 - Jan 20, 2025".
func PeriodLabel(p core.Period) string {
	return p.Start.Format(shortDateLayout) + " - " + p.End.Format(shortDateLayout+", 2006")
}

func longDate(d core.Date) string {
	return d.Format(longDateLayout)
}

func invoiceView(sum core.AccountSummary, inv core.Invoice, period core.Period, tab, due decimal.Decimal) render.InvoiceView {
	v := render.InvoiceView{
		InvoiceNumber: fmt.Sprintf("%04d", inv.ID),
		BillingID:     fmt.Sprintf("%02d", inv.BillingID),
		InvoiceDate:   longDate(inv.DateSent),
		PeriodLabel:   PeriodLabel(period),
		Students:      strings.Join(sum.StudentNames, ", "),
		Subjects:      strings.Join(sum.Subjects, ", "),
		SessionCount:  sum.SessionCount,
		TotalHours:    core.FormatHours(sum.TotalHours),
		SessionTotal:  core.FormatMoney(sum.SessionTotal),
		CurrentTab:    core.FormatMoney(tab),
		TotalDue:      core.FormatMoney(due),
	}
	for _, s := range sum.Sessions {
		v.Lines = append(v.Lines, render.InvoiceLine{
			Date:    s.Date.String(),
			Student: s.StudentName,
			Tutor:   s.TutorName,
			Hours:   core.FormatHours(s.DurationHours),
			Rate:    core.FormatMoney(s.HourlyRate.Add(s.Markup)),
			Amount:  core.FormatMoney(s.TotalFee),
		})
	}
	return v
}

func payrollView(p core.Payroll, tutors []core.TutorSummary, period core.Period) render.PayrollView {
	v := render.PayrollView{
		PayrollNumber: fmt.Sprintf("%04d", p.ID),
		DateGenerated: longDate(p.DateGenerated),
		DatePaid:      longDate(p.DatePaid),
		PeriodLabel:   PeriodLabel(period),
		TotalHours:    core.FormatHours(p.TotalHours),
		TotalAmount:   core.FormatMoney(p.TotalAmount),
	}
	for _, t := range tutors {
		v.Entries = append(v.Entries, render.PayrollLine{
			Tutor:    t.TutorName,
			Sessions: t.NumSessions,
			Hours:    core.FormatHours(t.NumHours),
			Students: t.NumStudents,
			Earned:   core.FormatMoney(t.TotalEarned),
		})
	}
	return v
}

func today(now func() time.Time) core.Date {
	return core.DateOf(now())
}
