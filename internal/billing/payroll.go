package billing

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"propel/internal/core"
	"propel/internal/log"
	"propel/internal/render"
	"propel/internal/storage"
)

// PayrollResult describes the outcome of one Build call. Created is false
// when the period already has a payroll.
type PayrollResult struct {
	Payroll      core.Payroll
	Entries      []core.PayrollEntry
	Created      bool
	DocumentPath string
}

type PayrollBuilder struct {
	store    Store
	renderer render.Renderer
	now      func() time.Time
	logger   *log.Logger
}

func NewPayrollBuilder(store Store, renderer render.Renderer, logger *log.Logger) *PayrollBuilder {
	return &PayrollBuilder{
		store:    store,
		renderer: renderer,
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentPayroll),
	}
}

// WithClock overrides the clock used to date payrolls.
func (b *PayrollBuilder) WithClock(now func() time.Time) *PayrollBuilder {
	b.now = now
	return b
}

// Build writes the payroll header, one entry per tutor and the payroll
// document in one transaction. Each entry is rounded to cents and the header
// total is the sum of the rounded entries.
func (b *PayrollBuilder) Build(ctx context.Context, tutors []core.TutorSummary, period core.Period) (PayrollResult, error) {
	if len(tutors) == 0 {
		return PayrollResult{}, fmt.Errorf("payroll %s: %w", period.Start, ErrNoSessions)
	}

	generated := today(b.now)
	res := PayrollResult{
		Payroll: core.Payroll{
			BiweekStart:   period.Start,
			TotalHours:    decimal.Zero,
			TotalAmount:   decimal.Zero,
			DateGenerated: generated,
			DatePaid:      generated.AddDays(core.PayrollPaymentDelay),
		},
	}
	for _, t := range tutors {
		amount := t.TotalEarned.Round(2)
		res.Entries = append(res.Entries, core.PayrollEntry{
			TutorID:     t.TutorID,
			TotalHours:  t.NumHours,
			TotalAmount: amount,
		})
		res.Payroll.TotalHours = res.Payroll.TotalHours.Add(t.NumHours)
		res.Payroll.TotalAmount = res.Payroll.TotalAmount.Add(amount)
	}

	err := b.store.WithTransaction(ctx, func(tx *storage.Tx) error {
		id, created, err := tx.InsertPayrollIfAbsent(ctx, res.Payroll)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		res.Payroll.ID = id
		res.Created = true

		for i := range res.Entries {
			res.Entries[i].PayrollID = id
			if err := tx.InsertPayrollEntry(ctx, res.Entries[i]); err != nil {
				return err
			}
		}

		path, err := b.renderer.RenderPayroll(ctx, payrollView(res.Payroll, tutors, period))
		if err != nil {
			return fmt.Errorf("render payroll %d: %w", id, err)
		}
		res.DocumentPath = path
		return nil
	})
	if err != nil {
		if res.DocumentPath != "" {
			_ = os.Remove(res.DocumentPath)
		}
		b.logger.ErrorContext(ctx, "Payroll rolled back",
			log.NewFields().WithPeriod(period).WithError(err).ToSlice()...)
		return PayrollResult{}, err
	}

	if !res.Created {
		b.logger.InfoContext(ctx, "Payroll already exists for period, skipping",
			log.FieldPeriodStart, period.Start.String())
		return res, nil
	}

	b.logger.InfoContext(ctx, "Payroll created",
		append(log.NewFields().WithPayroll(res.Payroll).WithPeriod(period).ToSlice(), "tutors", len(res.Entries))...)
	return res, nil
}
