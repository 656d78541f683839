package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"propel/internal/core"
)

// Tx exposes the billing writes that must happen atomically.
type Tx struct {
	tx *sql.Tx
}

const currentTabQuery = `
SELECT
  COALESCE((SELECT SUM(total_amount_cents) FROM invoices
            WHERE billing_id = ? AND biweek_start < ?), 0)
  -
  COALESCE((SELECT SUM(p.amount_cents) FROM payments p
            JOIN invoices i ON p.invoice_id = i.invoice_id
            WHERE i.billing_id = ? AND i.biweek_start < ?), 0)`

// CurrentTab returns what billingID still owes from invoices for biweeks
// starting strictly before before.
func (t *Tx) CurrentTab(ctx context.Context, billingID int64, before core.Date) (decimal.Decimal, error) {
	var cents int64
	err := t.tx.QueryRowContext(ctx, currentTabQuery,
		billingID, before.String(), billingID, before.String(),
	).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("current tab for %d: %w", billingID, err)
	}
	return core.FromCents(cents), nil
}

// InsertInvoiceIfAbsent inserts inv unless one already exists for the same
// account and biweek. created is false when the row already existed.
func (t *Tx) InsertInvoiceIfAbsent(ctx context.Context, inv core.Invoice) (id int64, created bool, err error) {
	err = t.tx.QueryRowContext(ctx,
		`INSERT INTO invoices (billing_id, biweek_start, total_hours, total_amount_cents, date_sent)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (billing_id, biweek_start) DO NOTHING
		 RETURNING invoice_id`,
		inv.BillingID, inv.BiweekStart.String(), inv.TotalHours.InexactFloat64(),
		core.ToCents(inv.TotalAmount), inv.DateSent.String(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert invoice for %d: %w", inv.BillingID, err)
	}
	return id, true, nil
}

// InsertPayrollIfAbsent inserts the payroll header unless the biweek already
// has one.
func (t *Tx) InsertPayrollIfAbsent(ctx context.Context, p core.Payroll) (id int64, created bool, err error) {
	err = t.tx.QueryRowContext(ctx,
		`INSERT INTO payrolls (biweek_start, total_hours, total_amount_cents, date_generated, date_paid)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (biweek_start) DO NOTHING
		 RETURNING payroll_id`,
		p.BiweekStart.String(), p.TotalHours.InexactFloat64(), core.ToCents(p.TotalAmount),
		p.DateGenerated.String(), p.DatePaid.String(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert payroll: %w", err)
	}
	return id, true, nil
}

func (t *Tx) InsertPayrollEntry(ctx context.Context, e core.PayrollEntry) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO payroll_entries (payroll_id, tutor_id, total_hours, total_amount_cents)
		 VALUES (?, ?, ?, ?)`,
		e.PayrollID, e.TutorID, e.TotalHours.InexactFloat64(), core.ToCents(e.TotalAmount),
	)
	if err != nil {
		return fmt.Errorf("insert payroll entry for tutor %d: %w", e.TutorID, err)
	}
	return nil
}
