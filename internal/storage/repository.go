package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"propel/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// sqlite pragmas applied to every pooled connection.
const connPragmas = "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; transactions queue on the pool instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newRepository(db), nil
}

func newRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// WithTransaction runs fn inside a single transaction. The transaction is
// committed when fn returns nil and rolled back on error or panic.
func (r *SQLiteRepository) WithTransaction(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const fetchSessionsQuery = `
SELECT s.session_id, COALESCE(sb.billing_id, 0),
       st.student_id, d.gov_first_name, d.gov_last_name, COALESCE(d.pref_name, ''),
       st.tutor_id, t.gov_first_name, COALESCE(t.pref_name, ''),
       st.subjects, s.session_date, s.duration_hours,
       st.hourly_rate_cents, st.markup_cents
FROM sessions s
JOIN student_tutor st ON s.assignment_id = st.assignment_id
JOIN students d ON st.student_id = d.student_id
JOIN tutors t ON st.tutor_id = t.tutor_id
LEFT JOIN student_billing sb ON st.student_id = sb.student_id
WHERE s.session_date >= ? AND s.session_date < ?
ORDER BY s.session_date, s.session_id`

// FetchSessions returns every session dated inside period, joined with its
// assignment rates and student, tutor and billing identities.
func (r *SQLiteRepository) FetchSessions(ctx context.Context, period core.Period) ([]core.SessionRecord, error) {
	rows, err := r.db.QueryContext(ctx, fetchSessionsQuery, period.Start.String(), period.End.String())
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []core.SessionRecord
	for rows.Next() {
		var (
			rec        core.SessionRecord
			date       string
			hours      float64
			rateCents  int64
			markupCent int64
		)
		if err := rows.Scan(
			&rec.SessionID, &rec.BillingID,
			&rec.StudentID, &rec.StudentFirst, &rec.StudentLast, &rec.StudentPrefName,
			&rec.TutorID, &rec.TutorFirst, &rec.TutorPrefName,
			&rec.Subjects, &date, &hours,
			&rateCents, &markupCent,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if rec.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("session %d: %w", rec.SessionID, err)
		}
		rec.DurationHours = decimal.NewFromFloat(hours)
		rec.HourlyRate = core.FromCents(rateCents)
		rec.Markup = core.FromCents(markupCent)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	slog.DebugContext(ctx, "Fetched sessions", "period", period.String(), "count", len(out))
	return out, nil
}

// GetBillingAccount returns the account or ErrNotFound.
func (r *SQLiteRepository) GetBillingAccount(ctx context.Context, billingID int64) (core.BillingAccount, error) {
	acct := core.BillingAccount{ID: billingID}
	err := r.db.QueryRowContext(ctx,
		`SELECT display_name, email, first_invoice FROM billing_accounts WHERE billing_id = ?`,
		billingID,
	).Scan(&acct.DisplayName, &acct.Email, &acct.FirstInvoice)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BillingAccount{}, fmt.Errorf("billing account %d: %w", billingID, ErrNotFound)
	}
	if err != nil {
		return core.BillingAccount{}, fmt.Errorf("get billing account %d: %w", billingID, err)
	}
	return acct, nil
}

// ClearFirstInvoice flips first_invoice to false only if it is still true.
// It reports whether this call performed the flip.
func (r *SQLiteRepository) ClearFirstInvoice(ctx context.Context, billingID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE billing_accounts SET first_invoice = 0 WHERE billing_id = ? AND first_invoice = 1`,
		billingID,
	)
	if err != nil {
		return false, fmt.Errorf("clear first invoice flag for %d: %w", billingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// GetInvoice returns the invoice billed to billingID for the biweek starting at start.
func (r *SQLiteRepository) GetInvoice(ctx context.Context, billingID int64, start core.Date) (core.Invoice, error) {
	var (
		inv      core.Invoice
		hours    float64
		cents    int64
		biweek   string
		dateSent string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT invoice_id, billing_id, biweek_start, total_hours, total_amount_cents, date_sent
		 FROM invoices WHERE billing_id = ? AND biweek_start = ?`,
		billingID, start.String(),
	).Scan(&inv.ID, &inv.BillingID, &biweek, &hours, &cents, &dateSent)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, fmt.Errorf("invoice for %d at %s: %w", billingID, start, ErrNotFound)
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	if inv.BiweekStart, err = core.ParseDate(biweek); err != nil {
		return core.Invoice{}, err
	}
	if inv.DateSent, err = core.ParseDate(dateSent); err != nil {
		return core.Invoice{}, err
	}
	inv.TotalHours = decimal.NewFromFloat(hours)
	inv.TotalAmount = core.FromCents(cents)
	return inv, nil
}

// CountInvoices returns the number of invoices dated for the biweek starting at start.
func (r *SQLiteRepository) CountInvoices(ctx context.Context, start core.Date) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices WHERE biweek_start = ?`, start.String(),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count invoices: %w", err)
	}
	return n, nil
}

// GetPayroll returns the payroll header and entries for the biweek starting at start.
func (r *SQLiteRepository) GetPayroll(ctx context.Context, start core.Date) (core.Payroll, []core.PayrollEntry, error) {
	var (
		p                 core.Payroll
		hours             float64
		cents             int64
		biweek, gen, paid string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT payroll_id, biweek_start, total_hours, total_amount_cents, date_generated, date_paid
		 FROM payrolls WHERE biweek_start = ?`, start.String(),
	).Scan(&p.ID, &biweek, &hours, &cents, &gen, &paid)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Payroll{}, nil, fmt.Errorf("payroll at %s: %w", start, ErrNotFound)
	}
	if err != nil {
		return core.Payroll{}, nil, fmt.Errorf("get payroll: %w", err)
	}
	for _, f := range []struct {
		dst *core.Date
		src string
	}{{&p.BiweekStart, biweek}, {&p.DateGenerated, gen}, {&p.DatePaid, paid}} {
		if *f.dst, err = core.ParseDate(f.src); err != nil {
			return core.Payroll{}, nil, err
		}
	}
	p.TotalHours = decimal.NewFromFloat(hours)
	p.TotalAmount = core.FromCents(cents)

	rows, err := r.db.QueryContext(ctx,
		`SELECT tutor_id, total_hours, total_amount_cents FROM payroll_entries
		 WHERE payroll_id = ? ORDER BY tutor_id`, p.ID)
	if err != nil {
		return core.Payroll{}, nil, fmt.Errorf("query payroll entries: %w", err)
	}
	defer rows.Close()

	var entries []core.PayrollEntry
	for rows.Next() {
		e := core.PayrollEntry{PayrollID: p.ID}
		if err := rows.Scan(&e.TutorID, &hours, &cents); err != nil {
			return core.Payroll{}, nil, fmt.Errorf("scan payroll entry: %w", err)
		}
		e.TotalHours = decimal.NewFromFloat(hours)
		e.TotalAmount = core.FromCents(cents)
		entries = append(entries, e)
	}
	return p, entries, rows.Err()
}
