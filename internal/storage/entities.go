package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"propel/internal/core"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *SQLiteRepository) CreateStudent(ctx context.Context, s core.Student) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO students (student_id, gov_first_name, gov_last_name, pref_name) VALUES (NULLIF(?, 0), ?, ?, ?)`,
		s.ID, s.FirstName, s.LastName, nullString(s.PrefName),
	)
	if err != nil {
		return 0, fmt.Errorf("create student: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) CreateTutor(ctx context.Context, t core.Tutor) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tutors (tutor_id, gov_first_name, gov_last_name, pref_name, email) VALUES (NULLIF(?, 0), ?, ?, ?, ?)`,
		t.ID, t.FirstName, t.LastName, nullString(t.PrefName), t.Email,
	)
	if err != nil {
		return 0, fmt.Errorf("create tutor: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) CreateBillingAccount(ctx context.Context, a core.BillingAccount) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO billing_accounts (billing_id, display_name, email, first_invoice) VALUES (NULLIF(?, 0), ?, ?, ?)`,
		a.ID, a.DisplayName, a.Email, a.FirstInvoice,
	)
	if err != nil {
		return 0, fmt.Errorf("create billing account: %w", err)
	}
	return res.LastInsertId()
}

// LinkStudentBilling attaches a student to the account that pays for them.
func (r *SQLiteRepository) LinkStudentBilling(ctx context.Context, studentID, billingID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO student_billing (student_id, billing_id) VALUES (?, ?)`,
		studentID, billingID,
	); err != nil {
		return fmt.Errorf("link student %d to billing %d: %w", studentID, billingID, err)
	}
	return nil
}

func (r *SQLiteRepository) CreateAssignment(ctx context.Context, a core.Assignment) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO student_tutor (assignment_id, student_id, tutor_id, hourly_rate_cents, markup_cents, subjects)
		 VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?)`,
		a.ID, a.StudentID, a.TutorID, core.ToCents(a.HourlyRate), core.ToCents(a.Markup), a.Subjects,
	)
	if err != nil {
		return 0, fmt.Errorf("create assignment: %w", err)
	}
	return res.LastInsertId()
}

// FindAssignment returns the assignment pairing studentID with tutorID, or ErrNotFound.
func (r *SQLiteRepository) FindAssignment(ctx context.Context, studentID, tutorID int64) (core.Assignment, error) {
	a := core.Assignment{StudentID: studentID, TutorID: tutorID}
	var rate, markup int64
	err := r.db.QueryRowContext(ctx,
		`SELECT assignment_id, hourly_rate_cents, markup_cents, subjects
		 FROM student_tutor WHERE student_id = ? AND tutor_id = ?`,
		studentID, tutorID,
	).Scan(&a.ID, &rate, &markup, &a.Subjects)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Assignment{}, fmt.Errorf("assignment student=%d tutor=%d: %w", studentID, tutorID, ErrNotFound)
	}
	if err != nil {
		return core.Assignment{}, fmt.Errorf("find assignment: %w", err)
	}
	a.HourlyRate = core.FromCents(rate)
	a.Markup = core.FromCents(markup)
	return a, nil
}

// InsertSession records a session unless the assignment already has one on
// that date. It reports whether a row was inserted.
func (r *SQLiteRepository) InsertSession(ctx context.Context, assignmentID int64, date core.Date, hours float64) (bool, error) {
	if err := core.ValidateDuration(decimal.NewFromFloat(hours)); err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (assignment_id, session_date, duration_hours) VALUES (?, ?, ?)
		 ON CONFLICT (assignment_id, session_date) DO NOTHING`,
		assignmentID, date.String(), hours,
	)
	if err != nil {
		return false, fmt.Errorf("insert session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		slog.DebugContext(ctx, "Session recorded", "assignment_id", assignmentID, "date", date.String(), "hours", hours)
	}
	return n == 1, nil
}

// RecordPayment stores a payment against an invoice.
func (r *SQLiteRepository) RecordPayment(ctx context.Context, p core.Payment) (int64, error) {
	if !p.Amount.IsPositive() {
		return 0, fmt.Errorf("%w: payment must be positive", core.ErrInvalidAmount)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (invoice_id, amount_cents, paid_on) VALUES (?, ?, ?)`,
		p.InvoiceID, core.ToCents(p.Amount), p.PaidOn.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("record payment for invoice %d: %w", p.InvoiceID, err)
	}
	return res.LastInsertId()
}
