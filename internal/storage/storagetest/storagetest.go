// Package storagetest provides a migrated throwaway SQLite database and
// seeding helpers for tests.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"propel/internal/core"
	"propel/internal/storage"
)

// NewRepository opens a fresh, fully migrated database under t.TempDir.
func NewRepository(t testing.TB) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "propel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// Fixture seeds rows and fails the test on any error.
type Fixture struct {
	t    testing.TB
	Repo *storage.SQLiteRepository
}

func NewFixture(t testing.TB) *Fixture {
	return &Fixture{t: t, Repo: NewRepository(t)}
}

func (f *Fixture) Student(first, last, pref string) int64 {
	f.t.Helper()
	id, err := f.Repo.CreateStudent(context.Background(), core.Student{FirstName: first, LastName: last, PrefName: pref})
	require.NoError(f.t, err)
	return id
}

func (f *Fixture) Tutor(first, pref string) int64 {
	f.t.Helper()
	id, err := f.Repo.CreateTutor(context.Background(), core.Tutor{FirstName: first, LastName: "Tutor", PrefName: pref})
	require.NoError(f.t, err)
	return id
}

func (f *Fixture) Account(name, email string, firstInvoice bool) int64 {
	f.t.Helper()
	id, err := f.Repo.CreateBillingAccount(context.Background(), core.BillingAccount{
		DisplayName: name, Email: email, FirstInvoice: firstInvoice,
	})
	require.NoError(f.t, err)
	return id
}

func (f *Fixture) Link(studentID, billingID int64) {
	f.t.Helper()
	require.NoError(f.t, f.Repo.LinkStudentBilling(context.Background(), studentID, billingID))
}

func (f *Fixture) Assign(studentID, tutorID int64, rate, markup, subjects string) int64 {
	f.t.Helper()
	id, err := f.Repo.CreateAssignment(context.Background(), core.Assignment{
		StudentID:  studentID,
		TutorID:    tutorID,
		HourlyRate: decimal.RequireFromString(rate),
		Markup:     decimal.RequireFromString(markup),
		Subjects:   subjects,
	})
	require.NoError(f.t, err)
	return id
}

func (f *Fixture) Session(assignmentID int64, date string, hours float64) {
	f.t.Helper()
	d, err := core.ParseDate(date)
	require.NoError(f.t, err)
	inserted, err := f.Repo.InsertSession(context.Background(), assignmentID, d, hours)
	require.NoError(f.t, err)
	require.True(f.t, inserted, "session %d on %s already present", assignmentID, date)
}

func (f *Fixture) Payment(invoiceID int64, amount, date string) {
	f.t.Helper()
	d, err := core.ParseDate(date)
	require.NoError(f.t, err)
	_, err = f.Repo.RecordPayment(context.Background(), core.Payment{
		InvoiceID: invoiceID, Amount: decimal.RequireFromString(amount), PaidOn: d,
	})
	require.NoError(f.t, err)
}

// Family seeds one billing account paying for one student taught by one
// tutor at rate+markup, and returns the billing and assignment ids.
func (f *Fixture) Family(name, email string, firstInvoice bool, rate, markup string) (billingID, assignmentID int64) {
	f.t.Helper()
	student := f.Student(name, "Student", "")
	tutor := f.Tutor(name+"-tutor", "")
	billingID = f.Account(name+" Family", email, firstInvoice)
	f.Link(student, billingID)
	return billingID, f.Assign(student, tutor, rate, markup, "Math")
}
