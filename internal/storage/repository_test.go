package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propel/internal/core"
	"propel/internal/storage"
	"propel/internal/storage/storagetest"
)

var biweek = core.Biweek(core.NewDate(2025, 1, 6))

func TestFetchSessions_HalfOpenPeriodAndJoins(t *testing.T) {
	f := storagetest.NewFixture(t)
	ctx := context.Background()

	student := f.Student("Robert", "Smith", "Bobby")
	tutor := f.Tutor("Katherine", "Kate")
	billing := f.Account("Smith Family", "smith@example.com", true)
	f.Link(student, billing)
	assignment := f.Assign(student, tutor, "40", "10", "Math, Physics")

	f.Session(assignment, "2025-01-05", 1) // before
	f.Session(assignment, "2025-01-06", 1.5)
	f.Session(assignment, "2025-01-19", 1)
	f.Session(assignment, "2025-01-20", 1) // next period

	got, err := f.Repo.FetchSessions(ctx, biweek)
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, billing, first.BillingID)
	assert.Equal(t, "Robert", first.StudentFirst)
	assert.Equal(t, "Bobby", first.StudentPrefName)
	assert.Equal(t, "Kate", first.TutorPrefName)
	assert.Equal(t, "Math, Physics", first.Subjects)
	assert.Equal(t, "2025-01-06", first.Date.String())
	assert.True(t, first.DurationHours.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, first.HourlyRate.Equal(decimal.NewFromInt(40)))
	assert.True(t, first.Markup.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "2025-01-19", got[1].Date.String())
}

func TestFetchSessions_UnbilledStudentHasZeroBillingID(t *testing.T) {
	f := storagetest.NewFixture(t)
	student := f.Student("Ana", "Lee", "")
	tutor := f.Tutor("Sam", "")
	assignment := f.Assign(student, tutor, "30", "0", "Chem")
	f.Session(assignment, "2025-01-07", 1)

	got, err := f.Repo.FetchSessions(context.Background(), biweek)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Zero(t, got[0].BillingID)
}

func TestInsertSession_IsIdempotentAndValidates(t *testing.T) {
	f := storagetest.NewFixture(t)
	ctx := context.Background()
	_, assignment := f.Family("Kim", "kim@example.com", true, "40", "0")

	d := core.NewDate(2025, 1, 8)
	inserted, err := f.Repo.InsertSession(ctx, assignment, d, 1)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = f.Repo.InsertSession(ctx, assignment, d, 1)
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = f.Repo.InsertSession(ctx, assignment, core.NewDate(2025, 1, 9), 0.3)
	assert.ErrorIs(t, err, core.ErrInvalidDuration)
}

func TestCurrentTab_PriorInvoicesMinusPayments(t *testing.T) {
	f := storagetest.NewFixture(t)
	ctx := context.Background()
	billing, _ := f.Family("Park", "park@example.com", false, "40", "0")

	var ids []int64
	err := f.Repo.WithTransaction(ctx, func(tx *storage.Tx) error {
		for i, amount := range []string{"100", "80", "50"} {
			id, created, err := tx.InsertInvoiceIfAbsent(ctx, core.Invoice{
				BillingID:   billing,
				BiweekStart: core.NewDate(2024, 12, 9).AddDays(14 * i),
				TotalHours:  decimal.NewFromInt(2),
				TotalAmount: decimal.RequireFromString(amount),
				DateSent:    core.NewDate(2024, 12, 23).AddDays(14 * i),
			})
			if err != nil {
				return err
			}
			require.True(t, created)
			ids = append(ids, id)
		}
		return nil
	})
	require.NoError(t, err)
	f.Payment(ids[0], "60", "2024-12-30")
	f.Payment(ids[2], "30", "2025-01-10")

	// Invoices at 12-09 and 12-23 are before 2025-01-06; the one at 01-06 and
	// its payment are not: 100 + 80 - 60.
	err = f.Repo.WithTransaction(ctx, func(tx *storage.Tx) error {
		tab, err := tx.CurrentTab(ctx, billing, core.NewDate(2025, 1, 6))
		require.NoError(t, err)
		assert.Equal(t, "120.00", tab.StringFixed(2))

		next, err := tx.CurrentTab(ctx, billing, core.NewDate(2025, 1, 20))
		require.NoError(t, err)
		assert.Equal(t, "140.00", next.StringFixed(2), "100 + 80 + 50 - 60 - 30")

		other, err := tx.CurrentTab(ctx, billing+100, core.NewDate(2025, 1, 6))
		require.NoError(t, err)
		assert.True(t, other.IsZero())
		return nil
	})
	require.NoError(t, err)
}

func TestInsertInvoiceIfAbsent_SecondInsertIsNoOp(t *testing.T) {
	f := storagetest.NewFixture(t)
	ctx := context.Background()
	billing, _ := f.Family("Diaz", "diaz@example.com", true, "40", "0")
	inv := core.Invoice{
		BillingID:   billing,
		BiweekStart: biweek.Start,
		TotalHours:  decimal.NewFromInt(1),
		TotalAmount: decimal.NewFromInt(40),
		DateSent:    biweek.End,
	}

	var ids []int64
	for i := 0; i < 2; i++ {
		err := f.Repo.WithTransaction(ctx, func(tx *storage.Tx) error {
			id, created, err := tx.InsertInvoiceIfAbsent(ctx, inv)
			if created {
				ids = append(ids, id)
			}
			return err
		})
		require.NoError(t, err)
	}
	require.Len(t, ids, 1)

	n, err := f.Repo.CountInvoices(ctx, biweek.Start)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := f.Repo.GetInvoice(ctx, billing, biweek.Start)
	require.NoError(t, err)
	assert.Equal(t, ids[0], stored.ID)
	assert.Equal(t, "40.00", stored.TotalAmount.StringFixed(2))
}

func TestInvoiceNumbers_SharedAndGapFreeAcrossRollback(t *testing.T) {
	f := storagetest.NewFixture(t)
	ctx := context.Background()
	a, _ := f.Family("A", "a@example.com", true, "40", "0")
	b, _ := f.Family("B", "b@example.com", true, "40", "0")
	c, _ := f.Family("C", "c@example.com", true, "40", "0")

	insert := func(billing int64, fail bool) (int64, error) {
		var id int64
		err := f.Repo.WithTransaction(ctx, func(tx *storage.Tx) error {
			var err error
			id, _, err = tx.InsertInvoiceIfAbsent(ctx, core.Invoice{
				BillingID: billing, BiweekStart: biweek.Start,
				TotalHours: decimal.NewFromInt(1), TotalAmount: decimal.NewFromInt(40), DateSent: biweek.End,
			})
			if err != nil {
				return err
			}
			if fail {
				return errors.New("render failed")
			}
			return nil
		})
		return id, err
	}

	idA, err := insert(a, false)
	require.NoError(t, err)
	_, err = insert(b, true)
	require.Error(t, err)
	idC, err := insert(c, false)
	require.NoError(t, err)

	assert.Equal(t, idA+1, idC)
	_, err = f.Repo.GetInvoice(ctx, b, biweek.Start)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClearFirstInvoice_IsGuarded(t *testing.T) {
	f := storagetest.NewFixture(t)
	ctx := context.Background()
	billing := f.Account("Nguyen", "nguyen@example.com", true)

	flipped, err := f.Repo.ClearFirstInvoice(ctx, billing)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = f.Repo.ClearFirstInvoice(ctx, billing)
	require.NoError(t, err)
	assert.False(t, flipped)

	acct, err := f.Repo.GetBillingAccount(ctx, billing)
	require.NoError(t, err)
	assert.False(t, acct.FirstInvoice)

	_, err = f.Repo.GetBillingAccount(ctx, billing+1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPayroll_HeaderAndEntries(t *testing.T) {
	f := storagetest.NewFixture(t)
	ctx := context.Background()
	tutor := f.Tutor("Lee", "")

	p := core.Payroll{
		BiweekStart:   biweek.Start,
		TotalHours:    decimal.RequireFromString("3.5"),
		TotalAmount:   decimal.NewFromInt(140),
		DateGenerated: biweek.End,
		DatePaid:      biweek.End.AddDays(core.PayrollPaymentDelay),
	}
	err := f.Repo.WithTransaction(ctx, func(tx *storage.Tx) error {
		id, created, err := tx.InsertPayrollIfAbsent(ctx, p)
		require.NoError(t, err)
		require.True(t, created)
		return tx.InsertPayrollEntry(ctx, core.PayrollEntry{
			PayrollID: id, TutorID: tutor, TotalHours: p.TotalHours, TotalAmount: p.TotalAmount,
		})
	})
	require.NoError(t, err)

	err = f.Repo.WithTransaction(ctx, func(tx *storage.Tx) error {
		_, created, err := tx.InsertPayrollIfAbsent(ctx, p)
		assert.False(t, created)
		return err
	})
	require.NoError(t, err)

	got, entries, err := f.Repo.GetPayroll(ctx, biweek.Start)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-27", got.DatePaid.String())
	require.Len(t, entries, 1)
	assert.Equal(t, tutor, entries[0].TutorID)
	assert.Equal(t, "140.00", entries[0].TotalAmount.StringFixed(2))
}
