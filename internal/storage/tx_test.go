package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propel/internal/core"
)

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO invoices").
		WithArgs(int64(7), "2025-01-06", 1.5, int64(6000), "2025-01-20").
		WillReturnRows(sqlmock.NewRows([]string{"invoice_id"}).AddRow(12))
	mock.ExpectRollback()

	renderErr := errors.New("render failed")
	err = repo.WithTransaction(context.Background(), func(tx *Tx) error {
		id, created, err := tx.InsertInvoiceIfAbsent(context.Background(), core.Invoice{
			BillingID:   7,
			BiweekStart: core.NewDate(2025, 1, 6),
			TotalHours:  decimal.RequireFromString("1.5"),
			TotalAmount: decimal.NewFromInt(60),
			DateSent:    core.NewDate(2025, 1, 20),
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(12), id)
		return renderErr
	})

	assert.ErrorIs(t, err, renderErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollsBackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newRepository(db)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = repo.WithTransaction(context.Background(), func(*Tx) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_Commits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").
		WithArgs(int64(3), "2025-01-06", int64(3), "2025-01-06").
		WillReturnRows(sqlmock.NewRows([]string{"tab"}).AddRow(int64(4550)))
	mock.ExpectCommit()

	err = repo.WithTransaction(context.Background(), func(tx *Tx) error {
		tab, err := tx.CurrentTab(context.Background(), 3, core.NewDate(2025, 1, 6))
		if err != nil {
			return err
		}
		assert.Equal(t, "45.50", tab.StringFixed(2))
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertInvoiceIfAbsent_ConflictReturnsNotCreated(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := newRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO invoices").
		WillReturnRows(sqlmock.NewRows([]string{"invoice_id"}))
	mock.ExpectCommit()

	err = repo.WithTransaction(context.Background(), func(tx *Tx) error {
		_, created, err := tx.InsertInvoiceIfAbsent(context.Background(), core.Invoice{
			BillingID: 1, BiweekStart: core.NewDate(2025, 1, 6), DateSent: core.NewDate(2025, 1, 20),
		})
		assert.False(t, created)
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
