package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propel/internal/core"
	"propel/internal/log"
	"propel/internal/sheets"
	"propel/internal/sheets/memory"
	"propel/internal/storage/storagetest"
)

func row(tutor, student int64, date string, hours string) sheets.SheetSession {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return sheets.SheetSession{
		TutorID:   tutor,
		TutorName: "Kate",
		StudentID: student,
		Date:      d,
		Hours:     decimal.RequireFromString(hours),
	}
}

func TestIngest(t *testing.T) {
	f := storagetest.NewFixture(t)
	ctx := context.Background()
	student := f.Student("Robin", "Lee", "")
	tutor := f.Tutor("Kate", "")
	f.Assign(student, tutor, "40", "10", "Math")

	src := memory.New(
		row(tutor, student, "2025-01-07", "1"),
		row(tutor, student, "2025-01-07", "1"),    // duplicate date
		row(tutor, student, "2025-01-08", "1.1"),  // invalid duration
		row(tutor, student+99, "2025-01-09", "1"), // unknown assignment
		row(tutor, student, "2025-01-05", "1"),    // before period
		row(tutor, student, "2025-01-20", "1"),    // exclusive end
		row(tutor, student, "2025-01-19", "0.75"),
	)

	rep, err := NewIngestor(src, f.Repo, log.Discard()).Ingest(ctx, period)
	require.NoError(t, err)

	assert.Equal(t, IngestReport{
		Read:       7,
		InPeriod:   5,
		Inserted:   2,
		Duplicates: 1,
		Unknown:    1,
		Invalid:    1,
	}, rep)

	recs, err := f.Repo.FetchSessions(ctx, period)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "0.75", recs[1].DurationHours.String())
}

func TestIngest_IsIdempotent(t *testing.T) {
	f := storagetest.NewFixture(t)
	ctx := context.Background()
	student := f.Student("Robin", "Lee", "")
	tutor := f.Tutor("Kate", "")
	f.Assign(student, tutor, "40", "10", "Math")
	ing := NewIngestor(memory.New(row(tutor, student, "2025-01-07", "1")), f.Repo, log.Discard())

	_, err := ing.Ingest(ctx, period)
	require.NoError(t, err)
	rep, err := ing.Ingest(ctx, period)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Inserted)
	assert.Equal(t, 1, rep.Duplicates)
}

func TestIngest_InvalidPeriod(t *testing.T) {
	f := storagetest.NewFixture(t)
	ing := NewIngestor(memory.New(), f.Repo, log.Discard())
	_, err := ing.Ingest(context.Background(), core.Period{Start: core.NewDate(2025, 1, 20), End: core.NewDate(2025, 1, 6)})
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)
}
