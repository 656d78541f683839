package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propel/internal/core"
	"propel/internal/log"
)

type fakeFetcher struct {
	records []core.SessionRecord
	err     error
	calls   int
}

func (f *fakeFetcher) FetchSessions(_ context.Context, _ core.Period) ([]core.SessionRecord, error) {
	f.calls++
	return f.records, f.err
}

func record(id, billing int64, date string, hours, rate, markup string) core.SessionRecord {
	d, _ := core.ParseDate(date)
	return core.SessionRecord{
		SessionID:     id,
		BillingID:     billing,
		StudentID:     billing*10 + 1,
		StudentFirst:  "Robert",
		StudentLast:   "Smith",
		TutorID:       1,
		TutorFirst:    "Katherine",
		TutorPrefName: "Kate",
		Date:          d,
		DurationHours: decimal.RequireFromString(hours),
		HourlyRate:    decimal.RequireFromString(rate),
		Markup:        decimal.RequireFromString(markup),
	}
}

var period = core.Biweek(core.NewDate(2025, 1, 6))

func TestRead_GroupsAndComputesFees(t *testing.T) {
	fetcher := &fakeFetcher{records: []core.SessionRecord{
		record(3, 2, "2025-01-09", "1", "40", "10"),
		record(1, 1, "2025-01-07", "1.5", "40", "10"),
		record(2, 2, "2025-01-07", "0.75", "30", "0"),
		record(4, 0, "2025-01-08", "1", "50", "5"),
	}}
	reader := NewReader(fetcher, log.Discard())

	l, err := reader.Read(context.Background(), period)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, l.BillingIDs())
	require.Len(t, l.Accounts[2], 2)
	assert.Equal(t, int64(2), l.Accounts[2][0].SessionID, "sessions ordered by date")

	s := l.Accounts[1][0]
	assert.Equal(t, "75", s.TotalFee.String())
	assert.Equal(t, "60", s.TutorFee.String())
	assert.Equal(t, "Robert Smith", s.StudentName)
	assert.Equal(t, "Kate", s.TutorName)

	require.Len(t, l.Unbilled, 1)
	assert.Equal(t, "50", l.Unbilled[0].TutorFee.String())
	assert.Len(t, l.Sessions(), 4)
	assert.False(t, l.Empty())
}

func TestRead_MarkupExcludedFromTutorFee(t *testing.T) {
	for _, rec := range []core.SessionRecord{
		record(1, 1, "2025-01-07", "0.25", "40", "10"),
		record(2, 1, "2025-01-07", "2", "35.50", "4.50"),
		record(3, 1, "2025-01-07", "1.25", "0", "12"),
	} {
		s, err := Enrich(rec)
		require.NoError(t, err)
		assert.True(t, s.TotalFee.Sub(s.TutorFee).Equal(rec.DurationHours.Mul(rec.Markup)),
			"total - tutor fee must equal hours * markup for session %d", rec.SessionID)
	}
}

func TestRead_InvalidDurationFailsRead(t *testing.T) {
	fetcher := &fakeFetcher{records: []core.SessionRecord{
		record(1, 1, "2025-01-07", "1.1", "40", "0"),
	}}
	_, err := NewReader(fetcher, log.Discard()).Read(context.Background(), period)
	assert.ErrorIs(t, err, core.ErrInvalidDuration)
}

func TestRead_FetchErrorIsWrapped(t *testing.T) {
	boom := errors.New("database is locked")
	_, err := NewReader(&fakeFetcher{err: boom}, log.Discard()).Read(context.Background(), period)
	assert.ErrorIs(t, err, boom)
}

func TestRead_RejectsInvalidPeriod(t *testing.T) {
	fetcher := &fakeFetcher{}
	_, err := NewReader(fetcher, log.Discard()).Read(context.Background(), core.Period{
		Start: core.NewDate(2025, 1, 6), End: core.NewDate(2025, 1, 6),
	})
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)
	assert.Zero(t, fetcher.calls)
}

func TestRead_EmptyPeriod(t *testing.T) {
	l, err := NewReader(&fakeFetcher{}, log.Discard()).Read(context.Background(), period)
	require.NoError(t, err)
	assert.True(t, l.Empty())
	assert.Empty(t, l.BillingIDs())
}
