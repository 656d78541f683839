// Package ledger reads the sessions of a billing period and turns them into
// fee-bearing sessions grouped by the account that pays for them.
package ledger

import (
	"context"
	"fmt"
	"sort"

	"propel/internal/core"
	"propel/internal/log"
)

// SessionFetcher returns raw session rows for a half-open period.
type SessionFetcher interface {
	FetchSessions(ctx context.Context, period core.Period) ([]core.SessionRecord, error)
}

// Ledger is the enriched view of one period.
type Ledger struct {
	Period   core.Period
	Accounts map[int64][]core.Session // per billing id, ordered by date
	Unbilled []core.Session           // students without a billing account
}

type Reader struct {
	fetcher SessionFetcher
	logger  *log.Logger
}

func NewReader(fetcher SessionFetcher, logger *log.Logger) *Reader {
	return &Reader{fetcher: fetcher, logger: logger.WithComponent(log.ComponentLedger)}
}

// Read fetches and enriches every session in period. A fetch failure or a
// malformed duration fails the whole read.
func (r *Reader) Read(ctx context.Context, period core.Period) (Ledger, error) {
	if err := period.Validate(); err != nil {
		return Ledger{}, err
	}

	records, err := r.fetcher.FetchSessions(ctx, period)
	if err != nil {
		return Ledger{}, fmt.Errorf("fetch sessions: %w", err)
	}

	l := Ledger{Period: period, Accounts: make(map[int64][]core.Session)}
	for _, rec := range records {
		s, err := Enrich(rec)
		if err != nil {
			return Ledger{}, fmt.Errorf("session %d: %w", rec.SessionID, err)
		}
		if rec.BillingID == 0 {
			l.Unbilled = append(l.Unbilled, s)
			continue
		}
		l.Accounts[rec.BillingID] = append(l.Accounts[rec.BillingID], s)
	}
	for id := range l.Accounts {
		sortByDate(l.Accounts[id])
	}
	sortByDate(l.Unbilled)

	if len(l.Unbilled) > 0 {
		r.logger.WarnContext(ctx, "Sessions without billing account excluded from invoicing",
			log.FieldPeriodStart, period.Start.String(),
			"count", len(l.Unbilled))
	}
	r.logger.InfoContext(ctx, "Ledger read",
		log.FieldPeriodStart, period.Start.String(),
		"sessions", len(records),
		"accounts", len(l.Accounts))
	return l, nil
}

// Enrich derives display names and fees for a raw session row.
func Enrich(rec core.SessionRecord) (core.Session, error) {
	if err := core.ValidateDuration(rec.DurationHours); err != nil {
		return core.Session{}, err
	}
	return core.Session{
		SessionRecord: rec,
		StudentName:   core.StudentDisplayName(rec.StudentFirst, rec.StudentLast, rec.StudentPrefName),
		TutorName:     core.TutorDisplayName(rec.TutorFirst, rec.TutorPrefName),
		TotalFee:      rec.DurationHours.Mul(rec.HourlyRate.Add(rec.Markup)),
		TutorFee:      rec.DurationHours.Mul(rec.HourlyRate),
	}, nil
}

// BillingIDs returns the billed accounts in ascending order.
func (l Ledger) BillingIDs() []int64 {
	ids := make([]int64, 0, len(l.Accounts))
	for id := range l.Accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Sessions returns every session in the period, billed or not, by date.
func (l Ledger) Sessions() []core.Session {
	all := append([]core.Session(nil), l.Unbilled...)
	for _, ss := range l.Accounts {
		all = append(all, ss...)
	}
	sortByDate(all)
	return all
}

func (l Ledger) Empty() bool {
	return len(l.Accounts) == 0 && len(l.Unbilled) == 0
}

func sortByDate(ss []core.Session) {
	sort.SliceStable(ss, func(i, j int) bool {
		if !ss[i].Date.Equal(ss[j].Date.Time) {
			return ss[i].Date.Before(ss[j].Date.Time)
		}
		return ss[i].SessionID < ss[j].SessionID
	})
}
