package services

import (
	"context"
	"errors"
	"fmt"

	"propel/internal/core"
	"propel/internal/log"
	"propel/internal/sheets"
	"propel/internal/storage"
)

// SessionWriter resolves assignments and records sessions.
type SessionWriter interface {
	FindAssignment(ctx context.Context, studentID, tutorID int64) (core.Assignment, error)
	InsertSession(ctx context.Context, assignmentID int64, date core.Date, hours float64) (bool, error)
}

// IngestReport counts what happened to the rows read from the source.
type IngestReport struct {
	Read       int
	InPeriod   int
	Inserted   int
	Duplicates int
	Unknown    int // no assignment for (student, tutor)
	Invalid    int // rejected duration
}

// Ingestor copies tutor-logged sessions into the store.
type Ingestor struct {
	source sheets.SessionSource
	store  SessionWriter
	logger *log.Logger
}

func NewIngestor(source sheets.SessionSource, store SessionWriter, logger *log.Logger) *Ingestor {
	return &Ingestor{
		source: source,
		store:  store,
		logger: logger.WithComponent(log.ComponentIngest),
	}
}

// Ingest records every source row dated inside period. Rows for unknown
// assignments or with invalid durations are logged and skipped; rows that
// already exist are left untouched.
func (i *Ingestor) Ingest(ctx context.Context, period core.Period) (IngestReport, error) {
	if err := period.Validate(); err != nil {
		return IngestReport{}, err
	}

	rows, err := i.source.ReadSessions(ctx)
	if err != nil {
		return IngestReport{}, fmt.Errorf("read session source: %w", err)
	}

	rep := IngestReport{Read: len(rows)}
	for _, row := range rows {
		if !period.Contains(row.Date) {
			continue
		}
		rep.InPeriod++

		a, err := i.store.FindAssignment(ctx, row.StudentID, row.TutorID)
		if errors.Is(err, storage.ErrNotFound) {
			rep.Unknown++
			i.logger.WarnContext(ctx, "Skipping session for unknown assignment",
				log.FieldTutorID, row.TutorID,
				"tutor", row.TutorName,
				"row", row.Row,
				"student_id", row.StudentID)
			continue
		}
		if err != nil {
			return rep, err
		}

		inserted, err := i.store.InsertSession(ctx, a.ID, row.Date, row.Hours.InexactFloat64())
		if errors.Is(err, core.ErrInvalidDuration) {
			rep.Invalid++
			i.logger.WarnContext(ctx, "Skipping session with invalid duration",
				"tutor", row.TutorName,
				"row", row.Row,
				"hours", row.Hours.String())
			continue
		}
		if err != nil {
			return rep, err
		}
		if inserted {
			rep.Inserted++
		} else {
			rep.Duplicates++
		}
	}

	i.logger.InfoContext(ctx, "Sessions ingested",
		log.FieldPeriodStart, period.Start.String(),
		"read", rep.Read,
		"in_period", rep.InPeriod,
		"inserted", rep.Inserted,
		"duplicates", rep.Duplicates,
		"unknown", rep.Unknown,
		"invalid", rep.Invalid)
	return rep, nil
}
