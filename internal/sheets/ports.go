package sheets

import (
	"context"

	"github.com/shopspring/decimal"

	"propel/internal/core"
)

// SheetSession is one session row read from a tutor's worksheet.
type SheetSession struct {
	TutorID     int64
	TutorName   string
	Row         int
	StudentID   int64
	StudentName string
	Date        core.Date
	Hours       decimal.Decimal
}

// Ports for inbound adapters.
type (
	// SessionSource lists the sessions tutors have logged, across every tutor.
	SessionSource interface {
		ReadSessions(ctx context.Context) ([]SheetSession, error)
	}
)
