package core

import "github.com/shopspring/decimal"

// AccountSummary is the per-billing-account aggregate for one period.
type AccountSummary struct {
	BillingID    int64
	StudentNames []string // sorted, de-duplicated
	Subjects     []string // sorted, de-duplicated
	SessionCount int
	TotalHours   decimal.Decimal
	SessionTotal decimal.Decimal
	Sessions     []Session
}

// TutorSummary is the per-tutor aggregate for one period.
type TutorSummary struct {
	TutorID     int64
	TutorName   string
	NumSessions int
	NumHours    decimal.Decimal
	NumStudents int
	TotalEarned decimal.Decimal
}
