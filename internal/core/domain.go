package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the storage and CLI representation of a calendar date.
const DateLayout = "2006-01-02"

// BiweekDays is the length of a billing period.
const BiweekDays = 14

// PayrollPaymentDelay is the number of days between payroll generation and payout.
const PayrollPaymentDelay = 7

type (
	Date struct {
		time.Time
	}

	// Period is a half-open range of days: Start is included, End is not.
	Period struct {
		Start Date
		End   Date
	}

	// SessionRecord is a session row as stored, joined with its assignment,
	// student, tutor and (optional) billing account.
	SessionRecord struct {
		SessionID       int64
		BillingID       int64 // zero when the student has no billing account
		StudentID       int64
		StudentFirst    string
		StudentLast     string
		StudentPrefName string
		TutorID         int64
		TutorFirst      string
		TutorPrefName   string
		Subjects        string
		Date            Date
		DurationHours   decimal.Decimal
		HourlyRate      decimal.Decimal
		Markup          decimal.Decimal
	}

	// Session is a SessionRecord enriched with the derived fees.
	Session struct {
		SessionRecord
		StudentName string
		TutorName   string
		TotalFee    decimal.Decimal // charged to the billing account, markup included
		TutorFee    decimal.Decimal // owed to the tutor, markup excluded
	}

	Student struct {
		ID        int64
		FirstName string
		LastName  string
		PrefName  string
	}

	Tutor struct {
		ID        int64
		FirstName string
		LastName  string
		PrefName  string
		Email     string
	}

	Assignment struct {
		ID         int64
		StudentID  int64
		TutorID    int64
		HourlyRate decimal.Decimal
		Markup     decimal.Decimal
		Subjects   string
	}

	BillingAccount struct {
		ID           int64
		DisplayName  string
		Email        string
		FirstInvoice bool
	}

	Invoice struct {
		ID          int64
		BillingID   int64
		BiweekStart Date
		TotalHours  decimal.Decimal
		TotalAmount decimal.Decimal
		DateSent    Date
	}

	Payment struct {
		ID        int64
		InvoiceID int64
		Amount    decimal.Decimal
		PaidOn    Date
	}

	Payroll struct {
		ID            int64
		BiweekStart   Date
		TotalHours    decimal.Decimal
		TotalAmount   decimal.Decimal
		DateGenerated Date
		DatePaid      Date
	}

	PayrollEntry struct {
		PayrollID   int64
		TutorID     int64
		TotalHours  decimal.Decimal
		TotalAmount decimal.Decimal
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidPeriod   = errors.New("invalid period")
	ErrInvalidDuration = errors.New("invalid session duration")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n days later (or earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// DaysUntil returns the number of whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	return nil
}

// Biweek returns the two-week period that starts on start.
func Biweek(start Date) Period {
	return Period{Start: start, End: start.AddDays(BiweekDays)}
}

func (p Period) Validate() error {
	if err := p.Start.Validate(); err != nil {
		return fmt.Errorf("%w: start: %v", ErrInvalidPeriod, err)
	}
	if err := p.End.Validate(); err != nil {
		return fmt.Errorf("%w: end: %v", ErrInvalidPeriod, err)
	}
	if !p.End.After(p.Start.Time) {
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidPeriod, p.End, p.Start)
	}
	return nil
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start.Time) && d.Before(p.End.Time)
}

func (p Period) String() string {
	return p.Start.String() + ".." + p.End.String()
}

// DisplayName renders "First (Pref) Last", or "First Last" without a preferred name.
func (s Student) DisplayName() string {
	return StudentDisplayName(s.FirstName, s.LastName, s.PrefName)
}

func StudentDisplayName(first, last, pref string) string {
	parts := []string{strings.TrimSpace(first)}
	if p := strings.TrimSpace(pref); p != "" {
		parts = append(parts, "("+p+")")
	}
	if l := strings.TrimSpace(last); l != "" {
		parts = append(parts, l)
	}
	return strings.Join(parts, " ")
}

// TutorDisplayName prefers the tutor's chosen name over the legal first name.
func TutorDisplayName(first, pref string) string {
	if p := strings.TrimSpace(pref); p != "" {
		return p
	}
	return strings.TrimSpace(first)
}

// ValidateDuration checks that hours is a positive multiple of a quarter hour.
func ValidateDuration(hours decimal.Decimal) error {
	if !hours.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidDuration, hours)
	}
	if !hours.Mul(decimal.NewFromInt(4)).IsInteger() {
		return fmt.Errorf("%w: %s is not a multiple of 0.25", ErrInvalidDuration, hours)
	}
	return nil
}
