package services

import "propel/internal/core"

// BiweeklyPeriodDue reports whether today closes a biweek counted from
// anchor, i.e. whether a whole, positive number of biweeks separates them.
// A zero anchor makes every day due.
func BiweeklyPeriodDue(anchor, today core.Date) bool {
	if anchor.IsZero() {
		return true
	}
	days := anchor.DaysUntil(today)
	return days >= core.BiweekDays && days%core.BiweekDays == 0
}

// PeriodEndingOn returns the biweek whose exclusive end is today.
func PeriodEndingOn(today core.Date) core.Period {
	return core.Biweek(today.AddDays(-core.BiweekDays))
}
