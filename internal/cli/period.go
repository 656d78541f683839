package cli

import (
	"fmt"

	"propel/internal/core"
)

// ResolvePeriod turns the --start/--end flags into a billing period. An empty
// start means the biweek ending today; an empty end means start plus 14 days.
// A start after today is rejected.
func ResolvePeriod(start, end string, today core.Date) (core.Period, error) {
	var p core.Period
	if start == "" {
		p.Start = today.AddDays(-core.BiweekDays)
	} else {
		d, err := core.ParseDate(start)
		if err != nil {
			return core.Period{}, fmt.Errorf("--start: %w", err)
		}
		if d.After(today.Time) {
			return core.Period{}, fmt.Errorf("%w: start %s is in the future", core.ErrInvalidPeriod, d)
		}
		p.Start = d
	}

	if end == "" {
		p.End = p.Start.AddDays(core.BiweekDays)
	} else {
		d, err := core.ParseDate(end)
		if err != nil {
			return core.Period{}, fmt.Errorf("--end: %w", err)
		}
		p.End = d
	}

	if err := p.Validate(); err != nil {
		return core.Period{}, err
	}
	return p, nil
}
