package services

import (
	"testing"

	"propel/internal/core"
)

func TestBiweeklyPeriodDue(t *testing.T) {
	anchor := core.NewDate(2025, 1, 6)

	tests := []struct {
		name  string
		today core.Date
		want  bool
	}{
		{name: "anchor day itself - not due", today: anchor, want: false},
		{name: "one week later - not due", today: core.NewDate(2025, 1, 13), want: false},
		{name: "first biweek closes - due", today: core.NewDate(2025, 1, 20), want: true},
		{name: "day after close - not due", today: core.NewDate(2025, 1, 21), want: false},
		{name: "third biweek closes - due", today: core.NewDate(2025, 2, 17), want: true},
		{name: "before anchor - not due", today: core.NewDate(2024, 12, 23), want: false},
		{name: "across DST change - due", today: core.NewDate(2025, 3, 31), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BiweeklyPeriodDue(anchor, tt.today); got != tt.want {
				t.Errorf("BiweeklyPeriodDue(%s, %s) = %v, want %v", anchor, tt.today, got, tt.want)
			}
		})
	}
}

func TestBiweeklyPeriodDue_NoAnchor(t *testing.T) {
	if !BiweeklyPeriodDue(core.Date{}, core.NewDate(2025, 1, 9)) {
		t.Error("zero anchor should make every day due")
	}
}

func TestPeriodEndingOn(t *testing.T) {
	p := PeriodEndingOn(core.NewDate(2025, 1, 20))
	if p.Start.String() != "2025-01-06" || p.End.String() != "2025-01-20" {
		t.Errorf("PeriodEndingOn = %s", p)
	}
}
