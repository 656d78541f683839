// Package billing computes per-account and per-tutor totals for a period and
// persists invoices and payrolls for them.
package billing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"propel/internal/core"
)

// SummarizeAccount aggregates one account's sessions. It has no side effects.
func SummarizeAccount(billingID int64, sessions []core.Session) core.AccountSummary {
	sum := core.AccountSummary{
		BillingID:    billingID,
		SessionCount: len(sessions),
		TotalHours:   decimal.Zero,
		SessionTotal: decimal.Zero,
		Sessions:     sessions,
	}
	students := make(map[string]struct{})
	subjects := make(map[string]struct{})
	for _, s := range sessions {
		students[s.StudentName] = struct{}{}
		for _, subj := range strings.Split(s.Subjects, ",") {
			if subj = strings.TrimSpace(subj); subj != "" {
				subjects[subj] = struct{}{}
			}
		}
		sum.TotalHours = sum.TotalHours.Add(s.DurationHours)
		sum.SessionTotal = sum.SessionTotal.Add(s.TotalFee)
	}
	sum.StudentNames = sortedKeys(students)
	sum.Subjects = sortedKeys(subjects)
	return sum
}

// SummarizeAccounts aggregates every account, ordered by billing id.
func SummarizeAccounts(accounts map[int64][]core.Session) []core.AccountSummary {
	out := make([]core.AccountSummary, 0, len(accounts))
	for id, sessions := range accounts {
		out = append(out, SummarizeAccount(id, sessions))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BillingID < out[j].BillingID })
	return out
}

// SummarizeTutors aggregates sessions per tutor, ordered by tutor id.
func SummarizeTutors(sessions []core.Session) []core.TutorSummary {
	byTutor := make(map[int64]*core.TutorSummary)
	students := make(map[int64]map[int64]struct{})
	for _, s := range sessions {
		ts, ok := byTutor[s.TutorID]
		if !ok {
			ts = &core.TutorSummary{
				TutorID:     s.TutorID,
				TutorName:   s.TutorName,
				NumHours:    decimal.Zero,
				TotalEarned: decimal.Zero,
			}
			byTutor[s.TutorID] = ts
			students[s.TutorID] = make(map[int64]struct{})
		}
		ts.NumSessions++
		ts.NumHours = ts.NumHours.Add(s.DurationHours)
		ts.TotalEarned = ts.TotalEarned.Add(s.TutorFee)
		students[s.TutorID][s.StudentID] = struct{}{}
	}

	out := make([]core.TutorSummary, 0, len(byTutor))
	for id, ts := range byTutor {
		ts.NumStudents = len(students[id])
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TutorID < out[j].TutorID })
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
