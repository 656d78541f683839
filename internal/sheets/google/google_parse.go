package google

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"propel/internal/core"
	ports "propel/internal/sheets"
)

// Sheets serial dates count days from this epoch.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

type skippedRow struct {
	row int
	err error
}

// parseSheetTitle splits "12 - Kate Smith" into its tutor id and name.
func parseSheetTitle(title string) (int64, string, bool) {
	idPart, name, ok := strings.Cut(title, " - ")
	if !ok {
		return 0, "", false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, strings.TrimSpace(name), true
}

// firstRow returns the sheet row number of the first cell in an A1 range.
func firstRow(rng string) (int, error) {
	head, _, _ := strings.Cut(rng, ":")
	digits := strings.TrimLeft(head, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid session range %q: want e.g. A2:D", rng)
	}
	return n, nil
}

// parseRows converts raw worksheet values ([student_id, student_name,
// serial_date, hours]) into sessions. Rows that are too short or have an
// empty student id are ignored; rows that fail to parse are reported.
func parseRows(values [][]any, tutorID int64, tutorName string, startRow int) ([]ports.SheetSession, []skippedRow) {
	var (
		out     []ports.SheetSession
		skipped []skippedRow
	)
	for i, row := range values {
		num := startRow + i
		if len(row) < 4 || isBlank(row[0]) {
			continue
		}
		s, err := parseRow(row)
		if err != nil {
			skipped = append(skipped, skippedRow{row: num, err: err})
			continue
		}
		s.TutorID = tutorID
		s.TutorName = tutorName
		s.Row = num
		out = append(out, s)
	}
	return out, skipped
}

func parseRow(row []any) (ports.SheetSession, error) {
	studentID, err := toFloat(row[0])
	if err != nil {
		return ports.SheetSession{}, fmt.Errorf("student id: %w", err)
	}
	serial, err := toFloat(row[2])
	if err != nil {
		return ports.SheetSession{}, fmt.Errorf("date: %w", err)
	}
	hours, err := toFloat(row[3])
	if err != nil {
		return ports.SheetSession{}, fmt.Errorf("duration: %w", err)
	}
	return ports.SheetSession{
		StudentID:   int64(studentID),
		StudentName: strings.TrimSpace(fmt.Sprint(row[1])),
		Date:        serialDate(serial),
		Hours:       decimal.NewFromFloat(hours),
	}, nil
}

// serialDate converts a Sheets serial number to a calendar date, dropping any
// time-of-day fraction.
func serialDate(serial float64) core.Date {
	return core.DateOf(serialEpoch.AddDate(0, 0, int(math.Floor(serial))))
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	case nil:
		return 0, errors.New("empty cell")
	default:
		return 0, fmt.Errorf("unexpected cell type %T", v)
	}
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	return strings.TrimSpace(fmt.Sprint(v)) == ""
}

func sortSessions(s []ports.SheetSession) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].TutorID != s[j].TutorID {
			return s[i].TutorID < s[j].TutorID
		}
		return s[i].Row < s[j].Row
	})
}
