package calendar

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// ParseCSV reads holidays from a CSV stream with columns
// scope,date,name. A scope of "ALL" (any case) or an empty scope marks
// a national holiday; anything else is a store code. Dates are
// YYYY-MM-DD. A header row is detected and skipped.
func ParseCSV(r io.Reader) ([]Holiday, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var holidays []Holiday
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read holidays csv: %w", err)
		}
		line++
		if len(record) < 2 {
			return nil, fmt.Errorf("holidays csv line %d: expected scope,date[,name]", line)
		}

		scope := strings.TrimSpace(record[0])
		dateStr := strings.TrimSpace(record[1])

		// Header row
		if line == 1 && strings.EqualFold(scope, "scope") {
			continue
		}

		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("holidays csv line %d: bad date %q: %w", line, dateStr, err)
		}

		if scope == "" || strings.EqualFold(scope, ScopeAll) {
			scope = ScopeAll
		}

		name := ""
		if len(record) > 2 {
			name = strings.TrimSpace(record[2])
		}

		holidays = append(holidays, Holiday{
			Scope: scope,
			Date:  DateOnly(date),
			Name:  name,
		})
	}

	return holidays, nil
}
