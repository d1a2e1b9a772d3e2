/*
Package calendar computes working-day weights and weighted working-day
counts over a holiday calendar.

PURPOSE:
  Goals in this system are daily reference values scaled by how many
  "working days" a period really contains. A Saturday is worth half a
  day of selling, a Sunday nothing, and a holiday nothing regardless of
  weekday. Every period and goal computation in the engine funnels
  through this package.

WEIGHT RULES (priority order):
  1. Holiday (national, or specific to the store scope) -> 0
  2. December 31 -> 0.5 regardless of weekday
  3. Monday-Friday -> 1.0
  4. Saturday -> 0.5
  5. Sunday -> 0

DESIGN:
  Pure functions of the date plus the loaded holiday set. No side
  effects, no clock reads. Weights are decimal.Decimal so that 0.5 is
  exact and goal arithmetic never drifts.

SEE ALSO:
  - period/: commercial week/month boundaries built on this package
  - store/sqlite/: the persistent HolidaySource implementation
*/
package calendar

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScopeAll marks a holiday that applies to every store.
const ScopeAll = "ALL"

// Holiday is a non-selling date, either national (ScopeAll) or specific
// to one store.
type Holiday struct {
	ID    string
	Scope string // ScopeAll or a store code
	Date  time.Time
	Name  string
}

// HolidaySource answers holiday lookups. The sqlite store implements
// this; tests use the in-memory Set.
type HolidaySource interface {
	// IsHoliday reports whether the date is a holiday for the given
	// store scope. National holidays match every scope.
	IsHoliday(date time.Time, storeScope string) bool
}

// EmptySource is a no-op source for when no holiday calendar is loaded.
type EmptySource struct{}

func (EmptySource) IsHoliday(time.Time, string) bool { return false }

// =============================================================================
// IN-MEMORY HOLIDAY SET
// =============================================================================

// Set is an in-memory HolidaySource keyed by date.
type Set struct {
	byDate map[string][]Holiday
}

func NewSet(holidays ...Holiday) *Set {
	s := &Set{byDate: make(map[string][]Holiday)}
	for _, h := range holidays {
		s.Add(h)
	}
	return s
}

func (s *Set) Add(h Holiday) {
	key := DateOnly(h.Date).Format("2006-01-02")
	s.byDate[key] = append(s.byDate[key], h)
}

func (s *Set) IsHoliday(date time.Time, storeScope string) bool {
	key := DateOnly(date).Format("2006-01-02")
	for _, h := range s.byDate[key] {
		if h.Scope == ScopeAll || h.Scope == storeScope {
			return true
		}
	}
	return false
}

// =============================================================================
// CALENDAR SERVICE
// =============================================================================

// Service computes working-day weights against a holiday source.
type Service struct {
	holidays HolidaySource
}

func New(holidays HolidaySource) *Service {
	if holidays == nil {
		holidays = EmptySource{}
	}
	return &Service{holidays: holidays}
}

var (
	weightFull = decimal.NewFromInt(1)
	weightHalf = decimal.New(5, -1) // 0.5 exactly
)

// Weight returns the working-day weight of a single date: 0, 0.5 or 1.
func (s *Service) Weight(date time.Time, storeScope string) decimal.Decimal {
	if s.holidays.IsHoliday(date, storeScope) {
		return decimal.Zero
	}
	// New Year's Eve is a half selling day even when it lands on a weekday.
	if date.Month() == time.December && date.Day() == 31 {
		return weightHalf
	}
	switch date.Weekday() {
	case time.Sunday:
		return decimal.Zero
	case time.Saturday:
		return weightHalf
	default:
		return weightFull
	}
}

// WorkingDays sums Weight across the inclusive range [start, end].
// Returns zero when end precedes start.
func (s *Service) WorkingDays(start, end time.Time, storeScope string) decimal.Decimal {
	total := decimal.Zero
	for d := DateOnly(start); !d.After(DateOnly(end)); d = d.AddDate(0, 0, 1) {
		total = total.Add(s.Weight(d, storeScope))
	}
	return total
}

// DateOnly truncates a time to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
