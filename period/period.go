/*
Package period converts a reference date into the commercial periods the
scoring engine evaluates against.

PURPOSE:
  The business does not score against the calendar month. A "commercial
  month" runs from a configured start day to a configured end day
  (default 26th -> 25th), and a "commercial week" runs Monday through
  the reference date, closing on Saturday. This package owns those
  boundary computations plus the proportional (elapsed-weighted) goal
  formula used by the monthly tiers.

KEY CONCEPTS:
  - Span: an inclusive [Start, End] date range
  - Cycle: the commercial month configuration (start/end day-of-month)
  - Proportional goal: totalGoal scaled by elapsed working days over
    the full period's working days

SEE ALSO:
  - calendar/: working-day weights feeding the proportional formula
  - scoring/: the consumer of every boundary computed here
*/
package period

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vantage/scoring-engine/calendar"
)

// =============================================================================
// SPANS
// =============================================================================

// Span is an inclusive date range.
type Span struct {
	Start time.Time
	End   time.Time
}

func (s Span) String() string {
	return fmt.Sprintf("[%s, %s]", s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))
}

// =============================================================================
// COMMERCIAL MONTH CYCLE
// =============================================================================

// Cycle configures the commercial month: it starts on StartDay of one
// calendar month and ends on EndDay of the next.
type Cycle struct {
	StartDay int
	EndDay   int
}

// DefaultCycle is the 26th -> 25th cycle the business runs on.
func DefaultCycle() Cycle { return Cycle{StartDay: 26, EndDay: 25} }

// Valid reports whether the configured day-of-month bounds are usable.
// Day 29+ starts are rejected because they do not exist in February.
func (c Cycle) Valid() bool {
	return c.StartDay >= 1 && c.StartDay <= 28 &&
		c.EndDay >= 1 && c.EndDay <= 28 &&
		c.StartDay != c.EndDay
}

// start returns the cycle start governing the reference date.
func (c Cycle) start(ref time.Time) time.Time {
	ref = calendar.DateOnly(ref)
	if ref.Day() <= c.EndDay {
		// Inside the tail of the cycle: it started on StartDay of the
		// previous calendar month.
		firstOfMonth := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		prev := firstOfMonth.AddDate(0, 0, -1)
		return time.Date(prev.Year(), prev.Month(), c.StartDay, 0, 0, 0, 0, time.UTC)
	}
	if ref.Day() >= c.StartDay {
		return time.Date(ref.Year(), ref.Month(), c.StartDay, 0, 0, 0, 0, time.UTC)
	}
	// Between EndDay and StartDay (only possible when EndDay < StartDay-1):
	// the running cycle started last month.
	firstOfMonth := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := firstOfMonth.AddDate(0, 0, -1)
	return time.Date(prev.Year(), prev.Month(), c.StartDay, 0, 0, 0, 0, time.UTC)
}

// fullEnd returns the EndDay date closing the cycle that governs ref.
func (c Cycle) fullEnd(ref time.Time) time.Time {
	ref = calendar.DateOnly(ref)
	if ref.Day() <= c.EndDay {
		return time.Date(ref.Year(), ref.Month(), c.EndDay, 0, 0, 0, 0, time.UTC)
	}
	next := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return time.Date(next.Year(), next.Month(), c.EndDay, 0, 0, 0, 0, time.UTC)
}

// MonthToDate returns the commercial month elapsed so far: cycle start
// through the reference date.
func (c Cycle) MonthToDate(ref time.Time) Span {
	return Span{Start: c.start(ref), End: calendar.DateOnly(ref)}
}

// MonthFull returns the complete commercial month containing ref: cycle
// start through the closing EndDay.
func (c Cycle) MonthFull(ref time.Time) Span {
	return Span{Start: c.start(ref), End: c.fullEnd(ref)}
}

// IsCycleEnd reports whether ref is a monthly evaluation day: the
// configured cycle-end day, or the last calendar day of the month.
func (c Cycle) IsCycleEnd(ref time.Time) bool {
	if ref.Day() == c.EndDay {
		return true
	}
	return ref.AddDate(0, 0, 1).Month() != ref.Month()
}

// =============================================================================
// COMMERCIAL WEEK
// =============================================================================

// WeekToDate returns Monday of the reference date's week through the
// reference date itself.
func WeekToDate(ref time.Time) Span {
	ref = calendar.DateOnly(ref)
	return Span{Start: mondayOf(ref), End: ref}
}

// WeekFull returns the complete commercial week: Monday through the
// closing Saturday.
func WeekFull(ref time.Time) Span {
	monday := mondayOf(calendar.DateOnly(ref))
	return Span{Start: monday, End: monday.AddDate(0, 0, 5)}
}

// WeekID returns the ISO week identifier used as the weekly goal and
// weekly result key, e.g. "2025_W05". The ISO year/week of the Monday
// is used so every day of the commercial week maps to the same id.
func WeekID(ref time.Time) string {
	year, week := mondayOf(calendar.DateOnly(ref)).ISOWeek()
	return fmt.Sprintf("%d_W%02d", year, week)
}

func mondayOf(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator bundles the cycle configuration with the working-day
// calendar needed for goal math.
type Calculator struct {
	cal   *calendar.Service
	cycle Cycle
}

// NewCalculator builds a Calculator. An invalid cycle falls back to the
// default 26->25 bounds with a logged warning rather than failing the
// run.
func NewCalculator(cal *calendar.Service, cycle Cycle) *Calculator {
	if !cycle.Valid() {
		log.Printf("[Period] invalid commercial cycle %d->%d, falling back to default 26->25",
			cycle.StartDay, cycle.EndDay)
		cycle = DefaultCycle()
	}
	return &Calculator{cal: cal, cycle: cycle}
}

func (p *Calculator) Cycle() Cycle                 { return p.cycle }
func (p *Calculator) Calendar() *calendar.Service  { return p.cal }
func (p *Calculator) MonthToDate(ref time.Time) Span { return p.cycle.MonthToDate(ref) }
func (p *Calculator) MonthFull(ref time.Time) Span   { return p.cycle.MonthFull(ref) }
func (p *Calculator) IsCycleEnd(ref time.Time) bool  { return p.cycle.IsCycleEnd(ref) }

// ProportionalGoal scales totalGoal by the fraction of weighted working
// days elapsed between start and today, relative to the full period
// ending at periodEnd. Returns totalGoal unchanged when the full period
// has no working days (degenerate calendar).
func (p *Calculator) ProportionalGoal(totalGoal decimal.Decimal, start, today, periodEnd time.Time, storeScope string) decimal.Decimal {
	full := p.cal.WorkingDays(start, periodEnd, storeScope)
	if full.Sign() <= 0 {
		return totalGoal
	}
	elapsed := p.cal.WorkingDays(start, today, storeScope)
	return totalGoal.Mul(elapsed).Div(full)
}
