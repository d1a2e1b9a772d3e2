package period

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vantage/scoring-engine/calendar"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestCycle_MonthToDate(t *testing.T) {
	cycle := DefaultCycle()

	tests := []struct {
		name      string
		ref       time.Time
		wantStart time.Time
	}{
		// Jan 10 is inside the Dec 26 -> Jan 25 cycle
		{"mid-cycle", date(2025, time.January, 10), date(2024, time.December, 26)},
		// Jan 25 is the last day of that same cycle
		{"cycle-end", date(2025, time.January, 25), date(2024, time.December, 26)},
		// Jan 26 opens the next cycle
		{"cycle-start", date(2025, time.January, 26), date(2025, time.January, 26)},
		// Jan 31 is still inside the cycle that opened on the 26th
		{"after-start", date(2025, time.January, 31), date(2025, time.January, 26)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span := cycle.MonthToDate(tt.ref)
			if !span.Start.Equal(tt.wantStart) {
				t.Errorf("start = %s, want %s", span.Start.Format("2006-01-02"), tt.wantStart.Format("2006-01-02"))
			}
			if !span.End.Equal(tt.ref) {
				t.Errorf("end = %s, want reference date", span.End.Format("2006-01-02"))
			}
		})
	}
}

func TestCycle_MonthFull_YearRollover(t *testing.T) {
	cycle := DefaultCycle()

	// Dec 28 sits in the Dec 26 -> Jan 25 cycle crossing the year boundary
	span := cycle.MonthFull(date(2025, time.December, 28))
	if !span.Start.Equal(date(2025, time.December, 26)) {
		t.Errorf("start = %s, want 2025-12-26", span.Start.Format("2006-01-02"))
	}
	if !span.End.Equal(date(2026, time.January, 25)) {
		t.Errorf("end = %s, want 2026-01-25", span.End.Format("2006-01-02"))
	}
}

func TestCycle_IsCycleEnd(t *testing.T) {
	cycle := DefaultCycle()

	if !cycle.IsCycleEnd(date(2025, time.March, 25)) {
		t.Error("the configured end day should be a cycle end")
	}
	if !cycle.IsCycleEnd(date(2025, time.February, 28)) {
		t.Error("the last calendar day of the month should be a cycle end")
	}
	if cycle.IsCycleEnd(date(2025, time.March, 12)) {
		t.Error("a mid-cycle day should not be a cycle end")
	}
}

func TestWeek_Spans(t *testing.T) {
	// GIVEN: Wednesday Jan 8, 2025
	wednesday := date(2025, time.January, 8)

	toDate := WeekToDate(wednesday)
	if !toDate.Start.Equal(date(2025, time.January, 6)) {
		t.Errorf("week start = %s, want the Monday 2025-01-06", toDate.Start.Format("2006-01-02"))
	}
	if !toDate.End.Equal(wednesday) {
		t.Errorf("week-to-date end should be the reference date")
	}

	full := WeekFull(wednesday)
	if !full.End.Equal(date(2025, time.January, 11)) {
		t.Errorf("full week end = %s, want the Saturday 2025-01-11", full.End.Format("2006-01-02"))
	}
}

func TestWeek_SundayBelongsToItsMonday(t *testing.T) {
	// Sunday Jan 12 belongs to the week that started Monday Jan 6
	sunday := date(2025, time.January, 12)
	if got := WeekToDate(sunday).Start; !got.Equal(date(2025, time.January, 6)) {
		t.Errorf("week start = %s, want 2025-01-06", got.Format("2006-01-02"))
	}
}

func TestWeekID_StableAcrossTheWeek(t *testing.T) {
	monday := date(2025, time.January, 27)
	saturday := date(2025, time.February, 1)

	if WeekID(monday) != WeekID(saturday) {
		t.Errorf("WeekID changed across the week: %s vs %s", WeekID(monday), WeekID(saturday))
	}
	if WeekID(monday) != "2025_W05" {
		t.Errorf("WeekID = %s, want 2025_W05", WeekID(monday))
	}
}

func TestNewCalculator_InvalidCycleFallsBack(t *testing.T) {
	calc := NewCalculator(calendar.New(nil), Cycle{StartDay: 40, EndDay: 0})
	if calc.Cycle() != DefaultCycle() {
		t.Errorf("invalid cycle should fall back to default, got %+v", calc.Cycle())
	}
}

func TestProportionalGoal_Monotonic(t *testing.T) {
	// GIVEN: a 10k goal over the week Mon Jan 6 .. Sat Jan 11
	calc := NewCalculator(calendar.New(nil), DefaultCycle())
	total := decimal.NewFromInt(10000)
	start := date(2025, time.January, 6)
	end := date(2025, time.January, 11)

	prev := decimal.Zero
	for today := start; !today.After(end); today = today.AddDate(0, 0, 1) {
		got := calc.ProportionalGoal(total, start, today, end, "")
		if got.LessThan(prev) {
			t.Fatalf("proportional goal decreased at %s: %s < %s", today.Format("2006-01-02"), got, prev)
		}
		prev = got
	}

	// THEN: at the period end the proportional goal equals the total
	if !prev.Equal(total) {
		t.Errorf("proportional goal at period end = %s, want %s", prev, total)
	}
}

func TestProportionalGoal_DegenerateCalendar(t *testing.T) {
	// GIVEN: a period consisting of a single Sunday (zero working days)
	calc := NewCalculator(calendar.New(nil), DefaultCycle())
	total := decimal.NewFromInt(5000)
	sunday := date(2025, time.January, 12)

	got := calc.ProportionalGoal(total, sunday, sunday, sunday, "")
	if !got.Equal(total) {
		t.Errorf("degenerate calendar should return the total goal, got %s", got)
	}
}

func TestProportionalGoal_MidWeek(t *testing.T) {
	// 10000 over Mon..Sat (5.5 working days); by Wednesday 3 days elapsed
	calc := NewCalculator(calendar.New(nil), DefaultCycle())
	got := calc.ProportionalGoal(
		decimal.NewFromInt(10000),
		date(2025, time.January, 6),
		date(2025, time.January, 8),
		date(2025, time.January, 11),
		"",
	)
	want := decimal.NewFromInt(10000).
		Mul(decimal.NewFromInt(3)).
		Div(decimal.RequireFromString("5.5"))
	if !got.Equal(want) {
		t.Errorf("proportional goal = %s, want %s", got, want)
	}
}
