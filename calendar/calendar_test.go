package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestWeight_WeekdayRules(t *testing.T) {
	svc := New(nil)

	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"monday", date(2025, time.January, 6), "1"},
		{"friday", date(2025, time.January, 10), "1"},
		{"saturday", date(2025, time.January, 11), "0.5"},
		{"sunday", date(2025, time.January, 12), "0"},
		{"new-years-eve-wednesday", date(2025, time.December, 31), "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.Weight(tt.date, "")
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("Weight(%s) = %s, want %s", tt.date.Format("2006-01-02"), got, want)
			}
		})
	}
}

func TestWeight_HolidayOverridesEverything(t *testing.T) {
	// GIVEN: a national holiday on a Monday and a store holiday on Dec 31
	set := NewSet(
		Holiday{Scope: ScopeAll, Date: date(2025, time.January, 6)},
		Holiday{Scope: "14", Date: date(2025, time.December, 31)},
	)
	svc := New(set)

	// THEN: the national holiday zeroes a regular weekday for any scope
	if !svc.Weight(date(2025, time.January, 6), "07").IsZero() {
		t.Error("national holiday should weigh 0 for every store")
	}

	// THEN: the store holiday beats the Dec 31 half-day override
	if !svc.Weight(date(2025, time.December, 31), "14").IsZero() {
		t.Error("store holiday should weigh 0 even on Dec 31")
	}

	// THEN: other stores still get the Dec 31 half day
	if !svc.Weight(date(2025, time.December, 31), "07").Equal(decimal.New(5, -1)) {
		t.Error("Dec 31 should weigh 0.5 for stores without the holiday")
	}
}

func TestWorkingDays_FullWeek(t *testing.T) {
	// GIVEN: a plain Monday..Saturday week with no holidays
	svc := New(nil)

	// WHEN: summing Monday Jan 6 through Saturday Jan 11, 2025
	got := svc.WorkingDays(date(2025, time.January, 6), date(2025, time.January, 11), "")

	// THEN: 5 weekdays + half Saturday = 5.5
	if !got.Equal(decimal.RequireFromString("5.5")) {
		t.Errorf("WorkingDays = %s, want 5.5", got)
	}
}

func TestWorkingDays_HolidayReducesWeek(t *testing.T) {
	set := NewSet(Holiday{Scope: ScopeAll, Date: date(2025, time.January, 8)})
	svc := New(set)

	got := svc.WorkingDays(date(2025, time.January, 6), date(2025, time.January, 11), "")
	if !got.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("WorkingDays = %s, want 4.5", got)
	}
}

func TestWorkingDays_ReversedRangeIsZero(t *testing.T) {
	svc := New(nil)
	got := svc.WorkingDays(date(2025, time.January, 11), date(2025, time.January, 6), "")
	if !got.IsZero() {
		t.Errorf("WorkingDays over reversed range = %s, want 0", got)
	}
}

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		"scope,date,name",
		"ALL,2025-04-21,Tiradentes",
		"14,2025-07-09,City Anniversary",
		",2025-12-25,Christmas",
	}, "\n")

	holidays, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if len(holidays) != 3 {
		t.Fatalf("expected 3 holidays, got %d", len(holidays))
	}
	if holidays[0].Scope != ScopeAll {
		t.Errorf("scope = %q, want ALL", holidays[0].Scope)
	}
	if holidays[1].Scope != "14" {
		t.Errorf("scope = %q, want 14", holidays[1].Scope)
	}
	if holidays[2].Scope != ScopeAll {
		t.Errorf("empty scope should normalize to ALL, got %q", holidays[2].Scope)
	}
}

func TestParseCSV_BadDate(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("ALL,25/12/2025,Christmas"))
	if err == nil {
		t.Fatal("expected error for malformed date")
	}
}
