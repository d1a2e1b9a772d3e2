/*
Package ranking builds the read-side leaderboards over persisted
results and trophies.

PURPOSE:
  All three boards are derived at query time; nothing here writes.

  - Points board: cumulative trophy points since the campaign start,
    ordered by a configurable tie-break chain
  - Weekly board: the closed Saturday snapshot when one exists,
    otherwise a live partial against the pinned weekly total
  - Monthly board: live month-to-date sales against the full-period
    goal, so the ordering is stable across the whole cycle

SEE ALSO:
  scoring/engine.go  - the write side these boards read from
  period/period.go   - the commercial month and week boundaries
*/
package ranking

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vantage/scoring-engine/scoring"
)

// =============================================================================
// TIE-BREAK CHAIN
// =============================================================================

// Criterion names one comparison step of the points-board ordering.
type Criterion string

const (
	ByPoints            Criterion = "points"
	ByMonthlyAttainment Criterion = "monthly_attainment"
	ByGold              Criterion = "gold"
	BySilver            Criterion = "silver"
	ByBronze            Criterion = "bronze"
	ByName              Criterion = "name"
)

// DefaultTieBreak is the full ordering chain: points first, then the
// current month's attainment, then medal counts from gold down, with
// the name as the final deterministic anchor.
func DefaultTieBreak() []Criterion {
	return []Criterion{ByPoints, ByMonthlyAttainment, ByGold, BySilver, ByBronze, ByName}
}

// =============================================================================
// BOARD ENTRIES
// =============================================================================

// PointsEntry is one row of the cumulative points board.
type PointsEntry struct {
	Position          int             `json:"position"`
	Seller            string          `json:"seller"`
	StoreCode         string          `json:"store_code"`
	Points            int             `json:"points"`
	Gold              int             `json:"gold"`
	Silver            int             `json:"silver"`
	Bronze            int             `json:"bronze"`
	MonthlyAttainment decimal.Decimal `json:"monthly_attainment"`
}

// Entry is one row of the weekly or monthly attainment board.
type Entry struct {
	Position   int             `json:"position"`
	Seller     string          `json:"seller"`
	StoreCode  string          `json:"store_code"`
	Sales      decimal.Decimal `json:"sales"`
	Goal       decimal.Decimal `json:"goal"`
	Attainment decimal.Decimal `json:"attainment"`

	// Closed marks a weekly row served from the Saturday snapshot
	// rather than computed live.
	Closed bool `json:"closed,omitempty"`
}

// SummaryEntry is one seller's line in the end-of-day summary. Only
// sellers who earned at least one trophy that day appear.
type SummaryEntry struct {
	Seller      string               `json:"seller"`
	DayPoints   int                  `json:"day_points"`
	MonthPoints int                  `json:"month_points"`
	Gold        int                  `json:"gold"`
	Silver      int                  `json:"silver"`
	Bronze      int                  `json:"bronze"`
	Trophies    []scoring.TrophyKind `json:"trophies"`
}

// medalTally counts trophies by tier. The two monthly bonuses count as
// points only, not medals.
type medalTally struct {
	gold, silver, bronze int
	points               int
}

func tally(trophies []scoring.Trophy) medalTally {
	var m medalTally
	for _, t := range trophies {
		m.points += t.Points
		switch t.Kind {
		case scoring.Gold:
			m.gold++
		case scoring.Silver:
			m.silver++
		case scoring.Bronze:
			m.bronze++
		}
	}
	return m
}

// =============================================================================
// ORDERING
// =============================================================================

func comparePoints(a, b PointsEntry, chain []Criterion) bool {
	for _, c := range chain {
		switch c {
		case ByPoints:
			if a.Points != b.Points {
				return a.Points > b.Points
			}
		case ByMonthlyAttainment:
			if !a.MonthlyAttainment.Equal(b.MonthlyAttainment) {
				return a.MonthlyAttainment.GreaterThan(b.MonthlyAttainment)
			}
		case ByGold:
			if a.Gold != b.Gold {
				return a.Gold > b.Gold
			}
		case BySilver:
			if a.Silver != b.Silver {
				return a.Silver > b.Silver
			}
		case ByBronze:
			if a.Bronze != b.Bronze {
				return a.Bronze > b.Bronze
			}
		case ByName:
			if a.Seller != b.Seller {
				return a.Seller < b.Seller
			}
		}
	}
	return a.Seller < b.Seller
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Attainment.Equal(b.Attainment) {
			return a.Attainment.GreaterThan(b.Attainment)
		}
		if !a.Sales.Equal(b.Sales) {
			return a.Sales.GreaterThan(b.Sales)
		}
		return a.Seller < b.Seller
	})
	for i := range entries {
		entries[i].Position = i + 1
	}
}

// DefaultCampaignStart anchors the points board when no explicit
// campaign start is configured.
func DefaultCampaignStart() time.Time {
	return time.Date(2024, time.December, 29, 0, 0, 0, 0, time.UTC)
}
