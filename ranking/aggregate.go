package ranking

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vantage/scoring-engine/calendar"
	"github.com/vantage/scoring-engine/period"
	"github.com/vantage/scoring-engine/scoring"
)

// Store is the read surface the boards are computed from. Sellers
// returned by EligibleSellers already exclude managers and inactive
// rows, so every board inherits that filter.
type Store interface {
	EligibleSellers(ctx context.Context) ([]scoring.Seller, error)
	TrophiesBetween(ctx context.Context, seller string, from, to time.Time) ([]scoring.Trophy, error)
	SalesSummary(ctx context.Context, seller string, from, to time.Time) (sales, maxGoal decimal.Decimal, found bool, err error)
	WeeklyGoal(ctx context.Context, seller, weekID string) (*scoring.WeeklyGoal, error)
	WeeklyResult(ctx context.Context, seller, weekID string) (*scoring.WeeklyResult, error)
}

// Aggregator computes the boards. It holds no state beyond its
// configuration; every call reads fresh from the store.
type Aggregator struct {
	store         Store
	periods       *period.Calculator
	campaignStart time.Time
	tiebreak      []Criterion
}

func NewAggregator(store Store, periods *period.Calculator, campaignStart time.Time, tiebreak []Criterion) *Aggregator {
	if campaignStart.IsZero() {
		campaignStart = DefaultCampaignStart()
	}
	if len(tiebreak) == 0 {
		tiebreak = DefaultTieBreak()
	}
	return &Aggregator{
		store:         store,
		periods:       periods,
		campaignStart: calendar.DateOnly(campaignStart),
		tiebreak:      tiebreak,
	}
}

// =============================================================================
// POINTS BOARD
// =============================================================================

// ByPoints ranks all eligible sellers by cumulative trophy points from
// the campaign start through asOf, breaking ties along the configured
// chain.
func (a *Aggregator) ByPoints(ctx context.Context, asOf time.Time) ([]PointsEntry, error) {
	asOf = calendar.DateOnly(asOf)
	sellers, err := a.store.EligibleSellers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sellers: %w", err)
	}

	entries := make([]PointsEntry, 0, len(sellers))
	for _, seller := range sellers {
		trophies, err := a.store.TrophiesBetween(ctx, seller.Name, a.campaignStart, asOf)
		if err != nil {
			return nil, fmt.Errorf("trophies for %s: %w", seller.Name, err)
		}
		m := tally(trophies)

		attainment, err := a.monthlyAttainment(ctx, seller, asOf)
		if err != nil {
			return nil, err
		}

		entries = append(entries, PointsEntry{
			Seller:            seller.Name,
			StoreCode:         seller.StoreCode,
			Points:            m.points,
			Gold:              m.gold,
			Silver:            m.silver,
			Bronze:            m.bronze,
			MonthlyAttainment: attainment,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return comparePoints(entries[i], entries[j], a.tiebreak)
	})
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries, nil
}

// =============================================================================
// WEEKLY BOARD
// =============================================================================

// Weekly ranks the commercial week containing asOf. On Saturday the
// closed snapshot is authoritative; before that the board is a live
// partial against each seller's pinned weekly total.
func (a *Aggregator) Weekly(ctx context.Context, asOf time.Time) ([]Entry, error) {
	asOf = calendar.DateOnly(asOf)
	sellers, err := a.store.EligibleSellers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sellers: %w", err)
	}

	weekID := period.WeekID(asOf)
	week := period.WeekToDate(asOf)
	full := period.WeekFull(asOf)
	closed := asOf.Weekday() == time.Saturday

	entries := make([]Entry, 0, len(sellers))
	for _, seller := range sellers {
		if closed {
			snapshot, err := a.store.WeeklyResult(ctx, seller.Name, weekID)
			if err != nil {
				return nil, fmt.Errorf("weekly result for %s: %w", seller.Name, err)
			}
			if snapshot != nil {
				entries = append(entries, Entry{
					Seller:     seller.Name,
					StoreCode:  seller.StoreCode,
					Sales:      snapshot.Sales,
					Goal:       snapshot.Goal,
					Attainment: snapshot.Attainment,
					Closed:     true,
				})
				continue
			}
		}

		sales, maxGoal, found, err := a.store.SalesSummary(ctx, seller.Name, week.Start, week.End)
		if err != nil {
			return nil, fmt.Errorf("weekly sales for %s: %w", seller.Name, err)
		}
		if !found {
			continue
		}

		goal, err := a.weeklyTotal(ctx, seller, weekID, full, maxGoal)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Seller:     seller.Name,
			StoreCode:  seller.StoreCode,
			Sales:      sales,
			Goal:       goal,
			Attainment: scoring.Attainment(sales, goal),
		})
	}

	sortEntries(entries)
	return entries, nil
}

// weeklyTotal prefers the pinned goal; a seller who was never pinned
// (goal reported late in the week) falls back to the max daily goal
// scaled by the week's working days.
func (a *Aggregator) weeklyTotal(ctx context.Context, seller scoring.Seller, weekID string, full period.Span, maxGoal decimal.Decimal) (decimal.Decimal, error) {
	pinned, err := a.store.WeeklyGoal(ctx, seller.Name, weekID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("weekly goal for %s: %w", seller.Name, err)
	}
	if pinned != nil && pinned.Total.Sign() > 0 {
		return pinned.Total, nil
	}
	weight := a.periods.Calendar().WorkingDays(full.Start, full.End, seller.StoreCode)
	log.Printf("[Ranking] no pinned goal for %s week %s, scaling max daily goal", seller.Name, weekID)
	return maxGoal.Mul(weight), nil
}

// =============================================================================
// MONTHLY BOARD
// =============================================================================

// Monthly ranks the commercial month containing asOf: month-to-date
// sales against the FULL period total. Using the full total instead of
// the proportional goal keeps positions comparable on any day of the
// cycle.
func (a *Aggregator) Monthly(ctx context.Context, asOf time.Time) ([]Entry, error) {
	asOf = calendar.DateOnly(asOf)
	sellers, err := a.store.EligibleSellers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sellers: %w", err)
	}

	monthToDate := a.periods.MonthToDate(asOf)
	monthFull := a.periods.MonthFull(asOf)

	entries := make([]Entry, 0, len(sellers))
	for _, seller := range sellers {
		sales, maxGoal, found, err := a.store.SalesSummary(ctx, seller.Name, monthToDate.Start, monthToDate.End)
		if err != nil {
			return nil, fmt.Errorf("monthly sales for %s: %w", seller.Name, err)
		}
		if !found {
			continue
		}

		weight := a.periods.Calendar().WorkingDays(monthFull.Start, monthFull.End, seller.StoreCode)
		total := maxGoal.Mul(weight)
		entries = append(entries, Entry{
			Seller:     seller.Name,
			StoreCode:  seller.StoreCode,
			Sales:      sales,
			Goal:       total,
			Attainment: scoring.Attainment(sales, total),
		})
	}

	sortEntries(entries)
	return entries, nil
}

func (a *Aggregator) monthlyAttainment(ctx context.Context, seller scoring.Seller, asOf time.Time) (decimal.Decimal, error) {
	monthToDate := a.periods.MonthToDate(asOf)
	monthFull := a.periods.MonthFull(asOf)

	sales, maxGoal, found, err := a.store.SalesSummary(ctx, seller.Name, monthToDate.Start, monthToDate.End)
	if err != nil {
		return decimal.Zero, fmt.Errorf("monthly sales for %s: %w", seller.Name, err)
	}
	if !found || maxGoal.Sign() <= 0 {
		return decimal.Zero, nil
	}
	weight := a.periods.Calendar().WorkingDays(monthFull.Start, monthFull.End, seller.StoreCode)
	return scoring.Attainment(sales, maxGoal.Mul(weight)), nil
}

// =============================================================================
// DAILY SUMMARY
// =============================================================================

// DailySummary reports each seller who earned a trophy on day, with
// the day's points, month-to-date points, and medal counts since the
// start of the commercial month.
func (a *Aggregator) DailySummary(ctx context.Context, day time.Time) ([]SummaryEntry, error) {
	day = calendar.DateOnly(day)
	sellers, err := a.store.EligibleSellers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sellers: %w", err)
	}

	monthToDate := a.periods.MonthToDate(day)

	entries := make([]SummaryEntry, 0)
	for _, seller := range sellers {
		todays, err := a.store.TrophiesBetween(ctx, seller.Name, day, day)
		if err != nil {
			return nil, fmt.Errorf("trophies for %s: %w", seller.Name, err)
		}
		if len(todays) == 0 {
			continue
		}

		monthly, err := a.store.TrophiesBetween(ctx, seller.Name, monthToDate.Start, day)
		if err != nil {
			return nil, fmt.Errorf("month trophies for %s: %w", seller.Name, err)
		}
		m := tally(monthly)

		kinds := make([]scoring.TrophyKind, 0, len(todays))
		dayPoints := 0
		for _, t := range todays {
			kinds = append(kinds, t.Kind)
			dayPoints += t.Points
		}

		entries = append(entries, SummaryEntry{
			Seller:      seller.Name,
			DayPoints:   dayPoints,
			MonthPoints: m.points,
			Gold:        m.gold,
			Silver:      m.silver,
			Bronze:      m.bronze,
			Trophies:    scoring.SortKinds(kinds),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].DayPoints != entries[j].DayPoints {
			return entries[i].DayPoints > entries[j].DayPoints
		}
		return entries[i].Seller < entries[j].Seller
	})
	return entries, nil
}

// CampaignStart exposes the configured points-board anchor.
func (a *Aggregator) CampaignStart() time.Time { return a.campaignStart }
