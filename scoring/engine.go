/*
engine.go - The trophy state machine transitions

TRANSITIONS:
  IngestDaily      any day: upsert results, pin weekly goals, BRONZE
  EvaluateWeekly   every day: weekly snapshot; Fridays: SILVER
  EvaluateMonthly  cycle-end day only: GOLD / BONUS_1 / BONUS_2

IDEMPOTENCE:
  Every write is an upsert keyed by a uniqueness constraint, so a crash
  mid-batch is recovered by re-running the same day. Data-quality
  problems skip one seller and continue; only persistence failures
  abort a run.
*/
package scoring

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vantage/scoring-engine/calendar"
	"github.com/vantage/scoring-engine/period"
)

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store is the persistence handle the engine writes through. All
// methods are idempotent: Upsert* overwrite on conflict, PinWeeklyGoal
// ignores on conflict.
type Store interface {
	UpsertSeller(ctx context.Context, s Seller) error
	UpsertDailyResult(ctx context.Context, r DailyResult) error
	UpsertTrophy(ctx context.Context, t Trophy) error
	UpsertWeeklyResult(ctx context.Context, r WeeklyResult) error

	// PinWeeklyGoal inserts the goal only if no row exists for the
	// (seller, week id) pair; an existing pin is never modified.
	PinWeeklyGoal(ctx context.Context, g WeeklyGoal) error
	WeeklyGoal(ctx context.Context, seller, weekID string) (*WeeklyGoal, error)

	// EligibleSellers returns active sellers excluding managers.
	EligibleSellers(ctx context.Context) ([]Seller, error)

	// SalesSummary returns SUM(actual) and MAX(goal) over the seller's
	// daily results in [from, to]. found is false when the seller has
	// no rows in the range.
	SalesSummary(ctx context.Context, seller string, from, to time.Time) (sales, maxGoal decimal.Decimal, found bool, err error)

	TrophiesBetween(ctx context.Context, seller string, from, to time.Time) ([]Trophy, error)

	// DailyResultsOn lists every stored result for one date; replays
	// rebuild the trophy set from these rows alone.
	DailyResultsOn(ctx context.Context, date time.Time) ([]DailyResult, error)
	DeleteTrophies(ctx context.Context, from, to time.Time) error
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs the scoring transitions against an injected store and
// period calculator.
type Engine struct {
	store   Store
	periods *period.Calculator
	rules   Rules
}

func NewEngine(store Store, periods *period.Calculator, rules Rules) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{store: store, periods: periods, rules: rules}
}

// IngestDaily processes one day's ingestion rows: upserts sellers and
// daily results, pins weekly goals on first sight of the week, and
// evaluates the BRONZE tier. Safe to re-run with identical input.
func (e *Engine) IngestDaily(ctx context.Context, ref time.Time, rows []Row) (*BatchReport, error) {
	ref = calendar.DateOnly(ref)
	report := newReport("ingest-daily", ref)
	log.Printf("[Engine] daily ingestion for %s: %d rows", ref.Format("2006-01-02"), len(rows))

	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			if err := report.collect("(blank)", &SkipError{Seller: "(blank)", Date: ref, Err: ErrEmptyName}); err != nil {
				return report, err
			}
			continue
		}

		role := row.Role
		if role == "" {
			role = RoleSeller
		}
		seller := Seller{Name: name, StoreCode: strings.TrimSpace(row.StoreCode), Role: role, Active: true}
		if err := e.store.UpsertSeller(ctx, seller); err != nil {
			return report, fmt.Errorf("upsert seller %s: %w", name, err)
		}

		attainment := Attainment(row.Actual, row.Goal)
		result := DailyResult{
			Seller:     name,
			Date:       ref,
			Goal:       row.Goal,
			Actual:     row.Actual,
			Attainment: attainment,
		}
		if err := e.store.UpsertDailyResult(ctx, result); err != nil {
			return report, fmt.Errorf("upsert daily result for %s: %w", name, err)
		}
		report.Processed++

		// Pin the weekly goal on the first goal-bearing row of the week.
		if row.Goal.Sign() > 0 {
			if err := e.pinWeeklyGoal(ctx, seller, ref, row.Goal); err != nil {
				return report, err
			}
		} else {
			if err := report.collect(name, &SkipError{Seller: name, Date: ref, Err: ErrMissingGoal}); err != nil {
				return report, err
			}
		}

		// Daily tier. Managers never earn trophies.
		if role == RoleManager {
			continue
		}
		if rule := e.rules[Bronze]; attainment.GreaterThanOrEqual(rule.Threshold) {
			trophy := Trophy{
				Seller: name,
				Date:   ref,
				Kind:   Bronze,
				Points: rule.Points,
				Reason: fmt.Sprintf("Daily goal met: %s%%", attainment.StringFixed(1)),
			}
			if err := e.store.UpsertTrophy(ctx, trophy); err != nil {
				return report, fmt.Errorf("upsert bronze for %s: %w", name, err)
			}
			report.award(trophy)
		}
	}

	log.Printf("[Engine] %s", report)
	return report, nil
}

func (e *Engine) pinWeeklyGoal(ctx context.Context, seller Seller, ref time.Time, dailyGoal decimal.Decimal) error {
	weekID := period.WeekID(ref)
	existing, err := e.store.WeeklyGoal(ctx, seller.Name, weekID)
	if err != nil {
		return fmt.Errorf("load weekly goal for %s: %w", seller.Name, err)
	}
	if existing != nil {
		return nil
	}

	week := period.WeekFull(ref)
	weight := e.periods.Calendar().WorkingDays(week.Start, week.End, seller.StoreCode)
	goal := WeeklyGoal{
		Seller: seller.Name,
		WeekID: weekID,
		Start:  week.Start,
		End:    week.End,
		Total:  dailyGoal.Mul(weight),
	}
	if err := e.store.PinWeeklyGoal(ctx, goal); err != nil {
		return fmt.Errorf("pin weekly goal for %s: %w", seller.Name, err)
	}
	log.Printf("[Engine] pinned weekly goal for %s week %s: %s (working days %s)",
		seller.Name, weekID, goal.Total.StringFixed(2), weight)
	return nil
}

// EvaluateWeekly refreshes each seller's weekly snapshot and, on
// Fridays, awards the SILVER tier against the pinned weekly total. The
// snapshot runs every day so the weekly leaderboard stays current.
func (e *Engine) EvaluateWeekly(ctx context.Context, ref time.Time) (*BatchReport, error) {
	ref = calendar.DateOnly(ref)
	report := newReport("evaluate-weekly", ref)

	isFriday := ref.Weekday() == time.Friday
	week := period.WeekToDate(ref)
	full := period.WeekFull(ref)
	weekID := period.WeekID(ref)

	sellers, err := e.store.EligibleSellers(ctx)
	if err != nil {
		return report, fmt.Errorf("list sellers: %w", err)
	}

	for _, seller := range sellers {
		sales, _, found, err := e.store.SalesSummary(ctx, seller.Name, week.Start, week.End)
		if err != nil {
			return report, fmt.Errorf("weekly sales for %s: %w", seller.Name, err)
		}
		if !found {
			continue
		}

		goal, err := e.store.WeeklyGoal(ctx, seller.Name, weekID)
		if err != nil {
			return report, fmt.Errorf("weekly goal for %s: %w", seller.Name, err)
		}
		if goal == nil || goal.Total.Sign() <= 0 {
			if err := report.collect(seller.Name, &SkipError{Seller: seller.Name, Date: ref, Err: ErrNoWeeklyGoal}); err != nil {
				return report, err
			}
			continue
		}

		// Attainment is always against the pinned TOTAL, never proportional.
		attainment := Attainment(sales, goal.Total)

		if isFriday {
			if rule := e.rules[Silver]; attainment.GreaterThanOrEqual(rule.Threshold) {
				trophy := Trophy{
					Seller: seller.Name,
					Date:   ref,
					Kind:   Silver,
					Points: rule.Points,
					Reason: fmt.Sprintf("Weekly goal met: %s%%", attainment.StringFixed(1)),
				}
				if err := e.store.UpsertTrophy(ctx, trophy); err != nil {
					return report, fmt.Errorf("upsert silver for %s: %w", seller.Name, err)
				}
				report.award(trophy)
			}
		}

		snapshot := WeeklyResult{
			Seller:      seller.Name,
			WeekID:      weekID,
			Sales:       sales,
			Goal:        goal.Total,
			Attainment:  attainment,
			ClosingDate: full.End,
		}
		if err := e.store.UpsertWeeklyResult(ctx, snapshot); err != nil {
			return report, fmt.Errorf("upsert weekly result for %s: %w", seller.Name, err)
		}
		report.Processed++
	}

	log.Printf("[Engine] %s", report)
	return report, nil
}

// EvaluateMonthly awards the GOLD/BONUS tiers against the proportional
// goal. It only runs on the cycle-end day (or the last calendar day of
// the month); any other invocation returns a NoOp report with
// ErrNotEvaluationDay, which callers recognize via IsPolicyMisuse and
// treat as a guarded decline rather than a failure.
func (e *Engine) EvaluateMonthly(ctx context.Context, ref time.Time) (*BatchReport, error) {
	ref = calendar.DateOnly(ref)
	report := newReport("evaluate-monthly", ref)

	if !e.periods.IsCycleEnd(ref) {
		log.Printf("[Engine] monthly evaluation invoked on %s (day %d), expected cycle-end day %d or month end; ignoring",
			ref.Format("2006-01-02"), ref.Day(), e.periods.Cycle().EndDay)
		report.NoOp = true
		return report, ErrNotEvaluationDay
	}

	monthToDate := e.periods.MonthToDate(ref)
	monthFull := e.periods.MonthFull(ref)

	sellers, err := e.store.EligibleSellers(ctx)
	if err != nil {
		return report, fmt.Errorf("list sellers: %w", err)
	}

	for _, seller := range sellers {
		sales, maxGoal, found, err := e.store.SalesSummary(ctx, seller.Name, monthToDate.Start, monthToDate.End)
		if err != nil {
			return report, fmt.Errorf("monthly sales for %s: %w", seller.Name, err)
		}
		if !found {
			continue
		}
		if maxGoal.Sign() <= 0 {
			if err := report.collect(seller.Name, &SkipError{Seller: seller.Name, Date: ref, Err: ErrMissingGoal}); err != nil {
				return report, err
			}
			continue
		}

		cal := e.periods.Calendar()
		totalGoal := maxGoal.Mul(cal.WorkingDays(monthFull.Start, monthFull.End, seller.StoreCode))
		proportional := e.periods.ProportionalGoal(totalGoal, monthFull.Start, ref, monthFull.End, seller.StoreCode)
		if proportional.Sign() <= 0 {
			if err := report.collect(seller.Name, &SkipError{Seller: seller.Name, Date: ref, Err: ErrMissingGoal}); err != nil {
				return report, err
			}
			continue
		}

		attainment := Attainment(sales, proportional)
		report.Processed++

		// The monthly tiers are independent: a strong month can land
		// all three in one evaluation.
		for _, kind := range []TrophyKind{Gold, Bonus1, Bonus2} {
			rule := e.rules[kind]
			if attainment.LessThan(rule.Threshold) {
				continue
			}
			trophy := Trophy{
				Seller: seller.Name,
				Date:   ref,
				Kind:   kind,
				Points: rule.Points,
				Reason: monthlyReason(kind, rule.Threshold, attainment),
			}
			if err := e.store.UpsertTrophy(ctx, trophy); err != nil {
				return report, fmt.Errorf("upsert %s for %s: %w", kind, seller.Name, err)
			}
			report.award(trophy)
		}
	}

	log.Printf("[Engine] %s", report)
	return report, nil
}

func monthlyReason(kind TrophyKind, threshold, attainment decimal.Decimal) string {
	switch kind {
	case Gold:
		return fmt.Sprintf("Monthly goal met: %s%%", attainment.StringFixed(1))
	default:
		return fmt.Sprintf("Monthly stretch %s%%: %s%%", threshold.StringFixed(0), attainment.StringFixed(1))
	}
}

// Replay rebuilds the trophy set for [from, to] from the stored daily
// results: the range's trophies are deleted and every day's
// transitions re-run in order. Pinned weekly goals stay in place, so
// the rebuilt awards match the originals row for row.
func (e *Engine) Replay(ctx context.Context, from, to time.Time) (*BatchReport, error) {
	from = calendar.DateOnly(from)
	to = calendar.DateOnly(to)
	report := newReport("replay", to)
	log.Printf("[Engine] replaying %s..%s from stored results",
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	if err := e.store.DeleteTrophies(ctx, from, to); err != nil {
		return report, fmt.Errorf("clear trophies: %w", err)
	}

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := e.replayDay(ctx, day, report); err != nil {
			return report, err
		}
	}

	log.Printf("[Engine] %s", report)
	return report, nil
}

func (e *Engine) replayDay(ctx context.Context, day time.Time, report *BatchReport) error {
	results, err := e.store.DailyResultsOn(ctx, day)
	if err != nil {
		return fmt.Errorf("daily results for %s: %w", day.Format("2006-01-02"), err)
	}

	sellers, err := e.store.EligibleSellers(ctx)
	if err != nil {
		return fmt.Errorf("list sellers: %w", err)
	}
	eligible := make(map[string]bool, len(sellers))
	for _, s := range sellers {
		eligible[s.Name] = true
	}

	rule := e.rules[Bronze]
	for _, res := range results {
		if !eligible[res.Seller] || res.Goal.Sign() <= 0 {
			continue
		}
		report.Processed++
		if res.Attainment.GreaterThanOrEqual(rule.Threshold) {
			trophy := Trophy{
				Seller: res.Seller,
				Date:   day,
				Kind:   Bronze,
				Points: rule.Points,
				Reason: fmt.Sprintf("Daily goal met: %s%%", res.Attainment.StringFixed(1)),
			}
			if err := e.store.UpsertTrophy(ctx, trophy); err != nil {
				return fmt.Errorf("upsert bronze for %s: %w", res.Seller, err)
			}
			report.award(trophy)
		}
	}

	if _, err := e.EvaluateWeekly(ctx, day); err != nil {
		return err
	}
	if _, err := e.EvaluateMonthly(ctx, day); err != nil && !IsPolicyMisuse(err) {
		return err
	}
	return nil
}

// StateFor derives the explicit (seller, week) state from the trophies
// persisted inside the reference date's commercial week.
func (e *Engine) StateFor(ctx context.Context, seller string, ref time.Time) (PeriodState, error) {
	week := period.WeekFull(ref)
	trophies, err := e.store.TrophiesBetween(ctx, seller, week.Start, week.End)
	if err != nil {
		return PeriodState{}, fmt.Errorf("trophies for %s: %w", seller, err)
	}
	return StateOf(seller, period.WeekID(ref), trophies), nil
}

// Rules exposes the active rule set (for reporting surfaces).
func (e *Engine) Rules() Rules { return e.rules }
