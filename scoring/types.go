/*
Package scoring is the trophy state machine at the heart of the engine.

PURPOSE:
  Consumes one ingested row per seller per day, persists results through
  idempotent upserts, and awards tiered trophies:

    BRONZE   daily goal met (>= 100%), evaluated on every ingestion
    SILVER   weekly accumulated sales vs the pinned weekly total, Fridays
    GOLD     monthly accumulated sales vs the proportional goal, cycle end
    BONUS_1  monthly attainment >= 105%, cycle end
    BONUS_2  monthly attainment >= 110%, cycle end

  Every write is an upsert keyed by a natural uniqueness constraint, so
  re-running a day's batch any number of times produces the same rows.

KEY CONCEPTS IN THIS FILE (types.go):
  - Seller / Row: the ingestion contract
  - DailyResult / Trophy / WeeklyGoal / WeeklyResult: persisted records
  - Rules: points and thresholds per trophy kind (replaceable constants)
  - PeriodState: the explicit (seller, week) state machine value

SEE ALSO:
  - engine.go: the transitions
  - report.go: per-seller skip collection for a batch run
  - store/sqlite/: the persistence implementation
*/
package scoring

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SELLERS AND INGESTION ROWS
// =============================================================================

type Role string

const (
	RoleSeller  Role = "SELLER"
	RoleManager Role = "MANAGER"
)

// Seller is upserted by name on every ingestion pass. Managers and
// inactive sellers are excluded from rankings and trophy evaluation.
type Seller struct {
	Name      string
	StoreCode string
	Role      Role
	Active    bool
}

// Row is the ingestion input: one row per seller per day, handed to the
// core by the external acquisition collaborator. Attainment is always
// recomputed here, never trusted from the source.
type Row struct {
	Name      string
	StoreCode string
	Role      Role
	Goal      decimal.Decimal
	Actual    decimal.Decimal
}

// =============================================================================
// PERSISTED RECORDS
// =============================================================================

// DailyResult is unique per (seller, date); re-runs overwrite.
type DailyResult struct {
	Seller     string
	Date       time.Time
	Goal       decimal.Decimal
	Actual     decimal.Decimal
	Attainment decimal.Decimal // percent, 0 when goal <= 0
}

type TrophyKind string

const (
	Bronze TrophyKind = "BRONZE"
	Silver TrophyKind = "SILVER"
	Gold   TrophyKind = "GOLD"
	Bonus1 TrophyKind = "BONUS_1"
	Bonus2 TrophyKind = "BONUS_2"
)

// Trophy is unique per (seller, achievement date, kind). The latest
// evaluation for a day/kind wins; trophy rows are the sole source of
// truth for points.
type Trophy struct {
	Seller string
	Date   time.Time
	Kind   TrophyKind
	Points int
	Reason string
}

// WeeklyGoal is pinned once per (seller, ISO week id) on first sight of
// the week and never recomputed: insert-if-absent.
type WeeklyGoal struct {
	Seller string
	WeekID string // e.g. "2025_W05"
	Start  time.Time
	End    time.Time // the closing Saturday
	Total  decimal.Decimal
}

// WeeklyResult is the period-to-date snapshot, upserted daily. The
// closing date is always the week's Saturday.
type WeeklyResult struct {
	Seller      string
	WeekID      string
	Sales       decimal.Decimal
	Goal        decimal.Decimal // the pinned total, never proportional
	Attainment  decimal.Decimal
	ClosingDate time.Time
}

// =============================================================================
// SCORING RULES
// =============================================================================

// TierRule pairs a trophy's point value with its attainment threshold
// (a percentage).
type TierRule struct {
	Points    int
	Threshold decimal.Decimal
}

// Rules maps every trophy kind to its rule. The defaults are fixed
// business constants but remain replaceable through configuration.
type Rules map[TrophyKind]TierRule

func DefaultRules() Rules {
	return Rules{
		Bronze: {Points: 1, Threshold: decimal.NewFromInt(100)},
		Silver: {Points: 3, Threshold: decimal.NewFromInt(100)},
		Gold:   {Points: 10, Threshold: decimal.NewFromInt(100)},
		Bonus1: {Points: 3, Threshold: decimal.NewFromInt(105)},
		Bonus2: {Points: 5, Threshold: decimal.NewFromInt(110)},
	}
}

// Attainment computes actual/goal as a percentage, 0 when goal <= 0.
func Attainment(actual, goal decimal.Decimal) decimal.Decimal {
	if goal.Sign() <= 0 {
		return decimal.Zero
	}
	return actual.Div(goal).Mul(decimal.NewFromInt(100))
}

// =============================================================================
// EXPLICIT PERIOD STATE
// =============================================================================

// Status marks how far a (seller, week) has advanced through the tier
// ladder. The persisted rows stay the source of truth; Status is the
// explicit read model derived from them.
type Status int

const (
	StatusNone Status = iota // no trophy yet this week
	StatusBronze             // at least one daily tier awarded
	StatusSilver             // the weekly tier has been awarded
	StatusGold               // a monthly tier landed inside this week
)

func (s Status) String() string {
	switch s {
	case StatusBronze:
		return "bronze"
	case StatusSilver:
		return "silver"
	case StatusGold:
		return "gold"
	default:
		return "none"
	}
}

// PeriodState is the per-(seller, week) state machine value.
type PeriodState struct {
	Seller string
	WeekID string
	Status Status
}

// StateOf derives the period status from a week's trophy rows.
func StateOf(seller, weekID string, trophies []Trophy) PeriodState {
	state := PeriodState{Seller: seller, WeekID: weekID, Status: StatusNone}
	for _, t := range trophies {
		switch t.Kind {
		case Gold, Bonus1, Bonus2:
			state.Status = StatusGold
		case Silver:
			if state.Status < StatusSilver {
				state.Status = StatusSilver
			}
		case Bronze:
			if state.Status < StatusBronze {
				state.Status = StatusBronze
			}
		}
	}
	return state
}

// SortKinds returns the kinds in canonical (lexicographic) order,
// deduplicated. Notification reference tokens depend on this ordering.
func SortKinds(kinds []TrophyKind) []TrophyKind {
	seen := make(map[TrophyKind]bool, len(kinds))
	var out []TrophyKind
	for _, k := range kinds {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
