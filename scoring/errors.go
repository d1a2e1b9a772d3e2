/*
errors.go - Centralized error types for the scoring engine

ERROR CATEGORIES:
  1. Data-quality errors - one bad seller/day value: skip, log, continue
  2. Policy misuse - a transition invoked outside its designated day
  3. Persistence errors - fatal for the run; the whole batch is retried

USAGE:
  Data-quality errors never abort a batch; they become Skip entries in
  the batch report. Callers distinguish categories with errors.Is:

    if scoring.IsDataQuality(err) { ... }
*/
package scoring

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingGoal is returned when a seller's goal for the day is
	// absent or non-positive. Data quality: skip this seller only.
	ErrMissingGoal = errors.New("missing or non-positive goal")

	// ErrNoWeeklyGoal is returned when a weekly evaluation finds no
	// pinned goal for the seller's week. Data quality: skip the seller.
	ErrNoWeeklyGoal = errors.New("no pinned weekly goal")

	// ErrEmptyName is returned for an ingestion row without a seller
	// name. Data quality: skip the row.
	ErrEmptyName = errors.New("empty seller name")

	// ErrNotEvaluationDay is returned when the monthly transition is
	// invoked outside the cycle-end day. Policy misuse: logged no-op.
	ErrNotEvaluationDay = errors.New("not a monthly evaluation day")
)

// SkipError carries the seller and date a data-quality skip applies to.
type SkipError struct {
	Seller string
	Date   time.Time
	Err    error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skipped %s on %s: %v", e.Seller, e.Date.Format("2006-01-02"), e.Err)
}

func (e *SkipError) Unwrap() error { return e.Err }

// IsDataQuality reports whether the error is a per-seller skip rather
// than a batch-fatal failure.
func IsDataQuality(err error) bool {
	return errors.Is(err, ErrMissingGoal) ||
		errors.Is(err, ErrNoWeeklyGoal) ||
		errors.Is(err, ErrEmptyName)
}

// IsPolicyMisuse reports whether the error is a guarded no-op rather
// than a real failure.
func IsPolicyMisuse(err error) bool {
	return errors.Is(err, ErrNotEvaluationDay)
}
