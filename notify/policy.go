/*
Package notify decides WHEN a message goes out, never what transport
carries it.

PURPOSE:
  The engine runs as repeated batches, so every send decision must be
  replay-safe. The policy answers "is this message due right now?" from
  a persisted send log keyed by idempotency tokens:

    daily broadcast   "2025-01-29_M"      once per shift per day
    special boards    "2025-W05"          once per ISO week, gated weekday
    individual        "BRONZE+SILVER"     set difference per seller per day

  Callers ask Due, deliver through whatever channel they own, then
  Record. A crash between Due and Record re-offers the message on the
  next run, which is the safe direction to fail.

SEE ALSO:
  templates.go - the message bodies picked for due notifications
*/
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/vantage/scoring-engine/calendar"
	"github.com/vantage/scoring-engine/scoring"
)

// =============================================================================
// SHIFTS AND KINDS
// =============================================================================

// Shift identifies the delivery window within a day.
type Shift string

const (
	ShiftMorning   Shift = "M"
	ShiftAfternoon Shift = "T"
)

// BroadcastKind names a notification stream with its own dedup rules.
type BroadcastKind string

const (
	KindDaily      BroadcastKind = "DAILY"
	KindPoints     BroadcastKind = "POINTS"
	KindMonthly    BroadcastKind = "MONTHLY"
	KindWeekly     BroadcastKind = "WEEKLY"
	KindIndividual BroadcastKind = "INDIVIDUAL"
)

// GroupRecipient is the sentinel recipient for group-wide sends.
const GroupRecipient = "__group__"

// specialWeekday gates each weekly special to its day.
var specialWeekday = map[BroadcastKind]time.Weekday{
	KindPoints:  time.Monday,
	KindMonthly: time.Wednesday,
	KindWeekly:  time.Friday,
}

// Windows holds the hour bounds of the two delivery shifts. Start is
// inclusive, End exclusive.
type Windows struct {
	MorningStart   int `toml:"morning_start"`
	MorningEnd     int `toml:"morning_end"`
	AfternoonStart int `toml:"afternoon_start"`
	AfternoonEnd   int `toml:"afternoon_end"`
}

func DefaultWindows() Windows {
	return Windows{MorningStart: 10, MorningEnd: 12, AfternoonStart: 16, AfternoonEnd: 19}
}

// ShiftAt resolves which shift, if any, contains the given instant.
func (w Windows) ShiftAt(now time.Time) (Shift, bool) {
	h := now.Hour()
	switch {
	case h >= w.MorningStart && h < w.MorningEnd:
		return ShiftMorning, true
	case h >= w.AfternoonStart && h < w.AfternoonEnd:
		return ShiftAfternoon, true
	default:
		return "", false
	}
}

// =============================================================================
// TOKENS
// =============================================================================

// DailyToken is the idempotency token for the daily broadcast.
func DailyToken(day time.Time, shift Shift) string {
	return fmt.Sprintf("%s_%s", day.Format("2006-01-02"), shift)
}

// WeekToken is the idempotency token for the weekly specials.
func WeekToken(day time.Time) string {
	year, week := day.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// KindsToken canonicalizes a trophy set into a stable token.
func KindsToken(kinds []scoring.TrophyKind) string {
	sorted := scoring.SortKinds(kinds)
	parts := make([]string, len(sorted))
	for i, k := range sorted {
		parts[i] = string(k)
	}
	return strings.Join(parts, "+")
}

func parseKindsToken(token string) []scoring.TrophyKind {
	if token == "" {
		return nil
	}
	parts := strings.Split(token, "+")
	kinds := make([]scoring.TrophyKind, len(parts))
	for i, p := range parts {
		kinds[i] = scoring.TrophyKind(p)
	}
	return kinds
}

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store is the persisted send log. A row exists exactly when a message
// was recorded as delivered.
type Store interface {
	WasSent(ctx context.Context, recipient string, kind BroadcastKind, token string) (bool, error)
	RecordSent(ctx context.Context, recipient string, kind BroadcastKind, token string, day time.Time) error

	// SentTokens lists every token recorded for the recipient and kind
	// on the given day.
	SentTokens(ctx context.Context, recipient string, kind BroadcastKind, day time.Time) ([]string, error)
}

// =============================================================================
// POLICY
// =============================================================================

// Policy makes all send decisions against one Store and one set of
// shift windows.
type Policy struct {
	store   Store
	windows Windows
}

func NewPolicy(store Store, windows Windows) *Policy {
	if windows == (Windows{}) {
		windows = DefaultWindows()
	}
	return &Policy{store: store, windows: windows}
}

func (p *Policy) Windows() Windows { return p.windows }

// DailyDue reports whether the group daily broadcast is due at now.
// The returned shift is only meaningful when due is true or when now
// falls inside a window.
func (p *Policy) DailyDue(ctx context.Context, now time.Time) (Shift, bool, error) {
	shift, ok := p.windows.ShiftAt(now)
	if !ok {
		return "", false, nil
	}
	token := DailyToken(now, shift)
	sent, err := p.store.WasSent(ctx, GroupRecipient, KindDaily, token)
	if err != nil {
		return shift, false, fmt.Errorf("check daily token %s: %w", token, err)
	}
	return shift, !sent, nil
}

// RecordDaily marks the current shift's daily broadcast as delivered.
func (p *Policy) RecordDaily(ctx context.Context, now time.Time) error {
	shift, ok := p.windows.ShiftAt(now)
	if !ok {
		log.Printf("[Policy] daily broadcast recorded outside any shift window at %s; ignoring", now.Format(time.RFC3339))
		return nil
	}
	token := DailyToken(now, shift)
	return p.store.RecordSent(ctx, GroupRecipient, KindDaily, token, calendar.DateOnly(now))
}

// BroadcastDue reports whether a weekly special board is due: right
// weekday, afternoon shift, and not yet sent this ISO week.
func (p *Policy) BroadcastDue(ctx context.Context, now time.Time, kind BroadcastKind) (bool, error) {
	weekday, ok := specialWeekday[kind]
	if !ok {
		log.Printf("[Policy] unknown special kind %q; ignoring", kind)
		return false, nil
	}
	if now.Weekday() != weekday {
		return false, nil
	}
	if shift, ok := p.windows.ShiftAt(now); !ok || shift != ShiftAfternoon {
		return false, nil
	}
	token := WeekToken(now)
	sent, err := p.store.WasSent(ctx, GroupRecipient, kind, token)
	if err != nil {
		return false, fmt.Errorf("check %s token %s: %w", kind, token, err)
	}
	return !sent, nil
}

// RecordBroadcast marks a weekly special as delivered for this ISO week.
func (p *Policy) RecordBroadcast(ctx context.Context, now time.Time, kind BroadcastKind) error {
	return p.store.RecordSent(ctx, GroupRecipient, kind, WeekToken(now), calendar.DateOnly(now))
}

// IndividualDue returns the trophy kinds the seller has earned today
// that no congratulation has covered yet. Already-covered kinds are
// the union of every set recorded for the seller on the same day, so
// re-runs with a grown set only announce the new kinds, and re-runs
// with an identical or shrunken set announce nothing.
func (p *Policy) IndividualDue(ctx context.Context, seller string, day time.Time, kinds []scoring.TrophyKind) ([]scoring.TrophyKind, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	day = calendar.DateOnly(day)

	tokens, err := p.store.SentTokens(ctx, seller, KindIndividual, day)
	if err != nil {
		return nil, fmt.Errorf("sent sets for %s: %w", seller, err)
	}
	covered := make(map[scoring.TrophyKind]bool)
	for _, token := range tokens {
		for _, k := range parseKindsToken(token) {
			covered[k] = true
		}
	}

	due := make([]scoring.TrophyKind, 0, len(kinds))
	for _, k := range scoring.SortKinds(kinds) {
		if !covered[k] {
			due = append(due, k)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	return due, nil
}

// RecordIndividual marks a trophy set as congratulated for the day.
func (p *Policy) RecordIndividual(ctx context.Context, seller string, day time.Time, kinds []scoring.TrophyKind) error {
	if len(kinds) == 0 {
		return nil
	}
	return p.store.RecordSent(ctx, seller, KindIndividual, KindsToken(kinds), calendar.DateOnly(day))
}
