/*
Package sqlite provides the SQLite-backed implementation of every
storage interface in the engine.

PURPOSE:
  One Store serves all consumers. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  scoring.Store:        sellers, daily results, trophies, weekly goals/results
  ranking.Store:        the read surface for the leaderboards
  notify.Store:         the idempotent send log
  notify.TemplateStore: message catalog and usage log
  calendar.HolidaySource: holiday lookups for working-day weights

IDEMPOTENCE ENFORCEMENT:
  The batch engine re-runs whole days after a crash, so uniqueness
  lives in the schema, not in application checks:
  - trophies:      UNIQUE(seller, date, kind), upsert overwrites
  - daily_results: UNIQUE(seller, date), upsert overwrites
  - weekly_goals:  UNIQUE(seller, week_id), INSERT OR IGNORE (pin once)
  - notifications: UNIQUE(recipient, kind, token), INSERT OR IGNORE

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/scoring.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - scoring/engine.go: the write side
  - ranking/aggregate.go: the read side
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/vantage/scoring-engine/calendar"
	"github.com/vantage/scoring-engine/notify"
	"github.com/vantage/scoring-engine/scoring"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection to ":memory:" is its own database;
		// the pool must never open a second one.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Sellers (the name is the natural key coming from daily ingestion)
	CREATE TABLE IF NOT EXISTS sellers (
		name TEXT PRIMARY KEY,
		store_code TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'SELLER',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Daily results: one row per seller per day, overwritten on re-ingest
	CREATE TABLE IF NOT EXISTS daily_results (
		id TEXT PRIMARY KEY,
		seller TEXT NOT NULL,
		date TEXT NOT NULL,
		goal TEXT NOT NULL,
		actual TEXT NOT NULL,
		attainment TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(seller, date)
	);

	CREATE INDEX IF NOT EXISTS idx_daily_results_seller_date
		ON daily_results(seller, date);

	-- CRITICAL: one trophy per seller per day per kind. Re-running a
	-- batch overwrites points/reason but can never duplicate an award.
	CREATE TABLE IF NOT EXISTS trophies (
		id TEXT PRIMARY KEY,
		seller TEXT NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		points INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(seller, date, kind)
	);

	CREATE INDEX IF NOT EXISTS idx_trophies_seller_date
		ON trophies(seller, date);

	-- Weekly goals are pinned: insert-if-absent, never updated
	CREATE TABLE IF NOT EXISTS weekly_goals (
		id TEXT PRIMARY KEY,
		seller TEXT NOT NULL,
		week_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(seller, week_id)
	);

	-- Weekly snapshots, refreshed daily until the Saturday close
	CREATE TABLE IF NOT EXISTS weekly_results (
		id TEXT PRIMARY KEY,
		seller TEXT NOT NULL,
		week_id TEXT NOT NULL,
		sales TEXT NOT NULL,
		goal TEXT NOT NULL,
		attainment TEXT NOT NULL,
		closing_date TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(seller, week_id)
	);

	-- Send log: a row exists exactly when a message went out
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		recipient TEXT NOT NULL,
		kind TEXT NOT NULL,
		token TEXT NOT NULL,
		day TEXT NOT NULL,
		sent_at TEXT NOT NULL,
		UNIQUE(recipient, kind, token)
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_recipient_day
		ON notifications(recipient, kind, day);

	-- Holidays (scope '' / 'ALL' means national)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL DEFAULT 'ALL',
		date TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(scope, date)
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_date ON holidays(date);

	-- Message rotation catalog and its usage log
	CREATE TABLE IF NOT EXISTS message_templates (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		body TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_templates_category
		ON message_templates(category);

	CREATE TABLE IF NOT EXISTS template_log (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		used_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_template_log_used_at
		ON template_log(template_id, used_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SELLERS
// =============================================================================

// UpsertSeller inserts or refreshes a seller keyed by name.
func (s *Store) UpsertSeller(ctx context.Context, seller scoring.Seller) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sellers (name, store_code, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			store_code = excluded.store_code,
			role = excluded.role,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		seller.Name, seller.StoreCode, string(seller.Role), boolToInt(seller.Active), now, now,
	)
	return err
}

// EligibleSellers returns active sellers, managers excluded. Every
// board and evaluation inherits this filter.
func (s *Store) EligibleSellers(ctx context.Context) ([]scoring.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT name, store_code, role, active
		FROM sellers
		WHERE active = 1 AND role != ?
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query, string(scoring.RoleManager))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sellers []scoring.Seller
	for rows.Next() {
		var seller scoring.Seller
		var role string
		var active int
		if err := rows.Scan(&seller.Name, &seller.StoreCode, &role, &active); err != nil {
			return nil, err
		}
		seller.Role = scoring.Role(role)
		seller.Active = active != 0
		sellers = append(sellers, seller)
	}
	return sellers, rows.Err()
}

// GetSeller retrieves a seller by name, nil when absent.
func (s *Store) GetSeller(ctx context.Context, name string) (*scoring.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var seller scoring.Seller
	var role string
	var active int

	err := s.db.QueryRowContext(ctx,
		"SELECT name, store_code, role, active FROM sellers WHERE name = ?", name,
	).Scan(&seller.Name, &seller.StoreCode, &role, &active)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	seller.Role = scoring.Role(role)
	seller.Active = active != 0
	return &seller, nil
}

// =============================================================================
// DAILY RESULTS
// =============================================================================

// UpsertDailyResult overwrites the seller's row for the day.
func (s *Store) UpsertDailyResult(ctx context.Context, r scoring.DailyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO daily_results (id, seller, date, goal, actual, attainment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seller, date) DO UPDATE SET
			goal = excluded.goal,
			actual = excluded.actual,
			attainment = excluded.attainment
	`

	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), r.Seller, r.Date.Format(dateLayout),
		r.Goal.String(), r.Actual.String(), r.Attainment.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// SalesSummary sums actuals and takes the max daily goal over the
// seller's results in [from, to]. The aggregation runs in Go so the
// decimal values never pass through SQLite's float arithmetic.
func (s *Store) SalesSummary(ctx context.Context, seller string, from, to time.Time) (decimal.Decimal, decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT goal, actual FROM daily_results
		WHERE seller = ? AND date >= ? AND date <= ?
	`

	rows, err := s.db.QueryContext(ctx, query, seller,
		from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return decimal.Zero, decimal.Zero, false, err
	}
	defer rows.Close()

	sales := decimal.Zero
	maxGoal := decimal.Zero
	found := false
	for rows.Next() {
		var goalStr, actualStr string
		if err := rows.Scan(&goalStr, &actualStr); err != nil {
			return decimal.Zero, decimal.Zero, false, err
		}
		goal, err := decimal.NewFromString(goalStr)
		if err != nil {
			return decimal.Zero, decimal.Zero, false, fmt.Errorf("corrupt goal for %s: %w", seller, err)
		}
		actual, err := decimal.NewFromString(actualStr)
		if err != nil {
			return decimal.Zero, decimal.Zero, false, fmt.Errorf("corrupt actual for %s: %w", seller, err)
		}
		sales = sales.Add(actual)
		if goal.GreaterThan(maxGoal) {
			maxGoal = goal
		}
		found = true
	}
	return sales, maxGoal, found, rows.Err()
}

// DailyResultsOn returns every seller's stored result for the date.
// Replays rebuild trophies from these rows alone.
func (s *Store) DailyResultsOn(ctx context.Context, date time.Time) ([]scoring.DailyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT seller, date, goal, actual, attainment
		FROM daily_results
		WHERE date = ?
		ORDER BY seller ASC
	`

	rows, err := s.db.QueryContext(ctx, query, date.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []scoring.DailyResult
	for rows.Next() {
		var r scoring.DailyResult
		var dateStr, goalStr, actualStr, attainmentStr string
		if err := rows.Scan(&r.Seller, &dateStr, &goalStr, &actualStr, &attainmentStr); err != nil {
			return nil, err
		}
		r.Date, _ = time.Parse(dateLayout, dateStr)
		if r.Goal, err = decimal.NewFromString(goalStr); err != nil {
			return nil, fmt.Errorf("corrupt goal for %s: %w", r.Seller, err)
		}
		if r.Actual, err = decimal.NewFromString(actualStr); err != nil {
			return nil, fmt.Errorf("corrupt actual for %s: %w", r.Seller, err)
		}
		if r.Attainment, err = decimal.NewFromString(attainmentStr); err != nil {
			return nil, fmt.Errorf("corrupt attainment for %s: %w", r.Seller, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// =============================================================================
// TROPHIES
// =============================================================================

// UpsertTrophy awards a trophy; replays overwrite rather than duplicate.
func (s *Store) UpsertTrophy(ctx context.Context, t scoring.Trophy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO trophies (id, seller, date, kind, points, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seller, date, kind) DO UPDATE SET
			points = excluded.points,
			reason = excluded.reason
	`

	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), t.Seller, t.Date.Format(dateLayout),
		string(t.Kind), t.Points, t.Reason,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// TrophiesBetween returns the seller's trophies in [from, to], oldest first.
func (s *Store) TrophiesBetween(ctx context.Context, seller string, from, to time.Time) ([]scoring.Trophy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT seller, date, kind, points, reason
		FROM trophies
		WHERE seller = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, kind ASC
	`

	rows, err := s.db.QueryContext(ctx, query, seller,
		from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trophies []scoring.Trophy
	for rows.Next() {
		var t scoring.Trophy
		var dateStr, kind string
		if err := rows.Scan(&t.Seller, &dateStr, &kind, &t.Points, &t.Reason); err != nil {
			return nil, err
		}
		t.Date, _ = time.Parse(dateLayout, dateStr)
		t.Kind = scoring.TrophyKind(kind)
		trophies = append(trophies, t)
	}
	return trophies, rows.Err()
}

// DeleteTrophies clears every trophy awarded in [from, to]. Only a
// replay does this; the awards come back from the stored results.
func (s *Store) DeleteTrophies(ctx context.Context, from, to time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM trophies WHERE date >= ? AND date <= ?`,
		from.Format(dateLayout), to.Format(dateLayout))
	return err
}

// =============================================================================
// WEEKLY GOALS AND RESULTS
// =============================================================================

// PinWeeklyGoal inserts the goal only when the (seller, week) pair has
// none yet. Later daily-goal revisions never move a pinned total.
func (s *Store) PinWeeklyGoal(ctx context.Context, g scoring.WeeklyGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT OR IGNORE INTO weekly_goals (id, seller, week_id, start_date, end_date, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), g.Seller, g.WeekID,
		g.Start.Format(dateLayout), g.End.Format(dateLayout),
		g.Total.String(), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// WeeklyGoal returns the pinned goal for the week, nil when absent.
func (s *Store) WeeklyGoal(ctx context.Context, seller, weekID string) (*scoring.WeeklyGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var g scoring.WeeklyGoal
	var startStr, endStr, totalStr string

	err := s.db.QueryRowContext(ctx,
		"SELECT seller, week_id, start_date, end_date, total FROM weekly_goals WHERE seller = ? AND week_id = ?",
		seller, weekID,
	).Scan(&g.Seller, &g.WeekID, &startStr, &endStr, &totalStr)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	g.Start, _ = time.Parse(dateLayout, startStr)
	g.End, _ = time.Parse(dateLayout, endStr)
	g.Total, err = decimal.NewFromString(totalStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt weekly goal for %s: %w", seller, err)
	}
	return &g, nil
}

// UpsertWeeklyResult overwrites the week's snapshot.
func (s *Store) UpsertWeeklyResult(ctx context.Context, r scoring.WeeklyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO weekly_results (id, seller, week_id, sales, goal, attainment, closing_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seller, week_id) DO UPDATE SET
			sales = excluded.sales,
			goal = excluded.goal,
			attainment = excluded.attainment,
			closing_date = excluded.closing_date,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), r.Seller, r.WeekID,
		r.Sales.String(), r.Goal.String(), r.Attainment.String(),
		r.ClosingDate.Format(dateLayout),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// WeeklyResult returns the week's snapshot, nil when absent.
func (s *Store) WeeklyResult(ctx context.Context, seller, weekID string) (*scoring.WeeklyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r scoring.WeeklyResult
	var salesStr, goalStr, attainmentStr, closingStr string

	err := s.db.QueryRowContext(ctx,
		"SELECT seller, week_id, sales, goal, attainment, closing_date FROM weekly_results WHERE seller = ? AND week_id = ?",
		seller, weekID,
	).Scan(&r.Seller, &r.WeekID, &salesStr, &goalStr, &attainmentStr, &closingStr)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if r.Sales, err = decimal.NewFromString(salesStr); err != nil {
		return nil, fmt.Errorf("corrupt weekly sales for %s: %w", seller, err)
	}
	if r.Goal, err = decimal.NewFromString(goalStr); err != nil {
		return nil, fmt.Errorf("corrupt weekly goal for %s: %w", seller, err)
	}
	if r.Attainment, err = decimal.NewFromString(attainmentStr); err != nil {
		return nil, fmt.Errorf("corrupt weekly attainment for %s: %w", seller, err)
	}
	r.ClosingDate, _ = time.Parse(dateLayout, closingStr)
	return &r, nil
}

// =============================================================================
// SEND LOG (notify.Store interface)
// =============================================================================

// WasSent reports whether a token was already recorded.
func (s *Store) WasSent(ctx context.Context, recipient string, kind notify.BroadcastKind, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE recipient = ? AND kind = ? AND token = ?",
		recipient, string(kind), token,
	).Scan(&count)
	return count > 0, err
}

// RecordSent logs a delivery. A replayed token is ignored, keeping the
// call idempotent.
func (s *Store) RecordSent(ctx context.Context, recipient string, kind notify.BroadcastKind, token string, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT OR IGNORE INTO notifications (id, recipient, kind, token, day, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), recipient, string(kind), token,
		day.Format(dateLayout), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// SentTokens lists the tokens recorded for the recipient and kind on a day.
func (s *Store) SentTokens(ctx context.Context, recipient string, kind notify.BroadcastKind, day time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT token FROM notifications
		WHERE recipient = ? AND kind = ? AND day = ?
		ORDER BY sent_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, recipient, string(kind), day.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// =============================================================================
// HOLIDAY CALENDAR (calendar.HolidaySource interface)
// =============================================================================

// SaveHoliday inserts or refreshes a holiday.
func (s *Store) SaveHoliday(ctx context.Context, h calendar.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	scope := h.Scope
	if scope == "" {
		scope = calendar.ScopeAll
	}

	query := `
		INSERT INTO holidays (id, scope, date, name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scope, date) DO UPDATE SET
			name = excluded.name
	`

	_, err := s.db.ExecContext(ctx, query,
		h.ID, scope, h.Date.Format(dateLayout), h.Name,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// IsHoliday reports whether the date is a holiday for the store scope.
// National rows (scope ALL) match every store.
func (s *Store) IsHoliday(date time.Time, storeScope string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM holidays WHERE date = ? AND (scope = ? OR scope = ?)",
		date.Format(dateLayout), calendar.ScopeAll, storeScope,
	).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// ListHolidays returns every stored holiday, oldest first.
func (s *Store) ListHolidays(ctx context.Context) ([]calendar.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, scope, date, name FROM holidays ORDER BY date ASC, scope ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []calendar.Holiday
	for rows.Next() {
		var h calendar.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &h.Scope, &dateStr, &h.Name); err != nil {
			return nil, err
		}
		h.Date, _ = time.Parse(dateLayout, dateStr)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// MESSAGE TEMPLATES (notify.TemplateStore interface)
// =============================================================================

// AddTemplate inserts or refreshes a catalog entry.
func (s *Store) AddTemplate(ctx context.Context, t notify.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	query := `
		INSERT INTO message_templates (id, category, body)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			body = excluded.body
	`

	_, err := s.db.ExecContext(ctx, query, t.ID, t.Category, t.Body)
	return err
}

// Templates returns the catalog for a category.
func (s *Store) Templates(ctx context.Context, category string) ([]notify.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, category, body FROM message_templates WHERE category = ? ORDER BY id",
		category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []notify.Template
	for rows.Next() {
		var t notify.Template
		if err := rows.Scan(&t.ID, &t.Category, &t.Body); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// RecentTemplateIDs returns the n most recently used template ids in
// the category, newest first.
func (s *Store) RecentTemplateIDs(ctx context.Context, category string, n int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil, nil
	}

	query := `
		SELECT l.template_id
		FROM template_log l
		JOIN message_templates t ON t.id = l.template_id
		WHERE t.category = ?
		ORDER BY l.used_at DESC, l.id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, category, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordTemplateUse appends to the usage log.
func (s *Store) RecordTemplateUse(ctx context.Context, templateID string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO template_log (id, template_id, used_at) VALUES (?, ?, ?)",
		uuid.NewString(), templateID, usedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"daily_results", "trophies", "weekly_goals", "weekly_results",
		"notifications", "holidays", "template_log", "message_templates", "sellers",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
