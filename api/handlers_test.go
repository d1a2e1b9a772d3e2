/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Daily ingestion endpoint (report shape, award wiring)
- Ranking and summary endpoints
- Notification dispatch endpoints (dedup across calls)
- Holiday CSV import
*/
package api

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vantage/scoring-engine/calendar"
	"github.com/vantage/scoring-engine/notify"
	"github.com/vantage/scoring-engine/period"
	"github.com/vantage/scoring-engine/ranking"
	"github.com/vantage/scoring-engine/scoring"
	"github.com/vantage/scoring-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestHandler(t *testing.T) (*Handler, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cal := calendar.New(store)
	periods := period.NewCalculator(cal, period.DefaultCycle())
	engine := scoring.NewEngine(store, periods, scoring.DefaultRules())
	boards := ranking.NewAggregator(store, periods, time.Time{}, nil)
	policy := notify.NewPolicy(store, notify.DefaultWindows())
	catalog := notify.NewCatalog(store, 2, rand.NewSource(1))

	return NewHandler(store, engine, boards, policy, catalog, periods), store
}

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	handler, store := newTestHandler(t)
	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)
	return server, store
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// =============================================================================
// INGESTION AND EVALUATION
// =============================================================================

func TestIngestDaily_Endpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/ingest/daily", `{
		"date": "2025-01-06",
		"rows": [
			{"name": "Ana", "store_code": "S01", "goal": "1000", "actual": "1500"},
			{"name": "Bruno", "store_code": "S01", "goal": "1000", "actual": "800"}
		]
	}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var report BatchReportDTO
	decode(t, resp, &report)
	if report.Processed != 2 {
		t.Errorf("processed = %d, want 2", report.Processed)
	}
	if len(report.Awards) != 1 || report.Awards[0].Kind != "BRONZE" {
		t.Errorf("awards = %+v, want one BRONZE", report.Awards)
	}
}

func TestIngestDaily_RejectsBadPayloads(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad-json", `{`},
		{"bad-date", `{"date": "Jan 6", "rows": [{"name": "Ana"}]}`},
		{"no-rows", `{"date": "2025-01-06", "rows": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, server.URL+"/api/ingest/daily", tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestEvaluateMonthly_OffCycleIsNoOp(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/evaluate/monthly", `{"date": "2025-01-10"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var report BatchReportDTO
	decode(t, resp, &report)
	if !report.NoOp {
		t.Error("off-cycle monthly evaluation should report no_op")
	}
}

// =============================================================================
// BOARDS
// =============================================================================

func TestRankingPoints_Endpoint(t *testing.T) {
	server, _ := newTestServer(t)

	postJSON(t, server.URL+"/api/ingest/daily", `{
		"date": "2025-01-06",
		"rows": [{"name": "Ana", "store_code": "S01", "goal": "1000", "actual": "1500"}]
	}`).Body.Close()

	resp, err := http.Get(server.URL + "/api/rankings/points?as_of=2025-01-10")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var board []ranking.PointsEntry
	decode(t, resp, &board)
	if len(board) != 1 || board[0].Seller != "Ana" || board[0].Points != 1 {
		t.Errorf("board = %+v, want Ana with 1 point", board)
	}
}

func TestSellerState_UnknownIs404(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/sellers/Nobody/state?date=2025-01-06")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestDispatchDaily_SecondCallSendsNothing(t *testing.T) {
	server, store := newTestServer(t)
	ctx := context.Background()

	if err := store.AddTemplate(ctx, notify.Template{
		ID: "d1", Category: notify.CategoryDaily, Body: "Good morning, team!",
	}); err != nil {
		t.Fatalf("Failed to add template: %v", err)
	}

	body := `{"at": "2025-01-29T10:30:00Z"}`

	var first DispatchResponse
	decode(t, postJSON(t, server.URL+"/api/notifications/daily", body), &first)
	if first.Sent != 1 {
		t.Fatalf("first dispatch sent = %d, want 1", first.Sent)
	}

	var second DispatchResponse
	decode(t, postJSON(t, server.URL+"/api/notifications/daily", body), &second)
	if second.Sent != 0 {
		t.Errorf("second dispatch sent = %d, want 0", second.Sent)
	}
}

func TestDispatchIndividual_NoTemplatesErrors(t *testing.T) {
	server, _ := newTestServer(t)

	postJSON(t, server.URL+"/api/ingest/daily", `{
		"date": "2025-01-06",
		"rows": [{"name": "Ana", "store_code": "S01", "goal": "1000", "actual": "1500"}]
	}`).Body.Close()

	resp := postJSON(t, server.URL+"/api/notifications/individual?date=2025-01-06", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("dispatch without templates: status = %d, want 500", resp.StatusCode)
	}
}

func TestDispatchIndividual_Dedup(t *testing.T) {
	server, store := newTestServer(t)
	ctx := context.Background()

	if err := store.AddTemplate(ctx, notify.Template{
		ID: "a1", Category: notify.CategoryAchievement, Body: "Congrats {seller}: {trophies}",
	}); err != nil {
		t.Fatalf("Failed to add template: %v", err)
	}

	postJSON(t, server.URL+"/api/ingest/daily", `{
		"date": "2025-01-06",
		"rows": [{"name": "Ana", "store_code": "S01", "goal": "1000", "actual": "1500"}]
	}`).Body.Close()

	var first DispatchResponse
	decode(t, postJSON(t, server.URL+"/api/notifications/individual?date=2025-01-06", `{}`), &first)
	if first.Sent != 1 {
		t.Fatalf("first dispatch sent = %d, want 1", first.Sent)
	}
	if !strings.Contains(first.Messages[0].Body, "Bronze") {
		t.Errorf("message body = %q, want Bronze mention", first.Messages[0].Body)
	}

	var second DispatchResponse
	decode(t, postJSON(t, server.URL+"/api/notifications/individual?date=2025-01-06", `{}`), &second)
	if second.Sent != 0 {
		t.Errorf("second dispatch sent = %d, want 0", second.Sent)
	}
}

func TestDispatchIndividual_PointsCoverOnlyNewTrophies(t *testing.T) {
	// Ana earns a BRONZE (1 pt) on Friday morning and a SILVER (3 pts)
	// with the Friday evaluation. The afternoon message announces only
	// the SILVER, so it must say +3 pts, not the day total of 4.

	server, store := newTestServer(t)
	ctx := context.Background()

	if err := store.AddTemplate(ctx, notify.Template{
		ID: "a1", Category: notify.CategoryAchievement, Body: "Congrats {seller}: {trophies} (+{points} pts)",
	}); err != nil {
		t.Fatalf("Failed to add template: %v", err)
	}

	postJSON(t, server.URL+"/api/ingest/daily", `{
		"date": "2025-01-10",
		"rows": [{"name": "Ana", "store_code": "S01", "goal": "1000", "actual": "6000"}]
	}`).Body.Close()

	var first DispatchResponse
	decode(t, postJSON(t, server.URL+"/api/notifications/individual?date=2025-01-10", `{}`), &first)
	if first.Sent != 1 || !strings.Contains(first.Messages[0].Body, "(+1 pts)") {
		t.Fatalf("first dispatch = %+v, want one message with (+1 pts)", first)
	}

	// The weekly sum (6000) beats the pinned total (5500): SILVER.
	postJSON(t, server.URL+"/api/evaluate/weekly", `{"date": "2025-01-10"}`).Body.Close()

	var second DispatchResponse
	decode(t, postJSON(t, server.URL+"/api/notifications/individual?date=2025-01-10", `{}`), &second)
	if second.Sent != 1 {
		t.Fatalf("second dispatch sent = %d, want 1", second.Sent)
	}
	if body := second.Messages[0].Body; !strings.Contains(body, "Silver") || !strings.Contains(body, "(+3 pts)") {
		t.Errorf("message body = %q, want the new Silver with (+3 pts)", body)
	}
}

// =============================================================================
// SCHEDULER
// =============================================================================

func TestSchedulerTick_NeverConsumesDispatchTokens(t *testing.T) {
	// Dispatch belongs to the endpoints the delivery collaborator
	// polls. A tick that recorded sends on its own would burn the dedup
	// tokens with nobody receiving the messages, so after a tick every
	// token for today must still be unspent.

	handler, store := newTestHandler(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.AddTemplate(ctx, notify.Template{
		ID: "d1", Category: notify.CategoryDaily, Body: "Good morning, team!",
	}); err != nil {
		t.Fatalf("Failed to add template: %v", err)
	}
	if _, err := handler.Engine.IngestDaily(ctx, now, []scoring.Row{
		{Name: "Ana", StoreCode: "S01", Role: scoring.RoleSeller,
			Goal: decimal.NewFromInt(1000), Actual: decimal.NewFromInt(2000)},
	}); err != nil {
		t.Fatalf("Failed to ingest: %v", err)
	}

	scheduler := NewEvaluationScheduler(handler)
	scheduler.RunNow()

	for _, shift := range []notify.Shift{notify.ShiftMorning, notify.ShiftAfternoon} {
		sent, err := store.WasSent(ctx, notify.GroupRecipient, notify.KindDaily, notify.DailyToken(now, shift))
		if err != nil {
			t.Fatalf("WasSent failed: %v", err)
		}
		if sent {
			t.Errorf("tick consumed the daily %s token", shift)
		}
	}
	for _, kind := range []notify.BroadcastKind{notify.KindPoints, notify.KindMonthly, notify.KindWeekly} {
		sent, err := store.WasSent(ctx, notify.GroupRecipient, kind, notify.WeekToken(now))
		if err != nil {
			t.Fatalf("WasSent failed: %v", err)
		}
		if sent {
			t.Errorf("tick consumed the %s broadcast token", kind)
		}
	}
	tokens, err := store.SentTokens(ctx, "Ana", notify.KindIndividual, now)
	if err != nil {
		t.Fatalf("SentTokens failed: %v", err)
	}
	if len(tokens) != 0 {
		t.Errorf("tick recorded individual sends: %v", tokens)
	}
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestImportHolidays_CSV(t *testing.T) {
	server, store := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/holidays/import", "text/csv",
		strings.NewReader("scope,date,name\nALL,2025-03-04,Carnival\nS01,2025-03-10,Anniversary\n"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	var out map[string]int
	decode(t, resp, &out)
	if out["imported"] != 2 {
		t.Errorf("imported = %d, want 2", out["imported"])
	}

	if !store.IsHoliday(time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC), "S02") {
		t.Error("national holiday should match every store")
	}
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
