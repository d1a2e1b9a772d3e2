/*
handlers.go - HTTP API handlers for the scoring engine

PURPOSE:
  Exposes the scoring engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Batches:
    POST   /api/ingest/daily            Ingest one day's results
    POST   /api/evaluate/weekly         Run the weekly evaluation
    POST   /api/evaluate/monthly        Run the monthly evaluation

  Boards:
    GET    /api/rankings/points         Cumulative points board
    GET    /api/rankings/weekly         Weekly attainment board
    GET    /api/rankings/monthly        Monthly attainment board
    GET    /api/summary/daily           End-of-day trophy summary

  Sellers:
    GET    /api/sellers/{name}/state    Derived weekly status

  Notifications:
    POST   /api/notifications/daily     Dispatch the daily broadcast
    POST   /api/notifications/specials  Dispatch due weekly boards
    POST   /api/notifications/individual Dispatch congratulations

  Holidays:
    GET    /api/holidays                List holidays
    POST   /api/holidays                Add a holiday
    POST   /api/holidays/import         Import a CSV calendar

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, aggregator, policy)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vantage/scoring-engine/calendar"
	"github.com/vantage/scoring-engine/notify"
	"github.com/vantage/scoring-engine/period"
	"github.com/vantage/scoring-engine/ranking"
	"github.com/vantage/scoring-engine/scoring"
	"github.com/vantage/scoring-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Engine  *scoring.Engine
	Boards  *ranking.Aggregator
	Policy  *notify.Policy
	Catalog *notify.Catalog
	Periods *period.Calculator
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(store *sqlite.Store, engine *scoring.Engine, boards *ranking.Aggregator,
	policy *notify.Policy, catalog *notify.Catalog, periods *period.Calculator) *Handler {
	return &Handler{
		Store:   store,
		Engine:  engine,
		Boards:  boards,
		Policy:  policy,
		Catalog: catalog,
		Periods: periods,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// queryDate reads a "2006-01-02" query parameter, defaulting to today.
func queryDate(r *http.Request, key string) (time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return calendar.DateOnly(time.Now().UTC()), nil
	}
	return parseDate(s)
}

func dispatchAt(req DispatchRequest) (time.Time, error) {
	if req.At == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, req.At)
}

// =============================================================================
// BATCH ENDPOINTS
// =============================================================================

// IngestDaily runs the daily ingestion for the posted rows.
func (h *Handler) IngestDaily(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date: "+req.Date)
		return
	}
	if len(req.Rows) == 0 {
		respondError(w, http.StatusBadRequest, "no rows")
		return
	}

	rows := make([]scoring.Row, 0, len(req.Rows))
	for _, dto := range req.Rows {
		rows = append(rows, scoring.Row{
			Name:      dto.Name,
			StoreCode: dto.StoreCode,
			Role:      scoring.Role(strings.ToUpper(dto.Role)),
			Goal:      dto.Goal,
			Actual:    dto.Actual,
		})
	}

	report, err := h.Engine.IngestDaily(r.Context(), date, rows)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	observeReport(report)
	respondJSON(w, http.StatusOK, batchReportDTO(report))
}

// EvaluateWeekly runs the weekly evaluation for the posted date.
func (h *Handler) EvaluateWeekly(w http.ResponseWriter, r *http.Request) {
	h.evaluate(w, r, h.Engine.EvaluateWeekly)
}

// EvaluateMonthly runs the monthly evaluation for the posted date.
// Off-cycle dates come back as a no-op report, not an error.
func (h *Handler) EvaluateMonthly(w http.ResponseWriter, r *http.Request) {
	h.evaluate(w, r, h.Engine.EvaluateMonthly)
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request,
	run func(ctx context.Context, ref time.Time) (*scoring.BatchReport, error)) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date: "+req.Date)
		return
	}

	report, err := run(r.Context(), date)
	switch {
	case scoring.IsPolicyMisuse(err):
		// Guarded decline (off-cycle monthly run): the no-op report is
		// the answer, not an error.
		respondJSON(w, http.StatusOK, batchReportDTO(report))
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		observeReport(report)
		respondJSON(w, http.StatusOK, batchReportDTO(report))
	}
}

// =============================================================================
// BOARD ENDPOINTS
// =============================================================================

// RankingPoints serves the cumulative points board.
func (h *Handler) RankingPoints(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid as_of date")
		return
	}
	board, err := h.Boards.ByPoints(r.Context(), asOf)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, board)
}

// RankingWeekly serves the weekly attainment board.
func (h *Handler) RankingWeekly(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid as_of date")
		return
	}
	board, err := h.Boards.Weekly(r.Context(), asOf)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, board)
}

// RankingMonthly serves the monthly attainment board.
func (h *Handler) RankingMonthly(w http.ResponseWriter, r *http.Request) {
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid as_of date")
		return
	}
	board, err := h.Boards.Monthly(r.Context(), asOf)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, board)
}

// DailySummary serves the end-of-day trophy summary.
func (h *Handler) DailySummary(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date")
		return
	}
	summary, err := h.Boards.DailySummary(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// SellerState serves a seller's derived weekly status.
func (h *Handler) SellerState(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	date, err := queryDate(r, "date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date")
		return
	}

	seller, err := h.Store.GetSeller(r.Context(), name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if seller == nil {
		respondError(w, http.StatusNotFound, "unknown seller: "+name)
		return
	}

	state, err := h.Engine.StateFor(r.Context(), name, date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, SellerStateDTO{
		Seller: state.Seller,
		WeekID: state.WeekID,
		Status: state.Status.String(),
	})
}

// =============================================================================
// NOTIFICATION ENDPOINTS
// =============================================================================

// DispatchDaily sends the group daily broadcast if one is due at the
// request instant.
func (h *Handler) DispatchDaily(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	now, err := dispatchAt(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid at: "+req.At)
		return
	}

	ctx := r.Context()
	_, due, err := h.Policy.DailyDue(ctx, now)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !due {
		respondJSON(w, http.StatusOK, DispatchResponse{Messages: []MessageDTO{}})
		return
	}

	tpl, err := h.Catalog.Pick(ctx, notify.CategoryDaily)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	body := notify.Render(tpl, map[string]string{
		"date": now.Format("2006-01-02"),
	})
	if err := h.Policy.RecordDaily(ctx, now); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	messagesSent.WithLabelValues(string(notify.KindDaily)).Inc()
	respondJSON(w, http.StatusOK, DispatchResponse{
		Sent:     1,
		Messages: []MessageDTO{{Recipient: notify.GroupRecipient, Kind: string(notify.KindDaily), Body: body}},
	})
}

// DispatchSpecials sends whichever weekly boards are due at the
// request instant: points on Monday, monthly on Wednesday, weekly on
// Friday, afternoons only.
func (h *Handler) DispatchSpecials(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	now, err := dispatchAt(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid at: "+req.At)
		return
	}

	ctx := r.Context()
	resp := DispatchResponse{Messages: []MessageDTO{}}

	for _, kind := range []notify.BroadcastKind{notify.KindPoints, notify.KindMonthly, notify.KindWeekly} {
		due, err := h.Policy.BroadcastDue(ctx, now, kind)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !due {
			continue
		}

		body, err := h.boardMessage(r, kind, now)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := h.Policy.RecordBroadcast(ctx, now, kind); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		messagesSent.WithLabelValues(string(kind)).Inc()
		resp.Messages = append(resp.Messages, MessageDTO{
			Recipient: notify.GroupRecipient, Kind: string(kind), Body: body,
		})
		resp.Sent++
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) boardMessage(r *http.Request, kind notify.BroadcastKind, now time.Time) (string, error) {
	ctx := r.Context()
	var b strings.Builder

	switch kind {
	case notify.KindPoints:
		board, err := h.Boards.ByPoints(ctx, now)
		if err != nil {
			return "", err
		}
		b.WriteString("Points ranking:\n")
		for _, e := range board {
			fmt.Fprintf(&b, "%d. %s - %d pts (G%d S%d B%d)\n",
				e.Position, e.Seller, e.Points, e.Gold, e.Silver, e.Bronze)
		}
	case notify.KindMonthly:
		board, err := h.Boards.Monthly(ctx, now)
		if err != nil {
			return "", err
		}
		b.WriteString("Monthly ranking:\n")
		for _, e := range board {
			fmt.Fprintf(&b, "%d. %s - %s%% of %s\n",
				e.Position, e.Seller, e.Attainment.StringFixed(1), e.Goal.StringFixed(2))
		}
	case notify.KindWeekly:
		board, err := h.Boards.Weekly(ctx, now)
		if err != nil {
			return "", err
		}
		b.WriteString("Weekly ranking:\n")
		for _, e := range board {
			fmt.Fprintf(&b, "%d. %s - %s%% of %s\n",
				e.Position, e.Seller, e.Attainment.StringFixed(1), e.Goal.StringFixed(2))
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// DispatchIndividual sends congratulations for each seller whose
// trophy set for the day has grown since the last dispatch.
func (h *Handler) DispatchIndividual(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date")
		return
	}

	ctx := r.Context()
	sellers, err := h.Store.EligibleSellers(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := DispatchResponse{Messages: []MessageDTO{}}
	for _, seller := range sellers {
		trophies, err := h.Store.TrophiesBetween(ctx, seller.Name, date, date)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		kinds := make([]scoring.TrophyKind, 0, len(trophies))
		kindPoints := make(map[scoring.TrophyKind]int, len(trophies))
		for _, t := range trophies {
			kinds = append(kinds, t.Kind)
			kindPoints[t.Kind] = t.Points
		}

		due, err := h.Policy.IndividualDue(ctx, seller.Name, date, kinds)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if len(due) == 0 {
			continue
		}

		// The message announces only the new trophies, so the point
		// total covers only those.
		points := 0
		for _, k := range due {
			points += kindPoints[k]
		}

		body, err := h.Catalog.AchievementMessage(ctx, seller.Name, due, points)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := h.Policy.RecordIndividual(ctx, seller.Name, date, due); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		messagesSent.WithLabelValues(string(notify.KindIndividual)).Inc()
		resp.Messages = append(resp.Messages, MessageDTO{
			Recipient: seller.Name, Kind: string(notify.KindIndividual), Body: body,
		})
		resp.Sent++
	}

	respondJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns the stored holiday calendar.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, HolidayDTO{
			Scope: hol.Scope,
			Date:  hol.Date.Format("2006-01-02"),
			Name:  hol.Name,
		})
	}
	respondJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds one holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var dto HolidayDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	date, err := parseDate(dto.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date: "+dto.Date)
		return
	}

	holiday := calendar.Holiday{Scope: dto.Scope, Date: date, Name: dto.Name}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, dto)
}

// ImportHolidays ingests a CSV calendar (scope,date[,name] lines).
func (h *Handler) ImportHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := calendar.ParseCSV(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid CSV: "+err.Error())
		return
	}
	for _, holiday := range holidays {
		if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]int{"imported": len(holidays)})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
