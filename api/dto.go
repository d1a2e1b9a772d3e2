/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  All dates cross the wire as "2006-01-02" strings. Instants (the
  notification dispatch time) use RFC 3339.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/vantage/scoring-engine/scoring"
)

// =============================================================================
// INGESTION
// =============================================================================

// IngestRowDTO is one seller's line in a daily ingestion payload.
type IngestRowDTO struct {
	Name      string          `json:"name"`
	StoreCode string          `json:"store_code"`
	Role      string          `json:"role,omitempty"`
	Goal      decimal.Decimal `json:"goal"`
	Actual    decimal.Decimal `json:"actual"`
}

// IngestRequest is the daily ingestion payload.
type IngestRequest struct {
	Date string         `json:"date"`
	Rows []IngestRowDTO `json:"rows"`
}

// EvaluateRequest triggers a weekly or monthly evaluation.
type EvaluateRequest struct {
	Date string `json:"date"`
}

// TrophyDTO is an awarded trophy in API responses.
type TrophyDTO struct {
	Seller string `json:"seller"`
	Date   string `json:"date"`
	Kind   string `json:"kind"`
	Points int    `json:"points"`
	Reason string `json:"reason,omitempty"`
}

// SkipDTO names a seller a batch skipped and why.
type SkipDTO struct {
	Seller string `json:"seller"`
	Reason string `json:"reason"`
}

// BatchReportDTO summarizes one batch run.
type BatchReportDTO struct {
	Transition string      `json:"transition"`
	RunDate    string      `json:"run_date"`
	Processed  int         `json:"processed"`
	NoOp       bool        `json:"no_op,omitempty"`
	Awards     []TrophyDTO `json:"awards"`
	Skipped    []SkipDTO   `json:"skipped,omitempty"`
}

func batchReportDTO(r *scoring.BatchReport) BatchReportDTO {
	dto := BatchReportDTO{
		Transition: r.Transition,
		RunDate:    r.RunDate.Format("2006-01-02"),
		Processed:  r.Processed,
		NoOp:       r.NoOp,
		Awards:     make([]TrophyDTO, 0, len(r.Awards)),
	}
	for _, t := range r.Awards {
		dto.Awards = append(dto.Awards, TrophyDTO{
			Seller: t.Seller,
			Date:   t.Date.Format("2006-01-02"),
			Kind:   string(t.Kind),
			Points: t.Points,
			Reason: t.Reason,
		})
	}
	for _, s := range r.Skipped {
		dto.Skipped = append(dto.Skipped, SkipDTO{Seller: s.Seller, Reason: s.Reason})
	}
	return dto
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// DispatchRequest carries the dispatch instant. Empty means now.
type DispatchRequest struct {
	At string `json:"at,omitempty"`
}

// MessageDTO is one outbound message decided by a dispatch call.
type MessageDTO struct {
	Recipient string `json:"recipient"`
	Kind      string `json:"kind"`
	Body      string `json:"body"`
}

// DispatchResponse reports what a dispatch call sent.
type DispatchResponse struct {
	Sent     int          `json:"sent"`
	Messages []MessageDTO `json:"messages"`
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// HolidayDTO represents a holiday in API requests and responses.
type HolidayDTO struct {
	Scope string `json:"scope"`
	Date  string `json:"date"`
	Name  string `json:"name,omitempty"`
}

// SellerStateDTO is a seller's derived weekly state.
type SellerStateDTO struct {
	Seller string `json:"seller"`
	WeekID string `json:"week_id"`
	Status string `json:"status"`
}
