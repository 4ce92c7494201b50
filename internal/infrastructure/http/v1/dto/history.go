package dto

import (
	"encoding/json"
	"time"

	"bfoproxy/internal/domain/history"
)

// HistoryRequest is the query of GET /api/v1/history.
type HistoryRequest struct {
	TaxID string `form:"inn"`
	Limit int    `form:"limit"`
}

// HistoryListResponse wraps recorded requests of one tax id.
type HistoryListResponse struct {
	TaxID string            `json:"inn"`
	Items []HistoryResponse `json:"items"`
}

// HistoryResponse is one recorded request.
type HistoryResponse struct {
	ID         int64               `json:"id"`
	Request    history.RequestInfo `json:"request"`
	Params     map[string][]string `json:"params"`
	StatusCode int                 `json:"status_code"`
	Response   json.RawMessage     `json:"response"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	DurationMS int64               `json:"duration_ms"`
}

// FromHistory converts history entries to response DTOs.
func FromHistory(taxID string, entries []*history.Entry) *HistoryListResponse {
	resp := &HistoryListResponse{
		TaxID: taxID,
		Items: make([]HistoryResponse, len(entries)),
	}
	for i, e := range entries {
		resp.Items[i] = HistoryResponse{
			ID:         e.ID,
			Request:    e.Request,
			Params:     e.Params,
			StatusCode: e.StatusCode,
			Response:   rawOrNull(e.Response),
			StartedAt:  e.StartedAt,
			FinishedAt: e.FinishedAt,
			DurationMS: e.Duration().Milliseconds(),
		}
	}
	return resp
}
