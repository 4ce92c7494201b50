// Package history records answered report requests.
package history

import (
	"encoding/json"
	"time"
)

// RequestInfo is the filtered request scope kept with an entry.
type RequestInfo struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id"`
}

// Entry is one recorded request.
type Entry struct {
	ID         int64               `db:"id"`
	TaxID      string              `db:"inn"`
	Request    RequestInfo         `db:"request"`
	Params     map[string][]string `db:"params"`
	StatusCode int                 `db:"status_code"`
	Response   json.RawMessage     `db:"-"`
	StartedAt  time.Time           `db:"started_at"`
	FinishedAt time.Time           `db:"finished_at"`
}

// Duration returns how long the request took.
func (e *Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}
