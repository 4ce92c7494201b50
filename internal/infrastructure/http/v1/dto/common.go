// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ErrorResponse documents the error body rendered by middleware.ErrorHandler.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
