package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"bfoproxy/internal/domain/history"
	"bfoproxy/internal/domain/organization"
	"bfoproxy/internal/infrastructure/http/v1/dto"
)

// HistoryService lists recorded requests.
type HistoryService interface {
	List(ctx context.Context, taxID string, limit int) ([]*history.Entry, error)
}

// HistoryHandler exposes recorded report requests.
type HistoryHandler struct {
	*BaseHandler
	service HistoryService
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(base *BaseHandler, service HistoryService) *HistoryHandler {
	return &HistoryHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /api/v1/history?inn=...&limit=20
func (h *HistoryHandler) List(c *gin.Context) {
	taxID := c.Query("inn")
	if err := organization.ValidateTaxID(taxID); err != nil {
		h.Error(c, err)
		return
	}

	entries, err := h.service.List(c.Request.Context(), taxID, h.ParseIntQuery(c, "limit", history.DefaultListLimit))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromHistory(taxID, entries))
}
