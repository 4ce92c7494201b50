package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"bfoproxy/internal/domain/disclosure"
	"bfoproxy/internal/domain/report"
	"bfoproxy/internal/infrastructure/http/v1/dto"
)

// ReportService answers report queries.
type ReportService interface {
	GetReport(ctx context.Context, q disclosure.Query) (*disclosure.Response, error)
}

// ReportHandler handles HTTP requests for financial reports.
type ReportHandler struct {
	*BaseHandler
	service ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(base *BaseHandler, service ReportService) *ReportHandler {
	return &ReportHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Get handles GET /api/v1/report?inn=...&term=2022,2023
func (h *ReportHandler) Get(c *gin.Context) {
	var req dto.ReportRequest
	if !h.BindQuery(c, &req) {
		return
	}

	// An absent term selects the latest stored year; a present one must list years.
	var years []int
	if _, ok := c.GetQuery("term"); ok {
		var err error
		if years, err = report.ParseTerm(req.Term); err != nil {
			h.Error(c, err)
			return
		}
	}

	resp, err := h.service.GetReport(c.Request.Context(), disclosure.Query{
		TaxID: req.TaxID,
		Years: years,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDisclosure(resp))
}
