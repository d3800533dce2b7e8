package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-grading/internal/dto"
	"github.com/noah-isme/sma-adp-grading/internal/models"
	"github.com/noah-isme/sma-adp-grading/internal/service"
	appErrors "github.com/noah-isme/sma-adp-grading/pkg/errors"
	"github.com/noah-isme/sma-adp-grading/pkg/response"
)

type reportCardService interface {
	Get(ctx context.Context, gradeBookID, studentID, termID string) (*models.ReportCard, error)
	Export(ctx context.Context, gradeBookID, studentID, termID, format string) (*service.ReportFile, error)
}

// ReportHandler exposes report card endpoints.
type ReportHandler struct {
	reports reportCardService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportCardService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// ReportCard godoc
// @Summary Student report card for a term
// @Tags Reports
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Grade book ID"
// @Param studentId path string true "Student ID"
// @Param termId query string true "Term ID"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /gradebooks/{id}/students/{studentId}/report-card [get]
func (h *ReportHandler) ReportCard(c *gin.Context) {
	var query dto.ReportCardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if query.TermID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId required"))
		return
	}

	ctx := c.Request.Context()
	gradeBookID, studentID := c.Param("id"), c.Param("studentId")
	if query.Format == "" || query.Format == service.ReportFormatJSON {
		card, err := h.reports.Get(ctx, gradeBookID, studentID, query.TermID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, card)
		return
	}

	file, err := h.reports.Export(ctx, gradeBookID, studentID, query.TermID, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}
