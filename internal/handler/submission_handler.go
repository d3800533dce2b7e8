package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-grading/internal/dto"
	"github.com/noah-isme/sma-adp-grading/internal/models"
	appErrors "github.com/noah-isme/sma-adp-grading/pkg/errors"
	"github.com/noah-isme/sma-adp-grading/pkg/response"
)

type submissionGrader interface {
	GradeSubmission(ctx context.Context, submissionID string, req dto.GradeSubmissionRequest) (*models.Submission, error)
}

// SubmissionHandler exposes submission grading.
type SubmissionHandler struct {
	grader submissionGrader
}

// NewSubmissionHandler constructs handler.
func NewSubmissionHandler(grader submissionGrader) *SubmissionHandler {
	return &SubmissionHandler{grader: grader}
}

// Grade godoc
// @Summary Grade a submission and schedule a recompute
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.GradeSubmissionRequest true "Marks or rubric scores"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id}/grade [post]
func (h *SubmissionHandler) Grade(c *gin.Context) {
	var req dto.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.grader.GradeSubmission(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, submission)
}
