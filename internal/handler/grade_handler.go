package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-adp-grading/internal/dto"
	"github.com/noah-isme/sma-adp-grading/internal/models"
	"github.com/noah-isme/sma-adp-grading/internal/service"
	appErrors "github.com/noah-isme/sma-adp-grading/pkg/errors"
	"github.com/noah-isme/sma-adp-grading/pkg/response"
)

type periodGradeService interface {
	CalculatePeriodGradeWithOptions(ctx context.Context, subjectID, periodID, studentID string, opts service.PeriodGradeOptions) (*models.PeriodGrade, error)
	DefaultOptions() service.PeriodGradeOptions
}

type termGradeService interface {
	CalculateSubjectTermGrade(ctx context.Context, subjectID, termID, studentID string) (*models.TermGrade, error)
}

type cumulativeGradeService interface {
	CalculateCumulativeGrade(ctx context.Context, gradeBookID, studentID, termID string) (*models.CumulativeGrade, error)
	CalculateCumulativeBatch(ctx context.Context, gradeBookID, termID string, studentIDs []string) (*service.BatchCumulativeResult, error)
	CalculateAnnualGrade(ctx context.Context, gradeBookID, studentID string) (*models.AnnualGrade, error)
}

// GradeHandler exposes grade computation endpoints.
type GradeHandler struct {
	periods    periodGradeService
	terms      termGradeService
	cumulative cumulativeGradeService
	validator  *validator.Validate
}

// NewGradeHandler constructs handler.
func NewGradeHandler(periods periodGradeService, terms termGradeService, cumulative cumulativeGradeService) *GradeHandler {
	return &GradeHandler{periods: periods, terms: terms, cumulative: cumulative, validator: validator.New()}
}

// PeriodGrade godoc
// @Summary Calculate a period grade
// @Tags Grades
// @Produce json
// @Param subjectId query string true "Subject ID"
// @Param periodId query string true "Assessment period ID"
// @Param studentId query string true "Student ID"
// @Param requireAll query bool false "Fail the period when a required assessment is ungraded"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades/period [get]
func (h *GradeHandler) PeriodGrade(c *gin.Context) {
	var query dto.PeriodGradeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "subjectId, periodId and studentId are required"))
		return
	}
	opts := h.periods.DefaultOptions()
	if query.RequireAllAssessments != nil {
		opts.RequireAllAssessments = *query.RequireAllAssessments
	}
	grade, err := h.periods.CalculatePeriodGradeWithOptions(c.Request.Context(), query.SubjectID, query.PeriodID, query.StudentID, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade)
}

// TermGrade godoc
// @Summary Calculate and store a subject term grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.TermGradeRequest true "Term grade scope"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades/term [post]
func (h *GradeHandler) TermGrade(c *gin.Context) {
	var req dto.TermGradeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	grade, err := h.terms.CalculateSubjectTermGrade(c.Request.Context(), req.SubjectID, req.TermID, req.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade)
}

// Cumulative godoc
// @Summary Calculate a student's cumulative grade for a term
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade book ID"
// @Param payload body dto.CumulativeGradeRequest true "Student and term"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /gradebooks/{id}/cumulative [post]
func (h *GradeHandler) Cumulative(c *gin.Context) {
	var req dto.CumulativeGradeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.cumulative.CalculateCumulativeGrade(c.Request.Context(), c.Param("id"), req.StudentID, req.TermID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// CumulativeBatch godoc
// @Summary Calculate cumulative grades for many students
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade book ID"
// @Param payload body dto.BatchCumulativeRequest true "Term and optional students"
// @Success 200 {object} response.Envelope
// @Router /gradebooks/{id}/cumulative/batch [post]
func (h *GradeHandler) CumulativeBatch(c *gin.Context) {
	var req dto.BatchCumulativeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.cumulative.CalculateCumulativeBatch(c.Request.Context(), c.Param("id"), req.TermID, req.StudentIDs)
	if err != nil && result == nil {
		response.Error(c, err)
		return
	}
	body := dto.BatchCumulativeResponse{Results: result.Results, Failed: result.Failed}
	meta := map[string]interface{}{"succeeded": len(result.Results), "failed": len(result.Failed)}
	if err != nil {
		meta["interrupted"] = true
	}
	response.JSON(c, http.StatusOK, body, meta)
}

// Annual godoc
// @Summary Term-weighted annual GPA of a student
// @Tags Grades
// @Produce json
// @Param id path string true "Grade book ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /gradebooks/{id}/students/{studentId}/annual [get]
func (h *GradeHandler) Annual(c *gin.Context) {
	result, err := h.cumulative.CalculateAnnualGrade(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func (h *GradeHandler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	if err := h.validator.Struct(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}
