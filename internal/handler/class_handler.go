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

type gradeBookLifecycle interface {
	CreateClassWithInheritance(ctx context.Context, req dto.CreateClassRequest) (*dto.ClassInitializationResponse, error)
	InitializeGradeBook(ctx context.Context, classID string) (*models.GradeBook, error)
}

// ClassHandler exposes class creation and grade book initialization.
type ClassHandler struct {
	lifecycle gradeBookLifecycle
}

// NewClassHandler constructs handler.
func NewClassHandler(lifecycle gradeBookLifecycle) *ClassHandler {
	return &ClassHandler{lifecycle: lifecycle}
}

// Create godoc
// @Summary Create a class inheriting its class group settings
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body dto.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req dto.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	out, err := h.lifecycle.CreateClassWithInheritance(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, out)
}

// InitializeGradeBook godoc
// @Summary Create the grade book of an existing class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{id}/gradebook [post]
func (h *ClassHandler) InitializeGradeBook(c *gin.Context) {
	book, err := h.lifecycle.InitializeGradeBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, book)
}
