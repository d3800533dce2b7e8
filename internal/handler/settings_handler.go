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

type settingsService interface {
	ResolveAssessmentSystem(ctx context.Context, classGroupID string) (*models.AssessmentSystem, error)
	ResolveTermStructure(ctx context.Context, classGroupID string) (*models.TermStructure, error)
	SaveTermOverride(ctx context.Context, classGroupID string, req dto.TermSettingsRequest) (*models.TermStructure, error)
}

// SettingsHandler exposes the effective settings of class groups.
type SettingsHandler struct {
	settings settingsService
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(settings settingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// AssessmentSystem godoc
// @Summary Effective assessment system of a class group
// @Tags Settings
// @Produce json
// @Param id path string true "Class group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /class-groups/{id}/assessment-system [get]
func (h *SettingsHandler) AssessmentSystem(c *gin.Context) {
	system, err := h.settings.ResolveAssessmentSystem(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, system)
}

// TermStructure godoc
// @Summary Effective term structure of a class group
// @Tags Settings
// @Produce json
// @Param id path string true "Class group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /class-groups/{id}/term-structure [get]
func (h *SettingsHandler) TermStructure(c *gin.Context) {
	structure, err := h.settings.ResolveTermStructure(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure)
}

// SaveTermSettings godoc
// @Summary Customize the term structure of a class group
// @Tags Settings
// @Accept json
// @Produce json
// @Param id path string true "Class group ID"
// @Param payload body dto.TermSettingsRequest true "Term overrides"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /class-groups/{id}/term-settings [put]
func (h *SettingsHandler) SaveTermSettings(c *gin.Context) {
	var req dto.TermSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	structure, err := h.settings.SaveTermOverride(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure)
}
