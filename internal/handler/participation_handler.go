package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ardn-app/ardn-api/internal/models"
	"github.com/ardn-app/ardn-api/internal/service"
	appErrors "github.com/ardn-app/ardn-api/pkg/errors"
	"github.com/ardn-app/ardn-api/pkg/response"
)

// ParticipationHandler exposes point ledger endpoints.
type ParticipationHandler struct {
	participations *service.ParticipationService
}

// NewParticipationHandler constructs ParticipationHandler.
func NewParticipationHandler(participations *service.ParticipationService) *ParticipationHandler {
	return &ParticipationHandler{participations: participations}
}

// List godoc
// @Summary List participation records
// @Tags Participations
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Filter by student"
// @Param activity_id query string false "Filter by activity"
// @Param program_id query string false "Filter by program"
// @Success 200 {object} response.Envelope
// @Router /participations [get]
func (h *ParticipationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.ParticipationFilter{
		StudentID:  c.Query("student_id"),
		ActivityID: c.Query("activity_id"),
		ProgramID:  c.Query("program_id"),
	}
	records, err := h.participations.List(c.Request.Context(), claims.OrganizationID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Record godoc
// @Summary Record a participation and credit the student's balance
// @Tags Participations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.RecordParticipationRequest true "Participation payload"
// @Success 201 {object} response.Envelope
// @Router /participations [post]
func (h *ParticipationHandler) Record(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RecordParticipationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.participations.Record(c.Request.Context(), claims.OrganizationID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Delete godoc
// @Summary Remove a participation and reverse its points
// @Tags Participations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Participation ID"
// @Success 204
// @Router /participations/{id} [delete]
func (h *ParticipationHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.participations.Remove(c.Request.Context(), claims.OrganizationID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Adjust godoc
// @Summary Apply a manual point adjustment to a student
// @Tags Participations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.AdjustPointsRequest true "Adjustment payload"
// @Success 201 {object} response.Envelope
// @Router /adjustments [post]
func (h *ParticipationHandler) Adjust(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.AdjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.participations.Adjust(c.Request.Context(), claims.OrganizationID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
