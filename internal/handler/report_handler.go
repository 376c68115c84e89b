package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ardn-app/ardn-api/internal/models"
	"github.com/ardn-app/ardn-api/internal/service"
	appErrors "github.com/ardn-app/ardn-api/pkg/errors"
	"github.com/ardn-app/ardn-api/pkg/response"
)

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func reportFilterFromQuery(c *gin.Context) (models.ReportFilter, error) {
	filter := models.ReportFilter{
		ProgramID: c.Query("program_id"),
		Class:     c.Query("class"),
	}
	if raw := c.Query("start_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
		}
		filter.StartDate = &parsed
	}
	if raw := c.Query("end_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD")
		}
		// Treat the end date as inclusive of the whole day.
		end := parsed.Add(24*time.Hour - time.Second)
		filter.EndDate = &end
	}
	return filter, nil
}

// Summary godoc
// @Summary Organization-wide counters and top students
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reports/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.reports.Summary(c.Request.Context(), claims.OrganizationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Leaderboard godoc
// @Summary Ranked students by point balance
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param program_id query string false "Filter by program"
// @Param class query string false "Filter by class"
// @Param start_date query string false "Period start (YYYY-MM-DD)"
// @Param end_date query string false "Period end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/leaderboard [get]
func (h *ReportHandler) Leaderboard(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter, err := reportFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.reports.Leaderboard(c.Request.Context(), claims.OrganizationID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Activities godoc
// @Summary Per-activity participation summaries
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param program_id query string false "Filter by program"
// @Param start_date query string false "Period start (YYYY-MM-DD)"
// @Param end_date query string false "Period end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/activities [get]
func (h *ReportHandler) Activities(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter, err := reportFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	reports, err := h.reports.Activities(c.Request.Context(), claims.OrganizationID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, nil)
}

// Participation godoc
// @Summary Participations grouped by activity date
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param program_id query string false "Filter by program"
// @Param class query string false "Filter by class"
// @Param start_date query string false "Period start (YYYY-MM-DD)"
// @Param end_date query string false "Period end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/participation [get]
func (h *ReportHandler) Participation(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter, err := reportFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	groups, err := h.reports.ParticipationTrend(c.Request.Context(), claims.OrganizationID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}
