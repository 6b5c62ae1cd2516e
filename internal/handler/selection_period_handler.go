package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campus-suite/academics-api/internal/models"
	"github.com/campus-suite/academics-api/internal/service"
	appErrors "github.com/campus-suite/academics-api/pkg/errors"
	"github.com/campus-suite/academics-api/pkg/response"
)

// SelectionPeriodHandler exposes selection period endpoints.
type SelectionPeriodHandler struct {
	periods *service.SelectionPeriodService
}

// NewSelectionPeriodHandler constructs SelectionPeriodHandler.
func NewSelectionPeriodHandler(periods *service.SelectionPeriodService) *SelectionPeriodHandler {
	return &SelectionPeriodHandler{periods: periods}
}

// List godoc
// @Summary List selection periods
// @Tags SelectionPeriods
// @Produce json
// @Param semester query string false "Filter by semester"
// @Param academicYear query int false "Filter by academic year"
// @Param selectionType query string false "Filter by selection type"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /selection-periods [get]
func (h *SelectionPeriodHandler) List(c *gin.Context) {
	var filter models.PeriodFilter
	filter.Semester = c.Query("semester")
	filter.SelectionType = c.Query("selectionType")
	filter.Status = c.Query("status")
	if year, err := strconv.Atoi(c.Query("academicYear")); err == nil {
		filter.AcademicYear = year
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	periods, pagination, err := h.periods.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, pagination)
}

// Get godoc
// @Summary Get one selection period
// @Tags SelectionPeriods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /selection-periods/{id} [get]
func (h *SelectionPeriodHandler) Get(c *gin.Context) {
	period, err := h.periods.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Create godoc
// @Summary Create a selection period
// @Tags SelectionPeriods
// @Accept json
// @Produce json
// @Param payload body service.PeriodRequest true "Period payload"
// @Success 201 {object} response.Envelope
// @Router /selection-periods [post]
func (h *SelectionPeriodHandler) Create(c *gin.Context) {
	var req service.PeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	period, err := h.periods.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// Update godoc
// @Summary Update a selection period
// @Tags SelectionPeriods
// @Accept json
// @Produce json
// @Param id path string true "Period ID"
// @Param payload body service.PeriodRequest true "Period payload"
// @Success 200 {object} response.Envelope
// @Router /selection-periods/{id} [put]
func (h *SelectionPeriodHandler) Update(c *gin.Context) {
	var req service.PeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	period, err := h.periods.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Enable godoc
// @Summary Enable a selection period
// @Tags SelectionPeriods
// @Produce json
// @Param id path string true "Period ID"
// @Success 204
// @Router /selection-periods/{id}/enable [put]
func (h *SelectionPeriodHandler) Enable(c *gin.Context) {
	if err := h.periods.Enable(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Disable godoc
// @Summary Disable a selection period
// @Tags SelectionPeriods
// @Produce json
// @Param id path string true "Period ID"
// @Success 204
// @Router /selection-periods/{id}/disable [put]
func (h *SelectionPeriodHandler) Disable(c *gin.Context) {
	if err := h.periods.Disable(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Retire godoc
// @Summary Retire a selection period
// @Tags SelectionPeriods
// @Produce json
// @Param id path string true "Period ID"
// @Success 204
// @Router /selection-periods/{id} [delete]
func (h *SelectionPeriodHandler) Retire(c *gin.Context) {
	if err := h.periods.Retire(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CurrentOpen godoc
// @Summary List selection periods open right now
// @Tags SelectionPeriods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /selection-periods/current [get]
func (h *SelectionPeriodHandler) CurrentOpen(c *gin.Context) {
	periods, err := h.periods.CurrentOpen(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}
