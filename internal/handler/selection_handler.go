package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-suite/academics-api/internal/service"
	appErrors "github.com/campus-suite/academics-api/pkg/errors"
	"github.com/campus-suite/academics-api/pkg/response"
)

// SelectionHandler exposes course selection endpoints.
type SelectionHandler struct {
	selections *service.SelectionService
}

// NewSelectionHandler constructs SelectionHandler.
func NewSelectionHandler(selections *service.SelectionService) *SelectionHandler {
	return &SelectionHandler{selections: selections}
}

// selectCourseRequest is the enrollment payload.
type selectCourseRequest struct {
	StudentID  string `json:"student_id" binding:"required"`
	ScheduleID string `json:"schedule_id" binding:"required"`
}

// Select godoc
// @Summary Select a course schedule for a student
// @Tags Selections
// @Accept json
// @Produce json
// @Param payload body selectCourseRequest true "Selection payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /selections [post]
func (h *SelectionHandler) Select(c *gin.Context) {
	var req selectCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	selection, err := h.selections.Select(c.Request.Context(), req.StudentID, req.ScheduleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, selection)
}

// Get godoc
// @Summary Get one selection with its seat count
// @Tags Selections
// @Produce json
// @Param id path string true "Selection ID"
// @Success 200 {object} response.Envelope
// @Router /selections/{id} [get]
func (h *SelectionHandler) Get(c *gin.Context) {
	detail, err := h.selections.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Withdraw godoc
// @Summary Withdraw a selection
// @Tags Selections
// @Produce json
// @Param id path string true "Selection ID"
// @Success 200 {object} response.Envelope
// @Router /selections/{id} [delete]
func (h *SelectionHandler) Withdraw(c *gin.Context) {
	selection, err := h.selections.Withdraw(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, selection, nil)
}

// ListByStudent godoc
// @Summary List a student's selections
// @Tags Selections
// @Produce json
// @Param studentId path string true "Student ID"
// @Param semester query string false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/selections [get]
func (h *SelectionHandler) ListByStudent(c *gin.Context) {
	details, err := h.selections.ListByStudent(c.Request.Context(), c.Param("studentId"), c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// ListBySchedule godoc
// @Summary List the active roster of a schedule slot
// @Tags Selections
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/selections [get]
func (h *SelectionHandler) ListBySchedule(c *gin.Context) {
	details, err := h.selections.ListBySchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}
