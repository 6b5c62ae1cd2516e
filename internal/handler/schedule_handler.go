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

// ScheduleHandler exposes schedule slot endpoints.
type ScheduleHandler struct {
	schedules *service.ScheduleService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedules *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// List godoc
// @Summary List schedule slots
// @Tags Schedules
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param teacherId query string false "Filter by teacher"
// @Param classroomId query string false "Filter by classroom"
// @Param semester query string false "Filter by semester"
// @Param dayOfWeek query int false "Filter by ISO day of week"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var filter models.ScheduleFilter
	filter.CourseID = c.Query("courseId")
	filter.TeacherID = c.Query("teacherId")
	filter.ClassroomID = c.Query("classroomId")
	filter.Semester = c.Query("semester")
	filter.Status = c.Query("status")
	if day, err := strconv.Atoi(c.Query("dayOfWeek")); err == nil {
		filter.DayOfWeek = day
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	slots, pagination, err := h.schedules.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, pagination)
}

// Get godoc
// @Summary Get one schedule slot
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	slot, err := h.schedules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Create godoc
// @Summary Create a schedule slot
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.CreateScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req service.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.schedules.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// Update godoc
// @Summary Update a schedule slot
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body service.UpdateScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req service.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.schedules.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Cancel godoc
// @Summary Cancel a schedule slot
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Cancel(c *gin.Context) {
	if err := h.schedules.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CheckConflict godoc
// @Summary Check classroom and teacher availability
// @Tags Schedules
// @Produce json
// @Param classroomId query string false "Classroom ID"
// @Param teacherId query string false "Teacher ID"
// @Param semester query string true "Semester"
// @Param dayOfWeek query int true "ISO day of week"
// @Param startTime query string true "Start time HH:MM"
// @Param endTime query string true "End time HH:MM"
// @Param excludeId query string false "Schedule to exclude"
// @Success 200 {object} response.Envelope
// @Router /schedules/availability [get]
func (h *ScheduleHandler) CheckConflict(c *gin.Context) {
	day, err := strconv.Atoi(c.Query("dayOfWeek"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "dayOfWeek must be an integer"))
		return
	}
	semester := c.Query("semester")
	start := c.Query("startTime")
	end := c.Query("endTime")
	excludeID := c.Query("excludeId")

	result := gin.H{}
	if classroomID := c.Query("classroomId"); classroomID != "" {
		occupied, err := h.schedules.IsClassroomOccupied(c.Request.Context(), classroomID, day, start, end, semester, excludeID)
		if err != nil {
			response.Error(c, err)
			return
		}
		result["classroom_occupied"] = occupied
	}
	if teacherID := c.Query("teacherId"); teacherID != "" {
		occupied, err := h.schedules.IsTeacherOccupied(c.Request.Context(), teacherID, day, start, end, semester, excludeID)
		if err != nil {
			response.Error(c, err)
			return
		}
		result["teacher_occupied"] = occupied
	}
	if len(result) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classroomId or teacherId is required"))
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// TeacherTimetable godoc
// @Summary List a teacher's schedule for a semester
// @Tags Schedules
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param semester query string true "Semester"
// @Success 200 {object} response.Envelope
// @Router /teachers/{teacherId}/schedules [get]
func (h *ScheduleHandler) TeacherTimetable(c *gin.Context) {
	slots, err := h.schedules.ListByTeacher(c.Request.Context(), c.Param("teacherId"), c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// ClassroomTimetable godoc
// @Summary List a classroom's schedule for a semester
// @Tags Schedules
// @Produce json
// @Param classroomId path string true "Classroom ID"
// @Param semester query string true "Semester"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{classroomId}/schedules [get]
func (h *ScheduleHandler) ClassroomTimetable(c *gin.Context) {
	slots, err := h.schedules.ListByClassroom(c.Request.Context(), c.Param("classroomId"), c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}
