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

// GradeHandler exposes grade record endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// List godoc
// @Summary List grade records
// @Tags Grades
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param scheduleId query string false "Filter by schedule"
// @Param semester query string false "Filter by semester"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	var filter models.GradeFilter
	filter.StudentID = c.Query("studentId")
	filter.CourseID = c.Query("courseId")
	filter.ScheduleID = c.Query("scheduleId")
	filter.Semester = c.Query("semester")
	filter.Status = c.Query("status")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	records, pagination, err := h.grades.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get one grade record
// @Tags Grades
// @Produce json
// @Param id path string true "Grade record ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [get]
func (h *GradeHandler) Get(c *gin.Context) {
	record, err := h.grades.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// EnterScores godoc
// @Summary Enter component scores for a grade record
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade record ID"
// @Param payload body service.EnterScoresRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grades/{id}/scores [put]
func (h *GradeHandler) EnterScores(c *gin.Context) {
	var req service.EnterScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.grades.EnterScores(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// BatchCreate godoc
// @Summary Seed grade records for every active selection on a schedule
// @Tags Grades
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/grades [post]
func (h *GradeHandler) BatchCreate(c *gin.Context) {
	created, err := h.grades.BatchCreateFromSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"created": created}, nil)
}

// Publish godoc
// @Summary Publish recorded grades on a schedule
// @Tags Grades
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/grades/publish [put]
func (h *GradeHandler) Publish(c *gin.Context) {
	published, err := h.grades.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"published": published}, nil)
}

// StudentGPA godoc
// @Summary Compute a student's credit-weighted GPA for a semester
// @Tags Grades
// @Produce json
// @Param studentId path string true "Student ID"
// @Param semester query string true "Semester"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/gpa [get]
func (h *GradeHandler) StudentGPA(c *gin.Context) {
	semester := c.Query("semester")
	if semester == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester is required"))
		return
	}
	gpa, err := h.grades.StudentGPA(c.Request.Context(), c.Param("studentId"), semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"gpa": gpa}, nil)
}

// ClassAverage godoc
// @Summary Compute a class's average computed score in a course
// @Tags Grades
// @Produce json
// @Param classId path string true "Class ID"
// @Param courseId query string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/average [get]
func (h *GradeHandler) ClassAverage(c *gin.Context) {
	courseID := c.Query("courseId")
	if courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "courseId is required"))
		return
	}
	avg, err := h.grades.ClassAverageScore(c.Request.Context(), c.Param("classId"), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"average": avg}, nil)
}
