package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-suite/academics-api/internal/models"
	appErrors "github.com/campus-suite/academics-api/pkg/errors"
	"github.com/campus-suite/academics-api/pkg/keylock"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleSlot, int, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error)
	ListActiveByClassroomDay(ctx context.Context, classroomID, semester string, dayOfWeek int) ([]models.ScheduleSlot, error)
	ListActiveByTeacherDay(ctx context.Context, teacherID, semester string, dayOfWeek int) ([]models.ScheduleSlot, error)
	ListByTeacher(ctx context.Context, teacherID, semester string) ([]models.ScheduleSlot, error)
	ListByClassroom(ctx context.Context, classroomID, semester string) ([]models.ScheduleSlot, error)
	Create(ctx context.Context, slot *models.ScheduleSlot) error
	Update(ctx context.Context, slot *models.ScheduleSlot) error
	UpdateStatus(ctx context.Context, id string, status models.SlotStatus) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type classroomReader interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

// CreateScheduleRequest describes payload for creating a schedule slot.
type CreateScheduleRequest struct {
	CourseID     string `json:"course_id" validate:"required"`
	TeacherID    string `json:"teacher_id" validate:"required"`
	ClassroomID  string `json:"classroom_id" validate:"required"`
	Semester     string `json:"semester" validate:"required"`
	AcademicYear int    `json:"academic_year" validate:"required"`
	DayOfWeek    int    `json:"day_of_week" validate:"required,min=1,max=7"`
	StartTime    string `json:"start_time" validate:"required"`
	EndTime      string `json:"end_time" validate:"required"`
	Capacity     int    `json:"capacity" validate:"required,min=1"`
}

// UpdateScheduleRequest updates an existing schedule slot.
type UpdateScheduleRequest struct {
	CourseID     string `json:"course_id" validate:"required"`
	TeacherID    string `json:"teacher_id" validate:"required"`
	ClassroomID  string `json:"classroom_id" validate:"required"`
	Semester     string `json:"semester" validate:"required"`
	AcademicYear int    `json:"academic_year" validate:"required"`
	DayOfWeek    int    `json:"day_of_week" validate:"required,min=1,max=7"`
	StartTime    string `json:"start_time" validate:"required"`
	EndTime      string `json:"end_time" validate:"required"`
	Capacity     int    `json:"capacity" validate:"required,min=1"`
}

// ScheduleService owns schedule slot writes and the double-booking checks
// that gate them.
type ScheduleService struct {
	repo       scheduleRepository
	courses    courseReader
	classrooms classroomReader
	locks      *keylock.KeyLock
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleRepository, courses courseReader, classrooms classroomReader, locks *keylock.KeyLock, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if locks == nil {
		locks = keylock.New()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, courses: courses, classrooms: classrooms, locks: locks, validator: validate, logger: logger}
}

// List returns schedule slots with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleSlot, *models.Pagination, error) {
	slots, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule slots")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return slots, pagination, nil
}

// Get loads one schedule slot.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return slot, nil
}

// ListByTeacher returns a teacher's timetable for a semester.
func (s *ScheduleService) ListByTeacher(ctx context.Context, teacherID, semester string) ([]models.ScheduleSlot, error) {
	slots, err := s.repo.ListByTeacher(ctx, teacherID, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher timetable")
	}
	return slots, nil
}

// ListByClassroom returns a classroom's timetable for a semester.
func (s *ScheduleService) ListByClassroom(ctx context.Context, classroomID, semester string) ([]models.ScheduleSlot, error) {
	slots, err := s.repo.ListByClassroom(ctx, classroomID, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classroom timetable")
	}
	return slots, nil
}

// IsClassroomOccupied reports whether any committed slot for the classroom
// overlaps the proposed weekly interval in the semester. excludeID skips a
// slot's own row when validating an in-place edit.
func (s *ScheduleService) IsClassroomOccupied(ctx context.Context, classroomID string, dayOfWeek int, startTime, endTime, semester, excludeID string) (bool, error) {
	proposed := models.WeeklyInterval{DayOfWeek: dayOfWeek, StartTime: startTime, EndTime: endTime}
	if !proposed.Valid() {
		return false, appErrors.Clone(appErrors.ErrValidation, "malformed time interval")
	}

	slots, err := s.repo.ListActiveByClassroomDay(ctx, classroomID, semester, dayOfWeek)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom slots")
	}
	return overlapsAny(proposed, slots, excludeID), nil
}

// IsTeacherOccupied reports whether any committed slot for the teacher
// overlaps the proposed weekly interval in the semester.
func (s *ScheduleService) IsTeacherOccupied(ctx context.Context, teacherID string, dayOfWeek int, startTime, endTime, semester, excludeID string) (bool, error) {
	proposed := models.WeeklyInterval{DayOfWeek: dayOfWeek, StartTime: startTime, EndTime: endTime}
	if !proposed.Valid() {
		return false, appErrors.Clone(appErrors.ErrValidation, "malformed time interval")
	}

	slots, err := s.repo.ListActiveByTeacherDay(ctx, teacherID, semester, dayOfWeek)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher slots")
	}
	return overlapsAny(proposed, slots, excludeID), nil
}

// Create commits a new schedule slot after both occupancy checks pass.
func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleRequest) (*models.ScheduleSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	slot := models.ScheduleSlot{
		CourseID:     req.CourseID,
		TeacherID:    req.TeacherID,
		ClassroomID:  req.ClassroomID,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Capacity:     req.Capacity,
		Status:       models.SlotStatusActive,
	}

	if err := s.validateSlot(ctx, slot); err != nil {
		return nil, err
	}

	release := s.locks.Acquire(classroomKey(slot), teacherKey(slot))
	defer release()

	if err := s.ensureNoConflict(ctx, slot, ""); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, &slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule slot")
	}
	return &slot, nil
}

// Update reschedules an existing slot, excluding it from its own conflict check.
func (s *ScheduleService) Update(ctx context.Context, id string, req UpdateScheduleRequest) (*models.ScheduleSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if existing.Status != models.SlotStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "schedule cancelled")
	}

	updated := models.ScheduleSlot{
		ID:           existing.ID,
		CourseID:     req.CourseID,
		TeacherID:    req.TeacherID,
		ClassroomID:  req.ClassroomID,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Capacity:     req.Capacity,
		Status:       existing.Status,
		CreatedAt:    existing.CreatedAt,
	}

	if err := s.validateSlot(ctx, updated); err != nil {
		return nil, err
	}

	release := s.locks.Acquire(classroomKey(updated), teacherKey(updated))
	defer release()

	if err := s.ensureNoConflict(ctx, updated, existing.ID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule slot")
	}
	return &updated, nil
}

// Cancel logically removes a slot. Existing selections are untouched so
// grade records keep their linkage.
func (s *ScheduleService) Cancel(ctx context.Context, id string) error {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if slot.Status == models.SlotStatusCancelled {
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, id, models.SlotStatusCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel schedule slot")
	}
	return nil
}

func (s *ScheduleService) validateSlot(ctx context.Context, slot models.ScheduleSlot) error {
	if !slot.Interval().Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "start time must precede end time within a day")
	}

	course, err := s.courses.FindByID(ctx, slot.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrValidation, "unknown course")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "course inactive")
	}

	room, err := s.classrooms.FindByID(ctx, slot.ClassroomID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrValidation, "unknown classroom")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	if slot.Capacity > room.Capacity {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("capacity %d exceeds classroom capacity %d", slot.Capacity, room.Capacity))
	}
	return nil
}

// ensureNoConflict runs both occupancy checks; both must be clear before the
// caller may commit. Runs inside the classroom/teacher key locks.
func (s *ScheduleService) ensureNoConflict(ctx context.Context, slot models.ScheduleSlot, excludeID string) error {
	roomSlots, err := s.repo.ListActiveByClassroomDay(ctx, slot.ClassroomID, slot.Semester, slot.DayOfWeek)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check classroom conflicts")
	}
	if blocking := firstOverlap(slot.Interval(), roomSlots, excludeID); blocking != nil {
		return s.wrapConflict("CLASSROOM", "classroom already booked for an overlapping slot", *blocking)
	}

	teacherSlots, err := s.repo.ListActiveByTeacherDay(ctx, slot.TeacherID, slot.Semester, slot.DayOfWeek)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher conflicts")
	}
	if blocking := firstOverlap(slot.Interval(), teacherSlots, excludeID); blocking != nil {
		return s.wrapConflict("TEACHER", "teacher already booked for an overlapping slot", *blocking)
	}
	return nil
}

func (s *ScheduleService) wrapConflict(dimension, message string, existing models.ScheduleSlot) error {
	conflict := models.ScheduleConflict{
		ScheduleID:  existing.ID,
		CourseID:    existing.CourseID,
		TeacherID:   existing.TeacherID,
		ClassroomID: existing.ClassroomID,
		Semester:    existing.Semester,
		DayOfWeek:   existing.DayOfWeek,
		StartTime:   existing.StartTime,
		EndTime:     existing.EndTime,
		Dimension:   dimension,
	}
	domainErr := &models.ScheduleConflictError{Type: dimension, Message: message, Conflict: conflict}
	return appErrors.Wrap(domainErr, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, fmt.Sprintf("schedule conflict: %s", message))
}

func overlapsAny(proposed models.WeeklyInterval, slots []models.ScheduleSlot, excludeID string) bool {
	return firstOverlap(proposed, slots, excludeID) != nil
}

func firstOverlap(proposed models.WeeklyInterval, slots []models.ScheduleSlot, excludeID string) *models.ScheduleSlot {
	for i := range slots {
		if excludeID != "" && slots[i].ID == excludeID {
			continue
		}
		if proposed.Overlaps(slots[i].Interval()) {
			return &slots[i]
		}
	}
	return nil
}

func classroomKey(slot models.ScheduleSlot) string {
	return fmt.Sprintf("classroom:%s:%s:%d", slot.ClassroomID, slot.Semester, slot.DayOfWeek)
}

func teacherKey(slot models.ScheduleSlot) string {
	return fmt.Sprintf("teacher:%s:%s:%d", slot.TeacherID, slot.Semester, slot.DayOfWeek)
}
