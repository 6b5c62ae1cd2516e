package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-suite/academics-api/internal/models"
)

const scheduleColumns = "id, course_id, teacher_id, classroom_id, semester, academic_year, day_of_week, start_time, end_time, capacity, status, created_at, updated_at"

// ScheduleRepository provides persistence for schedule slots.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns schedule slots with optional filtering and pagination.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleSlot, int, error) {
	base := "FROM schedule_slots WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.ClassroomID != "" {
		conditions = append(conditions, fmt.Sprintf("classroom_id = $%d", len(args)+1))
		args = append(args, filter.ClassroomID)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.AcademicYear != 0 {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.DayOfWeek != 0 {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"day_of_week": true,
		"start_time":  true,
		"semester":    true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "day_of_week"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, start_time ASC LIMIT %d OFFSET %d", scheduleColumns, base, sortBy, order, size, offset)
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedule slots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedule slots: %w", err)
	}

	return slots, total, nil
}

// FindByID loads a schedule slot by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_slots WHERE id = $1", scheduleColumns)
	var slot models.ScheduleSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListActiveByClassroomDay returns committed slots for a classroom on a given
// semester and weekday. Overlap evaluation happens in the service; this stays
// a filter-by-key fetch.
func (r *ScheduleRepository) ListActiveByClassroomDay(ctx context.Context, classroomID, semester string, dayOfWeek int) ([]models.ScheduleSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_slots WHERE classroom_id = $1 AND semester = $2 AND day_of_week = $3 AND status = $4 ORDER BY start_time ASC", scheduleColumns)
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, classroomID, semester, dayOfWeek, models.SlotStatusActive); err != nil {
		return nil, fmt.Errorf("list classroom slots: %w", err)
	}
	return slots, nil
}

// ListActiveByTeacherDay returns committed slots for a teacher on a given
// semester and weekday.
func (r *ScheduleRepository) ListActiveByTeacherDay(ctx context.Context, teacherID, semester string, dayOfWeek int) ([]models.ScheduleSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_slots WHERE teacher_id = $1 AND semester = $2 AND day_of_week = $3 AND status = $4 ORDER BY start_time ASC", scheduleColumns)
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, teacherID, semester, dayOfWeek, models.SlotStatusActive); err != nil {
		return nil, fmt.Errorf("list teacher slots: %w", err)
	}
	return slots, nil
}

// ListByTeacher returns a teacher's committed timetable ordered by day/time.
func (r *ScheduleRepository) ListByTeacher(ctx context.Context, teacherID, semester string) ([]models.ScheduleSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_slots WHERE teacher_id = $1 AND semester = $2 AND status = $3 ORDER BY day_of_week ASC, start_time ASC", scheduleColumns)
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, teacherID, semester, models.SlotStatusActive); err != nil {
		return nil, fmt.Errorf("list schedule slots by teacher: %w", err)
	}
	return slots, nil
}

// ListByClassroom returns a classroom's committed timetable ordered by day/time.
func (r *ScheduleRepository) ListByClassroom(ctx context.Context, classroomID, semester string) ([]models.ScheduleSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_slots WHERE classroom_id = $1 AND semester = $2 AND status = $3 ORDER BY day_of_week ASC, start_time ASC", scheduleColumns)
	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, classroomID, semester, models.SlotStatusActive); err != nil {
		return nil, fmt.Errorf("list schedule slots by classroom: %w", err)
	}
	return slots, nil
}

// Create stores a new schedule slot.
func (r *ScheduleRepository) Create(ctx context.Context, slot *models.ScheduleSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO schedule_slots (id, course_id, teacher_id, classroom_id, semester, academic_year, day_of_week, start_time, end_time, capacity, status, created_at, updated_at) VALUES (:id, :course_id, :teacher_id, :classroom_id, :semester, :academic_year, :day_of_week, :start_time, :end_time, :capacity, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create schedule slot: %w", err)
	}
	return nil
}

// Update modifies a schedule slot.
func (r *ScheduleRepository) Update(ctx context.Context, slot *models.ScheduleSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_slots SET course_id = :course_id, teacher_id = :teacher_id, classroom_id = :classroom_id, semester = :semester, academic_year = :academic_year, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, capacity = :capacity, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("update schedule slot: %w", err)
	}
	return nil
}

// UpdateStatus transitions a slot's lifecycle state.
func (r *ScheduleRepository) UpdateStatus(ctx context.Context, id string, status models.SlotStatus) error {
	const query = `UPDATE schedule_slots SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update schedule slot status: %w", err)
	}
	return nil
}
