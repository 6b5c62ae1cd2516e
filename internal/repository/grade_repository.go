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

const gradeColumns = "id, selection_id, student_id, course_id, schedule_id, semester, regular_score, midterm_score, final_score, computed_score, grade_point, letter_level, is_makeup, is_retake, status, created_at, updated_at"

// GradeRepository provides persistence for grade records.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns grade records with optional filtering and pagination.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecord, int, error) {
	base := "FROM grade_records WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.ScheduleID != "" {
		conditions = append(conditions, fmt.Sprintf("schedule_id = $%d", len(args)+1))
		args = append(args, filter.ScheduleID)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", gradeColumns, base, size, offset)
	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list grade records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count grade records: %w", err)
	}

	return records, total, nil
}

// FindByID loads a grade record by id.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.GradeRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM grade_records WHERE id = $1", gradeColumns)
	var record models.GradeRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListBySelectionIDs returns records keyed by their selection id.
func (r *GradeRepository) ListBySelectionIDs(ctx context.Context, selectionIDs []string) (map[string]models.GradeRecord, error) {
	result := make(map[string]models.GradeRecord, len(selectionIDs))
	if len(selectionIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM grade_records WHERE selection_id IN (?)", gradeColumns), selectionIDs)
	if err != nil {
		return nil, fmt.Errorf("build selection ids query: %w", err)
	}
	query = r.db.Rebind(query)

	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list grade records by selections: %w", err)
	}
	for _, record := range records {
		result[record.SelectionID] = record
	}
	return result, nil
}

// ListByStudentSemester returns a student's records for one semester.
func (r *GradeRepository) ListByStudentSemester(ctx context.Context, studentID, semester string) ([]models.GradeRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM grade_records WHERE student_id = $1 AND semester = $2", gradeColumns)
	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID, semester); err != nil {
		return nil, fmt.Errorf("list grade records by student: %w", err)
	}
	return records, nil
}

// ListByCourseForStudents returns records for one course restricted to the
// given students, the input to class-average computation.
func (r *GradeRepository) ListByCourseForStudents(ctx context.Context, courseID string, studentIDs []string) ([]models.GradeRecord, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM grade_records WHERE course_id = ? AND student_id IN (?)", gradeColumns), courseID, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("build course students query: %w", err)
	}
	query = r.db.Rebind(query)

	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list grade records by course: %w", err)
	}
	return records, nil
}

const insertGradeQuery = `INSERT INTO grade_records (id, selection_id, student_id, course_id, schedule_id, semester, regular_score, midterm_score, final_score, computed_score, grade_point, letter_level, is_makeup, is_retake, status, created_at, updated_at) VALUES (:id, :selection_id, :student_id, :course_id, :schedule_id, :semester, :regular_score, :midterm_score, :final_score, :computed_score, :grade_point, :letter_level, :is_makeup, :is_retake, :status, :created_at, :updated_at)`

// BulkCreate inserts many grade records within a transaction.
func (r *GradeRepository) BulkCreate(ctx context.Context, records []models.GradeRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create grade records: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range records {
		payload := records[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err = tx.NamedExecContext(ctx, insertGradeQuery, &payload); err != nil {
			return fmt.Errorf("bulk insert grade record: %w", err)
		}
		records[i] = payload
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create grade records: %w", err)
	}
	return nil
}

// UpdateScores persists entered component scores and their derived values.
func (r *GradeRepository) UpdateScores(ctx context.Context, record *models.GradeRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grade_records SET regular_score = :regular_score, midterm_score = :midterm_score, final_score = :final_score, computed_score = :computed_score, grade_point = :grade_point, letter_level = :letter_level, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("update grade record scores: %w", err)
	}
	return nil
}

// PublishBySchedule locks recorded records on a schedule and returns how many
// changed.
func (r *GradeRepository) PublishBySchedule(ctx context.Context, scheduleID string) (int, error) {
	const query = `UPDATE grade_records SET status = $1, updated_at = $2 WHERE schedule_id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, models.GradeStatusPublished, time.Now().UTC(), scheduleID, models.GradeStatusRecorded)
	if err != nil {
		return 0, fmt.Errorf("publish grade records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("publish grade records affected: %w", err)
	}
	return int(affected), nil
}
