package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-suite/academics-api/internal/models"
)

const selectionColumns = "id, student_id, course_id, schedule_id, semester, status, selected_at, withdrawn_at"

// SelectionRepository provides persistence for course selections.
type SelectionRepository struct {
	db *sqlx.DB
}

// NewSelectionRepository creates a new selection repository.
func NewSelectionRepository(db *sqlx.DB) *SelectionRepository {
	return &SelectionRepository{db: db}
}

// FindByID loads a selection by id.
func (r *SelectionRepository) FindByID(ctx context.Context, id string) (*models.Selection, error) {
	query := fmt.Sprintf("SELECT %s FROM course_selections WHERE id = $1", selectionColumns)
	var selection models.Selection
	if err := r.db.GetContext(ctx, &selection, query, id); err != nil {
		return nil, err
	}
	return &selection, nil
}

// ExistsActive reports whether the student already holds an active selection
// on the schedule.
func (r *SelectionRepository) ExistsActive(ctx context.Context, studentID, scheduleID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM course_selections WHERE student_id = $1 AND schedule_id = $2 AND status = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, scheduleID, models.SelectionStatusActive); err != nil {
		return false, fmt.Errorf("check active selection: %w", err)
	}
	return exists, nil
}

// CountActive returns the number of active selections on a schedule. The
// seat count is always derived from rows, never stored, so it cannot drift.
func (r *SelectionRepository) CountActive(ctx context.Context, scheduleID string) (int, error) {
	const query = `SELECT COUNT(*) FROM course_selections WHERE schedule_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, scheduleID, models.SelectionStatusActive); err != nil {
		return 0, fmt.Errorf("count active selections: %w", err)
	}
	return count, nil
}

// ListActiveBySchedule returns the active selections on a schedule.
func (r *SelectionRepository) ListActiveBySchedule(ctx context.Context, scheduleID string) ([]models.Selection, error) {
	query := fmt.Sprintf("SELECT %s FROM course_selections WHERE schedule_id = $1 AND status = $2 ORDER BY selected_at ASC", selectionColumns)
	var selections []models.Selection
	if err := r.db.SelectContext(ctx, &selections, query, scheduleID, models.SelectionStatusActive); err != nil {
		return nil, fmt.Errorf("list selections by schedule: %w", err)
	}
	return selections, nil
}

// ListByStudent returns a student's selections, optionally narrowed to a semester.
func (r *SelectionRepository) ListByStudent(ctx context.Context, studentID, semester string) ([]models.Selection, error) {
	query := fmt.Sprintf("SELECT %s FROM course_selections WHERE student_id = $1", selectionColumns)
	args := []interface{}{studentID}
	if semester != "" {
		query += " AND semester = $2"
		args = append(args, semester)
	}
	query += " ORDER BY selected_at DESC"

	var selections []models.Selection
	if err := r.db.SelectContext(ctx, &selections, query, args...); err != nil {
		return nil, fmt.Errorf("list selections by student: %w", err)
	}
	return selections, nil
}

// Create stores a new selection. The partial unique index on active
// (student_id, schedule_id) backs the duplicate invariant at storage level.
func (r *SelectionRepository) Create(ctx context.Context, selection *models.Selection) error {
	if selection.ID == "" {
		selection.ID = uuid.NewString()
	}
	if selection.SelectedAt.IsZero() {
		selection.SelectedAt = time.Now().UTC()
	}

	const query = `INSERT INTO course_selections (id, student_id, course_id, schedule_id, semester, status, selected_at, withdrawn_at) VALUES (:id, :student_id, :course_id, :schedule_id, :semester, :status, :selected_at, :withdrawn_at)`
	if _, err := r.db.NamedExecContext(ctx, query, selection); err != nil {
		return fmt.Errorf("create selection: %w", err)
	}
	return nil
}

// UpdateStatus transitions a selection's lifecycle state.
func (r *SelectionRepository) UpdateStatus(ctx context.Context, id string, status models.SelectionStatus, withdrawnAt *time.Time) error {
	const query = `UPDATE course_selections SET status = $1, withdrawn_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, withdrawnAt, id); err != nil {
		return fmt.Errorf("update selection status: %w", err)
	}
	return nil
}
