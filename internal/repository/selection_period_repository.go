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

const periodColumns = "id, name, semester, academic_year, selection_type, applicable_grades, start_time, end_time, status, created_at, updated_at"

// SelectionPeriodRepository provides persistence for selection periods.
type SelectionPeriodRepository struct {
	db *sqlx.DB
}

// NewSelectionPeriodRepository creates a new selection period repository.
func NewSelectionPeriodRepository(db *sqlx.DB) *SelectionPeriodRepository {
	return &SelectionPeriodRepository{db: db}
}

// List returns selection periods with optional filtering and pagination.
func (r *SelectionPeriodRepository) List(ctx context.Context, filter models.PeriodFilter) ([]models.SelectionPeriod, int, error) {
	base := "FROM selection_periods WHERE status != 'retired'"
	var conditions []string
	var args []interface{}

	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.AcademicYear != 0 {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.SelectionType != "" {
		conditions = append(conditions, fmt.Sprintf("selection_type = $%d", len(args)+1))
		args = append(args, filter.SelectionType)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_time ASC LIMIT %d OFFSET %d", periodColumns, base, size, offset)
	var periods []models.SelectionPeriod
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list selection periods: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count selection periods: %w", err)
	}

	return periods, total, nil
}

// FindByID loads a selection period by id.
func (r *SelectionPeriodRepository) FindByID(ctx context.Context, id string) (*models.SelectionPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM selection_periods WHERE id = $1", periodColumns)
	var period models.SelectionPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// ListEnabled returns every enabled period; the service derives the open set
// from the clock.
func (r *SelectionPeriodRepository) ListEnabled(ctx context.Context) ([]models.SelectionPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM selection_periods WHERE status = $1 ORDER BY start_time ASC", periodColumns)
	var periods []models.SelectionPeriod
	if err := r.db.SelectContext(ctx, &periods, query, models.PeriodStatusEnabled); err != nil {
		return nil, fmt.Errorf("list enabled selection periods: %w", err)
	}
	return periods, nil
}

// ListEnabledByScope returns enabled periods sharing a selection type,
// semester and academic year, the scope window-overlap checks run against.
func (r *SelectionPeriodRepository) ListEnabledByScope(ctx context.Context, selectionType, semester string, academicYear int) ([]models.SelectionPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM selection_periods WHERE selection_type = $1 AND semester = $2 AND academic_year = $3 AND status = $4 ORDER BY start_time ASC", periodColumns)
	var periods []models.SelectionPeriod
	if err := r.db.SelectContext(ctx, &periods, query, selectionType, semester, academicYear, models.PeriodStatusEnabled); err != nil {
		return nil, fmt.Errorf("list selection periods by scope: %w", err)
	}
	return periods, nil
}

// Create stores a new selection period.
func (r *SelectionPeriodRepository) Create(ctx context.Context, period *models.SelectionPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if period.CreatedAt.IsZero() {
		period.CreatedAt = now
	}
	period.UpdatedAt = now

	const query = `INSERT INTO selection_periods (id, name, semester, academic_year, selection_type, applicable_grades, start_time, end_time, status, created_at, updated_at) VALUES (:id, :name, :semester, :academic_year, :selection_type, :applicable_grades, :start_time, :end_time, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create selection period: %w", err)
	}
	return nil
}

// Update modifies a selection period.
func (r *SelectionPeriodRepository) Update(ctx context.Context, period *models.SelectionPeriod) error {
	period.UpdatedAt = time.Now().UTC()
	const query = `UPDATE selection_periods SET name = :name, semester = :semester, academic_year = :academic_year, selection_type = :selection_type, applicable_grades = :applicable_grades, start_time = :start_time, end_time = :end_time, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("update selection period: %w", err)
	}
	return nil
}

// UpdateStatus transitions a period's administrative status.
func (r *SelectionPeriodRepository) UpdateStatus(ctx context.Context, id string, status models.PeriodStatus) error {
	const query = `UPDATE selection_periods SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update selection period status: %w", err)
	}
	return nil
}
