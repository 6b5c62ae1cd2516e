package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campus-suite/academics-api/internal/models"
)

// CourseRepository provides read access to the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID loads a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, name, credits, active, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// CreditsByIDs returns course credits keyed by course id, the weights used by
// GPA aggregation.
func (r *CourseRepository) CreditsByIDs(ctx context.Context, ids []string) (map[string]float64, error) {
	result := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT id, credits FROM courses WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build course credits query: %w", err)
	}
	query = r.db.Rebind(query)

	rows := []struct {
		ID      string  `db:"id"`
		Credits float64 `db:"credits"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list course credits: %w", err)
	}
	for _, row := range rows {
		result[row.ID] = row.Credits
	}
	return result, nil
}
