package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/campus-suite/academics-api/internal/models"
)

func gradeRows(selectionID string) *sqlmock.Rows {
	score := 86.5
	return sqlmock.NewRows([]string{"id", "selection_id", "student_id", "course_id", "schedule_id", "semester", "regular_score", "midterm_score", "final_score", "computed_score", "grade_point", "letter_level", "is_makeup", "is_retake", "status", "created_at", "updated_at"}).
		AddRow("grade-1", selectionID, "stu-1", "course-1", "sched-1", "2025-fall", 80.0, 85.0, 90.0, score, 3.0, "B", false, false, models.GradeStatusRecorded, time.Now(), time.Now())
}

func TestGradeRepositoryListBySelectionIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM grade_records WHERE selection_id IN").
		WithArgs("sel-1", "sel-2").
		WillReturnRows(gradeRows("sel-1"))

	records, err := repo.ListBySelectionIDs(context.Background(), []string{"sel-1", "sel-2"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Contains(t, records, "sel-1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListBySelectionIDsEmpty(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	records, err := repo.ListBySelectionIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestGradeRepositoryListByStudentSemester(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, selection_id, student_id, course_id, schedule_id, semester, regular_score, midterm_score, final_score, computed_score, grade_point, letter_level, is_makeup, is_retake, status, created_at, updated_at FROM grade_records WHERE student_id = $1 AND semester = $2")).
		WithArgs("stu-1", "2025-fall").
		WillReturnRows(gradeRows("sel-1"))

	records, err := repo.ListByStudentSemester(context.Background(), "stu-1", "2025-fall")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].GradePoint)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryPublishBySchedule(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE grade_records SET status = $1, updated_at = $2 WHERE schedule_id = $3 AND status = $4")).
		WithArgs(models.GradeStatusPublished, sqlmock.AnyArg(), "sched-1", models.GradeStatusRecorded).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.PublishBySchedule(context.Background(), "sched-1")
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
