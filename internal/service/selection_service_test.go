package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-suite/academics-api/internal/models"
	appErrors "github.com/campus-suite/academics-api/pkg/errors"
)

type stubSelectionRepo struct {
	mu         sync.Mutex
	selections map[string]models.Selection
}

func newStubSelectionRepo() *stubSelectionRepo {
	return &stubSelectionRepo{selections: make(map[string]models.Selection)}
}

func (r *stubSelectionRepo) FindByID(_ context.Context, id string) (*models.Selection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.selections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r *stubSelectionRepo) ExistsActive(_ context.Context, studentID, scheduleID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.selections {
		if s.StudentID == studentID && s.ScheduleID == scheduleID && s.Status == models.SelectionStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubSelectionRepo) CountActive(_ context.Context, scheduleID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.selections {
		if s.ScheduleID == scheduleID && s.Status == models.SelectionStatusActive {
			count++
		}
	}
	return count, nil
}

func (r *stubSelectionRepo) ListActiveBySchedule(_ context.Context, scheduleID string) ([]models.Selection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Selection
	for _, s := range r.selections {
		if s.ScheduleID == scheduleID && s.Status == models.SelectionStatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubSelectionRepo) ListByStudent(_ context.Context, studentID, semester string) ([]models.Selection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Selection
	for _, s := range r.selections {
		if s.StudentID == studentID && (semester == "" || s.Semester == semester) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubSelectionRepo) Create(_ context.Context, selection *models.Selection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if selection.ID == "" {
		selection.ID = uuid.NewString()
	}
	r.selections[selection.ID] = *selection
	return nil
}

func (r *stubSelectionRepo) UpdateStatus(_ context.Context, id string, status models.SelectionStatus, withdrawnAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.selections[id]
	s.Status = status
	s.WithdrawnAt = withdrawnAt
	r.selections[id] = s
	return nil
}

type stubStudentReader struct {
	students map[string]models.Student
}

func (r *stubStudentReader) FindByID(_ context.Context, id string) (*models.Student, error) {
	s, ok := r.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

type stubGate struct {
	open         bool
	gradeTag     string
	selectionTyp string
	semester     string
}

func (g *stubGate) IsSelectionAllowed(_ context.Context, gradeTag, selectionType, semester string) (bool, error) {
	g.gradeTag = gradeTag
	g.selectionTyp = selectionType
	g.semester = semester
	return g.open, nil
}

func newSelectionFixture(capacity int) (*SelectionService, *stubSelectionRepo, *stubGate) {
	repo := newStubSelectionRepo()
	students := &stubStudentReader{students: map[string]models.Student{}}
	for _, id := range []string{"stu-1", "stu-2", "stu-3", "stu-4", "stu-5", "stu-6"} {
		students.students[id] = models.Student{ID: id, ClassID: "class-1", GradeTag: "grade-10", Active: true}
	}
	schedules := newStubScheduleRepo()
	schedules.slots["sched-1"] = models.ScheduleSlot{
		ID: "sched-1", CourseID: "course-1", TeacherID: "teacher-1", ClassroomID: "room-1",
		Semester: "2025-1", AcademicYear: 2025, DayOfWeek: 1,
		StartTime: "08:00", EndTime: "09:30", Capacity: capacity, Status: models.SlotStatusActive,
	}
	gate := &stubGate{open: true}
	svc := NewSelectionService(repo, students, schedules, gate, nil, NewMetricsService(), nil)
	return svc, repo, gate
}

func TestSelectionServiceSelect(t *testing.T) {
	svc, _, _ := newSelectionFixture(30)
	ctx := context.Background()

	sel, err := svc.Select(ctx, "stu-1", "sched-1")
	require.NoError(t, err)
	assert.Equal(t, models.SelectionStatusActive, sel.Status)
	assert.Equal(t, "course-1", sel.CourseID)
	assert.Equal(t, "2025-1", sel.Semester)
}

func TestSelectionServiceRejectsWhenWindowClosed(t *testing.T) {
	svc, _, gate := newSelectionFixture(30)
	gate.open = false

	_, err := svc.Select(context.Background(), "stu-1", "sched-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrWindowClosed.Code, appErr.Code)
}

func TestSelectionServicePassesScheduleSemesterToGate(t *testing.T) {
	svc, _, gate := newSelectionFixture(30)

	_, err := svc.Select(context.Background(), "stu-1", "sched-1")
	require.NoError(t, err)
	assert.Equal(t, "grade-10", gate.gradeTag)
	assert.Equal(t, "2025-1", gate.semester)
}

func TestSelectionServiceRejectsDuplicate(t *testing.T) {
	svc, _, _ := newSelectionFixture(30)
	ctx := context.Background()

	_, err := svc.Select(ctx, "stu-1", "sched-1")
	require.NoError(t, err)

	_, err = svc.Select(ctx, "stu-1", "sched-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrDuplicateSelection.Code, appErr.Code)
}

func TestSelectionServiceRejectsOverCapacity(t *testing.T) {
	svc, _, _ := newSelectionFixture(2)
	ctx := context.Background()

	_, err := svc.Select(ctx, "stu-1", "sched-1")
	require.NoError(t, err)
	_, err = svc.Select(ctx, "stu-2", "sched-1")
	require.NoError(t, err)

	_, err = svc.Select(ctx, "stu-3", "sched-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErr.Code)
}

func TestSelectionServiceConcurrentSelectsFillExactly(t *testing.T) {
	const capacity = 3
	svc, repo, _ := newSelectionFixture(capacity)
	ctx := context.Background()

	students := []string{"stu-1", "stu-2", "stu-3", "stu-4", "stu-5", "stu-6"}
	var wg sync.WaitGroup
	errs := make([]error, len(students))
	for i, id := range students {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = svc.Select(ctx, id, "sched-1")
		}(i, id)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			var appErr *appErrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErr.Code)
		}
	}
	assert.Equal(t, capacity, winners)

	count, err := repo.CountActive(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, capacity, count)
}

func TestSelectionServiceSelectCountsOutcomes(t *testing.T) {
	svc, _, gate := newSelectionFixture(1)
	ctx := context.Background()

	gate.open = false
	_, err := svc.Select(ctx, "stu-1", "sched-1")
	require.Error(t, err)

	gate.open = true
	_, err = svc.Select(ctx, "stu-1", "sched-1")
	require.NoError(t, err)
	_, err = svc.Select(ctx, "stu-1", "sched-1")
	require.Error(t, err)
	_, err = svc.Select(ctx, "stu-2", "sched-1")
	require.Error(t, err)

	total := svc.metrics.selectionTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(total.WithLabelValues("window_closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(total.WithLabelValues("selected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(total.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(total.WithLabelValues("capacity_exceeded")))
}

func TestSelectionServiceWithdrawIdempotent(t *testing.T) {
	svc, _, _ := newSelectionFixture(30)
	ctx := context.Background()

	sel, err := svc.Select(ctx, "stu-1", "sched-1")
	require.NoError(t, err)

	first, err := svc.Withdraw(ctx, sel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SelectionStatusWithdrawn, first.Status)
	require.NotNil(t, first.WithdrawnAt)

	second, err := svc.Withdraw(ctx, sel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SelectionStatusWithdrawn, second.Status)
	assert.True(t, first.WithdrawnAt.Equal(*second.WithdrawnAt))
}

func TestSelectionServiceWithdrawFreesSeat(t *testing.T) {
	svc, _, _ := newSelectionFixture(1)
	ctx := context.Background()

	sel, err := svc.Select(ctx, "stu-1", "sched-1")
	require.NoError(t, err)

	_, err = svc.Select(ctx, "stu-2", "sched-1")
	require.Error(t, err)

	_, err = svc.Withdraw(ctx, sel.ID)
	require.NoError(t, err)

	_, err = svc.Select(ctx, "stu-2", "sched-1")
	require.NoError(t, err)
}

func TestSelectionServiceReselectAfterWithdraw(t *testing.T) {
	svc, _, _ := newSelectionFixture(30)
	ctx := context.Background()

	sel, err := svc.Select(ctx, "stu-1", "sched-1")
	require.NoError(t, err)
	_, err = svc.Withdraw(ctx, sel.ID)
	require.NoError(t, err)

	// withdrawal does not count as a duplicate
	again, err := svc.Select(ctx, "stu-1", "sched-1")
	require.NoError(t, err)
	assert.NotEqual(t, sel.ID, again.ID)
}

func TestSelectionServiceListByStudentCounts(t *testing.T) {
	svc, _, _ := newSelectionFixture(30)
	ctx := context.Background()

	_, err := svc.Select(ctx, "stu-1", "sched-1")
	require.NoError(t, err)
	_, err = svc.Select(ctx, "stu-2", "sched-1")
	require.NoError(t, err)

	details, err := svc.ListByStudent(ctx, "stu-1", "2025-1")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, 2, details[0].SelectedCount)
	assert.Equal(t, 30, details[0].Capacity)
}
