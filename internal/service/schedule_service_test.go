package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-suite/academics-api/internal/models"
	appErrors "github.com/campus-suite/academics-api/pkg/errors"
)

type stubScheduleRepo struct {
	mu    sync.Mutex
	slots map[string]models.ScheduleSlot

	listErr error
}

func newStubScheduleRepo() *stubScheduleRepo {
	return &stubScheduleRepo{slots: make(map[string]models.ScheduleSlot)}
}

func (r *stubScheduleRepo) List(_ context.Context, _ models.ScheduleFilter) ([]models.ScheduleSlot, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ScheduleSlot, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (r *stubScheduleRepo) FindByID(_ context.Context, id string) (*models.ScheduleSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (r *stubScheduleRepo) ListActiveByClassroomDay(_ context.Context, classroomID, semester string, dayOfWeek int) ([]models.ScheduleSlot, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ScheduleSlot
	for _, s := range r.slots {
		if s.Status == models.SlotStatusActive && s.ClassroomID == classroomID && s.Semester == semester && s.DayOfWeek == dayOfWeek {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubScheduleRepo) ListActiveByTeacherDay(_ context.Context, teacherID, semester string, dayOfWeek int) ([]models.ScheduleSlot, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ScheduleSlot
	for _, s := range r.slots {
		if s.Status == models.SlotStatusActive && s.TeacherID == teacherID && s.Semester == semester && s.DayOfWeek == dayOfWeek {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubScheduleRepo) ListByTeacher(_ context.Context, teacherID, semester string) ([]models.ScheduleSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ScheduleSlot
	for _, s := range r.slots {
		if s.TeacherID == teacherID && s.Semester == semester {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubScheduleRepo) ListByClassroom(_ context.Context, classroomID, semester string) ([]models.ScheduleSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ScheduleSlot
	for _, s := range r.slots {
		if s.ClassroomID == classroomID && s.Semester == semester {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubScheduleRepo) Create(_ context.Context, slot *models.ScheduleSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.CreatedAt = time.Now()
	slot.UpdatedAt = slot.CreatedAt
	r.slots[slot.ID] = *slot
	return nil
}

func (r *stubScheduleRepo) Update(_ context.Context, slot *models.ScheduleSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot.UpdatedAt = time.Now()
	r.slots[slot.ID] = *slot
	return nil
}

func (r *stubScheduleRepo) UpdateStatus(_ context.Context, id string, status models.SlotStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.slots[id]
	s.Status = status
	r.slots[id] = s
	return nil
}

type stubCourseReader struct {
	courses map[string]models.Course
}

func (r *stubCourseReader) FindByID(_ context.Context, id string) (*models.Course, error) {
	c, ok := r.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (r *stubCourseReader) CreditsByIDs(_ context.Context, ids []string) (map[string]float64, error) {
	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		if c, ok := r.courses[id]; ok {
			out[id] = c.Credits
		}
	}
	return out, nil
}

type stubClassroomReader struct {
	rooms map[string]models.Classroom
}

func (r *stubClassroomReader) FindByID(_ context.Context, id string) (*models.Classroom, error) {
	c, ok := r.rooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func newScheduleFixture() (*ScheduleService, *stubScheduleRepo) {
	repo := newStubScheduleRepo()
	courses := &stubCourseReader{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Name: "Algebra", Credits: 3, Active: true},
	}}
	rooms := &stubClassroomReader{rooms: map[string]models.Classroom{
		"room-1": {ID: "room-1", Name: "R101", Capacity: 40},
	}}
	svc := NewScheduleService(repo, courses, rooms, nil, nil, nil)
	return svc, repo
}

func baseCreateRequest() CreateScheduleRequest {
	return CreateScheduleRequest{
		CourseID:     "course-1",
		TeacherID:    "teacher-1",
		ClassroomID:  "room-1",
		Semester:     "2025-1",
		AcademicYear: 2025,
		DayOfWeek:    1,
		StartTime:    "08:00",
		EndTime:      "09:30",
		Capacity:     30,
	}
}

func TestScheduleServiceCreateAndOccupancy(t *testing.T) {
	svc, _ := newScheduleFixture()
	ctx := context.Background()

	slot, err := svc.Create(ctx, baseCreateRequest())
	require.NoError(t, err)
	require.NotEmpty(t, slot.ID)

	occupied, err := svc.IsClassroomOccupied(ctx, "room-1", 1, "09:00", "10:00", "2025-1", "")
	require.NoError(t, err)
	assert.True(t, occupied)

	occupied, err = svc.IsTeacherOccupied(ctx, "teacher-1", 1, "08:30", "09:00", "2025-1", "")
	require.NoError(t, err)
	assert.True(t, occupied)

	// back-to-back slots do not collide under half-open semantics
	occupied, err = svc.IsClassroomOccupied(ctx, "room-1", 1, "09:30", "11:00", "2025-1", "")
	require.NoError(t, err)
	assert.False(t, occupied)

	// different day never collides
	occupied, err = svc.IsTeacherOccupied(ctx, "teacher-1", 2, "08:00", "09:30", "2025-1", "")
	require.NoError(t, err)
	assert.False(t, occupied)
}

func TestScheduleServiceCreateRejectsClassroomConflict(t *testing.T) {
	svc, _ := newScheduleFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, baseCreateRequest())
	require.NoError(t, err)

	second := baseCreateRequest()
	second.TeacherID = "teacher-2"
	second.StartTime = "09:00"
	second.EndTime = "10:00"
	_, err = svc.Create(ctx, second)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErr.Code)

	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, "CLASSROOM", conflictErr.Conflict.Dimension)
}

func TestScheduleServiceCreateRejectsTeacherConflict(t *testing.T) {
	svc, _ := newScheduleFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, baseCreateRequest())
	require.NoError(t, err)

	second := baseCreateRequest()
	second.ClassroomID = "room-2"
	svcRooms := &stubClassroomReader{rooms: map[string]models.Classroom{
		"room-1": {ID: "room-1", Capacity: 40},
		"room-2": {ID: "room-2", Capacity: 40},
	}}
	svc.classrooms = svcRooms

	_, err = svc.Create(ctx, second)
	require.Error(t, err)

	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, "TEACHER", conflictErr.Conflict.Dimension)
}

func TestScheduleServiceUpdateExcludesSelf(t *testing.T) {
	svc, _ := newScheduleFixture()
	ctx := context.Background()

	slot, err := svc.Create(ctx, baseCreateRequest())
	require.NoError(t, err)

	// shifting inside its own window must not trip the conflict check
	req := UpdateScheduleRequest(baseCreateRequest())
	req.StartTime = "08:30"
	req.EndTime = "10:00"
	updated, err := svc.Update(ctx, slot.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "08:30", updated.StartTime)
}

func TestScheduleServiceValidation(t *testing.T) {
	svc, _ := newScheduleFixture()
	ctx := context.Background()

	inverted := baseCreateRequest()
	inverted.StartTime = "10:00"
	inverted.EndTime = "09:00"
	_, err := svc.Create(ctx, inverted)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	overCapacity := baseCreateRequest()
	overCapacity.Capacity = 50
	_, err = svc.Create(ctx, overCapacity)
	require.Error(t, err)

	unknownRoom := baseCreateRequest()
	unknownRoom.ClassroomID = "room-missing"
	_, err = svc.Create(ctx, unknownRoom)
	require.Error(t, err)
}

func TestScheduleServiceCancelIdempotent(t *testing.T) {
	svc, repo := newScheduleFixture()
	ctx := context.Background()

	slot, err := svc.Create(ctx, baseCreateRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, slot.ID))
	require.NoError(t, svc.Cancel(ctx, slot.ID))
	assert.Equal(t, models.SlotStatusCancelled, repo.slots[slot.ID].Status)

	// cancelled slot frees its interval
	occupied, err := svc.IsClassroomOccupied(ctx, "room-1", 1, "08:00", "09:30", "2025-1", "")
	require.NoError(t, err)
	assert.False(t, occupied)
}

func TestScheduleServiceConcurrentCreateOneWinner(t *testing.T) {
	svc, _ := newScheduleFixture()
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, baseCreateRequest())
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			var appErr *appErrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErr.Code)
		}
	}
	assert.Equal(t, 1, winners)
}
