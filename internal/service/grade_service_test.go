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

type stubGradeRepo struct {
	mu      sync.Mutex
	records map[string]models.GradeRecord
}

func newStubGradeRepo() *stubGradeRepo {
	return &stubGradeRepo{records: make(map[string]models.GradeRecord)}
}

func (r *stubGradeRepo) List(_ context.Context, _ models.GradeFilter) ([]models.GradeRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.GradeRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (r *stubGradeRepo) FindByID(_ context.Context, id string) (*models.GradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &rec, nil
}

func (r *stubGradeRepo) ListBySelectionIDs(_ context.Context, selectionIDs []string) (map[string]models.GradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]models.GradeRecord)
	for _, id := range selectionIDs {
		for _, rec := range r.records {
			if rec.SelectionID == id {
				out[id] = rec
			}
		}
	}
	return out, nil
}

func (r *stubGradeRepo) ListByStudentSemester(_ context.Context, studentID, semester string) ([]models.GradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.GradeRecord
	for _, rec := range r.records {
		if rec.StudentID == studentID && rec.Semester == semester {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *stubGradeRepo) ListByCourseForStudents(_ context.Context, courseID string, studentIDs []string) ([]models.GradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		members[id] = struct{}{}
	}
	var out []models.GradeRecord
	for _, rec := range r.records {
		if rec.CourseID != courseID {
			continue
		}
		if _, ok := members[rec.StudentID]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *stubGradeRepo) BulkCreate(_ context.Context, records []models.GradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt = time.Now()
		rec.UpdatedAt = rec.CreatedAt
		r.records[rec.ID] = rec
	}
	return nil
}

func (r *stubGradeRepo) UpdateScores(_ context.Context, record *models.GradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.UpdatedAt = time.Now()
	r.records[record.ID] = *record
	return nil
}

func (r *stubGradeRepo) PublishBySchedule(_ context.Context, scheduleID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, rec := range r.records {
		if rec.ScheduleID == scheduleID && rec.Status == models.GradeStatusRecorded {
			rec.Status = models.GradeStatusPublished
			r.records[id] = rec
			count++
		}
	}
	return count, nil
}

type stubClassRoster struct {
	classes map[string][]string
}

func (r *stubClassRoster) ListIDsByClass(_ context.Context, classID string) ([]string, error) {
	return r.classes[classID], nil
}

func defaultScale(t *testing.T) models.GradeScale {
	t.Helper()
	scale, err := models.ParseGradeScale("90:4.0:A,80:3.0:B,70:2.0:C,60:1.0:D,0:0.0:F")
	require.NoError(t, err)
	return scale
}

func newGradeFixture(t *testing.T) (*GradeService, *stubGradeRepo, *stubSelectionRepo) {
	t.Helper()
	repo := newStubGradeRepo()
	selections := newStubSelectionRepo()
	courses := &stubCourseReader{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Credits: 3, Active: true},
		"course-2": {ID: "course-2", Credits: 2, Active: true},
	}}
	roster := &stubClassRoster{classes: map[string][]string{
		"class-1": {"stu-1", "stu-2", "stu-3"},
	}}
	weights := models.GradeWeights{Regular: 0.2, Midterm: 0.3, Final: 0.5}
	svc := NewGradeService(repo, selections, courses, roster, weights, defaultScale(t), nil, nil)
	return svc, repo, selections
}

func fp(v float64) *float64 { return &v }

func TestGradeServiceCalculateFinalScore(t *testing.T) {
	svc, _, _ := newGradeFixture(t)

	got := svc.CalculateFinalScore(fp(80), fp(85), fp(90))
	require.NotNil(t, got)
	assert.InDelta(t, 86.5, *got, 1e-9)

	assert.Nil(t, svc.CalculateFinalScore(nil, fp(85), fp(90)))
	assert.Nil(t, svc.CalculateFinalScore(fp(80), nil, fp(90)))
	assert.Nil(t, svc.CalculateFinalScore(fp(80), fp(85), nil))

	zero := svc.CalculateFinalScore(fp(0), fp(0), fp(0))
	require.NotNil(t, zero)
	assert.Zero(t, *zero)
}

func TestGradeServiceGradePointAndLevel(t *testing.T) {
	svc, _, _ := newGradeFixture(t)

	point, letter := svc.CalculateGradePointAndLevel(fp(90))
	require.NotNil(t, point)
	assert.Equal(t, 4.0, *point)
	assert.Equal(t, "A", *letter)

	point, letter = svc.CalculateGradePointAndLevel(fp(89.99))
	assert.Equal(t, 3.0, *point)
	assert.Equal(t, "B", *letter)

	point, letter = svc.CalculateGradePointAndLevel(fp(0))
	assert.Equal(t, 0.0, *point)
	assert.Equal(t, "F", *letter)

	point, letter = svc.CalculateGradePointAndLevel(nil)
	assert.Nil(t, point)
	assert.Nil(t, letter)
}

func seedSelections(t *testing.T, selections *stubSelectionRepo, scheduleID string, studentIDs ...string) []models.Selection {
	t.Helper()
	ctx := context.Background()
	out := make([]models.Selection, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		sel := models.Selection{
			StudentID:  studentID,
			CourseID:   "course-1",
			ScheduleID: scheduleID,
			Semester:   "2025-1",
			Status:     models.SelectionStatusActive,
			SelectedAt: time.Now(),
		}
		require.NoError(t, selections.Create(ctx, &sel))
		out = append(out, sel)
	}
	return out
}

func TestGradeServiceBatchCreateIdempotent(t *testing.T) {
	svc, repo, selections := newGradeFixture(t)
	ctx := context.Background()

	seedSelections(t, selections, "sched-1", "stu-1", "stu-2")

	created, err := svc.BatchCreateFromSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// re-run produces nothing new
	created, err = svc.BatchCreateFromSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Zero(t, created)

	// a late enrollment picks up exactly one record
	seedSelections(t, selections, "sched-1", "stu-3")
	created, err = svc.BatchCreateFromSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	for _, rec := range repo.records {
		assert.Equal(t, models.GradeStatusPending, rec.Status)
		assert.Nil(t, rec.ComputedScore)
	}
}

func TestGradeServiceEnterScores(t *testing.T) {
	svc, repo, selections := newGradeFixture(t)
	ctx := context.Background()

	seedSelections(t, selections, "sched-1", "stu-1")
	_, err := svc.BatchCreateFromSchedule(ctx, "sched-1")
	require.NoError(t, err)

	var recordID string
	for id := range repo.records {
		recordID = id
	}

	// partial entry leaves derived fields nil
	rec, err := svc.EnterScores(ctx, recordID, EnterScoresRequest{RegularScore: fp(80)})
	require.NoError(t, err)
	assert.Equal(t, models.GradeStatusRecorded, rec.Status)
	assert.Nil(t, rec.ComputedScore)
	assert.Nil(t, rec.GradePoint)

	// completing the components derives everything
	rec, err = svc.EnterScores(ctx, recordID, EnterScoresRequest{MidtermScore: fp(85), FinalScore: fp(90)})
	require.NoError(t, err)
	require.NotNil(t, rec.ComputedScore)
	assert.InDelta(t, 86.5, *rec.ComputedScore, 1e-9)
	assert.Equal(t, 3.0, *rec.GradePoint)
	assert.Equal(t, "B", *rec.LetterLevel)
}

func TestGradeServiceEnterScoresRejectsOutOfRange(t *testing.T) {
	svc, repo, selections := newGradeFixture(t)
	ctx := context.Background()

	seedSelections(t, selections, "sched-1", "stu-1")
	_, err := svc.BatchCreateFromSchedule(ctx, "sched-1")
	require.NoError(t, err)

	var recordID string
	for id := range repo.records {
		recordID = id
	}

	cases := []EnterScoresRequest{
		{RegularScore: fp(150)},
		{MidtermScore: fp(-40)},
		{FinalScore: fp(999)},
		{RegularScore: fp(150), MidtermScore: fp(-40), FinalScore: fp(999)},
	}
	for _, req := range cases {
		_, err := svc.EnterScores(ctx, recordID, req)
		require.Error(t, err)
		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}

	// nothing was persisted and the record is still scoreless
	stored := repo.records[recordID]
	assert.Equal(t, models.GradeStatusPending, stored.Status)
	assert.Nil(t, stored.RegularScore)
	assert.Nil(t, stored.ComputedScore)

	// boundary values remain accepted
	_, err = svc.EnterScores(ctx, recordID, EnterScoresRequest{RegularScore: fp(0), MidtermScore: fp(100), FinalScore: fp(100)})
	require.NoError(t, err)
}

func TestGradeServicePublishLocksRecords(t *testing.T) {
	svc, repo, selections := newGradeFixture(t)
	ctx := context.Background()

	seedSelections(t, selections, "sched-1", "stu-1", "stu-2")
	_, err := svc.BatchCreateFromSchedule(ctx, "sched-1")
	require.NoError(t, err)

	var scoredID string
	for id := range repo.records {
		scoredID = id
		break
	}
	_, err = svc.EnterScores(ctx, scoredID, EnterScoresRequest{RegularScore: fp(80), MidtermScore: fp(85), FinalScore: fp(90)})
	require.NoError(t, err)

	// only the recorded record publishes; the untouched one stays pending
	published, err := svc.Publish(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, 1, published)

	_, err = svc.EnterScores(ctx, scoredID, EnterScoresRequest{FinalScore: fp(95)})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrPublished.Code, appErr.Code)
}

func gradedRecord(studentID, courseID, semester string, point float64, computed *float64) models.GradeRecord {
	return models.GradeRecord{
		ID:            uuid.NewString(),
		SelectionID:   uuid.NewString(),
		StudentID:     studentID,
		CourseID:      courseID,
		ScheduleID:    "sched-1",
		Semester:      semester,
		ComputedScore: computed,
		GradePoint:    &point,
		Status:        models.GradeStatusRecorded,
	}
}

func TestGradeServiceStudentGPA(t *testing.T) {
	svc, repo, _ := newGradeFixture(t)
	ctx := context.Background()

	// 4.0 over 3 credits and 3.0 over 2 credits: (12 + 6) / 5 = 3.6
	a := gradedRecord("stu-1", "course-1", "2025-1", 4.0, fp(95))
	b := gradedRecord("stu-1", "course-2", "2025-1", 3.0, fp(85))
	repo.records[a.ID] = a
	repo.records[b.ID] = b

	gpa, err := svc.StudentGPA(ctx, "stu-1", "2025-1")
	require.NoError(t, err)
	assert.InDelta(t, 3.6, gpa, 1e-9)
}

func TestGradeServiceStudentGPAExcludesUngraded(t *testing.T) {
	svc, repo, _ := newGradeFixture(t)
	ctx := context.Background()

	a := gradedRecord("stu-1", "course-1", "2025-1", 4.0, fp(95))
	repo.records[a.ID] = a
	pending := models.GradeRecord{
		ID: uuid.NewString(), SelectionID: uuid.NewString(),
		StudentID: "stu-1", CourseID: "course-2", ScheduleID: "sched-2",
		Semester: "2025-1", Status: models.GradeStatusPending,
	}
	repo.records[pending.ID] = pending

	// the pending course contributes neither points nor credits
	gpa, err := svc.StudentGPA(ctx, "stu-1", "2025-1")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, gpa, 1e-9)
}

func TestGradeServiceStudentGPAEmpty(t *testing.T) {
	svc, _, _ := newGradeFixture(t)

	gpa, err := svc.StudentGPA(context.Background(), "stu-1", "2025-1")
	require.NoError(t, err)
	assert.Zero(t, gpa)
}

func TestGradeServiceClassAverage(t *testing.T) {
	svc, repo, _ := newGradeFixture(t)
	ctx := context.Background()

	a := gradedRecord("stu-1", "course-1", "2025-1", 4.0, fp(90))
	b := gradedRecord("stu-2", "course-1", "2025-1", 3.0, fp(80))
	repo.records[a.ID] = a
	repo.records[b.ID] = b
	// stu-3 has a record with no computed score; it is excluded entirely
	pending := models.GradeRecord{
		ID: uuid.NewString(), SelectionID: uuid.NewString(),
		StudentID: "stu-3", CourseID: "course-1", ScheduleID: "sched-1",
		Semester: "2025-1", Status: models.GradeStatusPending,
	}
	repo.records[pending.ID] = pending

	avg, err := svc.ClassAverageScore(ctx, "class-1", "course-1")
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.InDelta(t, 85.0, *avg, 1e-9)
}

func TestGradeServiceClassAverageNoGrades(t *testing.T) {
	svc, _, _ := newGradeFixture(t)

	avg, err := svc.ClassAverageScore(context.Background(), "class-1", "course-1")
	require.NoError(t, err)
	assert.Nil(t, avg)
}
