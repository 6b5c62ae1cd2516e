package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campus-suite/academics-api/internal/models"
	appErrors "github.com/campus-suite/academics-api/pkg/errors"
	"github.com/campus-suite/academics-api/pkg/keylock"
)

type selectionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Selection, error)
	ExistsActive(ctx context.Context, studentID, scheduleID string) (bool, error)
	CountActive(ctx context.Context, scheduleID string) (int, error)
	ListActiveBySchedule(ctx context.Context, scheduleID string) ([]models.Selection, error)
	ListByStudent(ctx context.Context, studentID, semester string) ([]models.Selection, error)
	Create(ctx context.Context, selection *models.Selection) error
	UpdateStatus(ctx context.Context, id string, status models.SelectionStatus, withdrawnAt *time.Time) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type scheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error)
}

type selectionGate interface {
	IsSelectionAllowed(ctx context.Context, gradeTag, selectionType, semester string) (bool, error)
}

// SelectionService owns the enrollment ledger. Seat counts are derived from
// active rows on every check, so a withdrawal frees its seat on the next
// select attempt with no compensation step.
type SelectionService struct {
	repo      selectionRepository
	students  studentReader
	schedules scheduleReader
	periods   selectionGate
	locks     *keylock.KeyLock
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewSelectionService instantiates SelectionService.
func NewSelectionService(repo selectionRepository, students studentReader, schedules scheduleReader, periods selectionGate, locks *keylock.KeyLock, metrics *MetricsService, logger *zap.Logger) *SelectionService {
	if locks == nil {
		locks = keylock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionService{repo: repo, students: students, schedules: schedules, periods: periods, locks: locks, metrics: metrics, logger: logger, now: time.Now}
}

// Select enrolls a student into a schedule slot. Preconditions are checked in
// a fixed order so callers see a stable rejection: window, duplicate, then
// capacity. Duplicate and capacity run under the schedule's lock so the
// count-compare-insert sequence cannot interleave.
func (s *SelectionService) Select(ctx context.Context, studentID, scheduleID string) (*models.Selection, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student inactive")
	}

	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if schedule.Status != models.SlotStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "schedule cancelled")
	}

	allowed, err := s.periods.IsSelectionAllowed(ctx, student.GradeTag, "", schedule.Semester)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.metrics.RecordSelectionOutcome("window_closed")
		return nil, appErrors.Clone(appErrors.ErrWindowClosed, "no selection window open for this student")
	}

	release := s.locks.Acquire(scheduleKey(scheduleID))
	defer release()

	exists, err := s.repo.ExistsActive(ctx, studentID, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing selection")
	}
	if exists {
		s.metrics.RecordSelectionOutcome("duplicate")
		return nil, appErrors.Clone(appErrors.ErrDuplicateSelection, "")
	}

	count, err := s.repo.CountActive(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count selections")
	}
	if count >= schedule.Capacity {
		s.metrics.RecordSelectionOutcome("capacity_exceeded")
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("schedule full: %d of %d seats taken", count, schedule.Capacity))
	}

	selection := models.Selection{
		StudentID:  studentID,
		CourseID:   schedule.CourseID,
		ScheduleID: scheduleID,
		Semester:   schedule.Semester,
		Status:     models.SelectionStatusActive,
		SelectedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, &selection); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create selection")
	}
	s.metrics.RecordSelectionOutcome("selected")
	s.logger.Info("course selected",
		zap.String("student_id", studentID),
		zap.String("schedule_id", scheduleID),
		zap.Int("seats_taken", count+1),
		zap.Int("capacity", schedule.Capacity))
	return &selection, nil
}

// Withdraw marks a selection withdrawn. Withdrawing twice is a no-op; the
// second call returns the already-withdrawn row unchanged.
func (s *SelectionService) Withdraw(ctx context.Context, selectionID string) (*models.Selection, error) {
	selection, err := s.repo.FindByID(ctx, selectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "selection not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selection")
	}
	if selection.Status == models.SelectionStatusWithdrawn {
		return selection, nil
	}

	withdrawnAt := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, selectionID, models.SelectionStatusWithdrawn, &withdrawnAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw selection")
	}
	selection.Status = models.SelectionStatusWithdrawn
	selection.WithdrawnAt = &withdrawnAt
	s.logger.Info("course withdrawn",
		zap.String("selection_id", selectionID),
		zap.String("schedule_id", selection.ScheduleID))
	return selection, nil
}

// Get loads one selection with its derived seat count.
func (s *SelectionService) Get(ctx context.Context, selectionID string) (*models.SelectionDetail, error) {
	selection, err := s.repo.FindByID(ctx, selectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "selection not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selection")
	}
	details, err := s.withDetails(ctx, []models.Selection{*selection})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// ListByStudent returns a student's selections with derived seat counts.
func (s *SelectionService) ListByStudent(ctx context.Context, studentID, semester string) ([]models.SelectionDetail, error) {
	selections, err := s.repo.ListByStudent(ctx, studentID, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list selections")
	}
	return s.withDetails(ctx, selections)
}

// ListBySchedule returns the active roster of a schedule slot.
func (s *SelectionService) ListBySchedule(ctx context.Context, scheduleID string) ([]models.SelectionDetail, error) {
	selections, err := s.repo.ListActiveBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule roster")
	}
	return s.withDetails(ctx, selections)
}

func (s *SelectionService) withDetails(ctx context.Context, selections []models.Selection) ([]models.SelectionDetail, error) {
	details := make([]models.SelectionDetail, 0, len(selections))
	counts := make(map[string]int)
	capacities := make(map[string]int)
	for _, sel := range selections {
		if _, ok := counts[sel.ScheduleID]; !ok {
			count, err := s.repo.CountActive(ctx, sel.ScheduleID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count selections")
			}
			counts[sel.ScheduleID] = count

			schedule, err := s.schedules.FindByID(ctx, sel.ScheduleID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
			}
			capacities[sel.ScheduleID] = schedule.Capacity
		}
		details = append(details, models.SelectionDetail{
			Selection:     sel,
			SelectedCount: counts[sel.ScheduleID],
			Capacity:      capacities[sel.ScheduleID],
		})
	}
	return details, nil
}

func scheduleKey(scheduleID string) string {
	return "schedule:" + scheduleID
}
