package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-suite/academics-api/internal/models"
	appErrors "github.com/campus-suite/academics-api/pkg/errors"
)

type selectionPeriodRepository interface {
	List(ctx context.Context, filter models.PeriodFilter) ([]models.SelectionPeriod, int, error)
	FindByID(ctx context.Context, id string) (*models.SelectionPeriod, error)
	ListEnabled(ctx context.Context) ([]models.SelectionPeriod, error)
	ListEnabledByScope(ctx context.Context, selectionType, semester string, academicYear int) ([]models.SelectionPeriod, error)
	Create(ctx context.Context, period *models.SelectionPeriod) error
	Update(ctx context.Context, period *models.SelectionPeriod) error
	UpdateStatus(ctx context.Context, id string, status models.PeriodStatus) error
}

type periodCache interface {
	GetEnabled(ctx context.Context) ([]models.SelectionPeriod, error)
	SetEnabled(ctx context.Context, periods []models.SelectionPeriod) error
	Invalidate(ctx context.Context)
}

// PeriodRequest carries the mutable fields of a selection period.
type PeriodRequest struct {
	Name             string    `json:"name" validate:"required"`
	Semester         string    `json:"semester" validate:"required"`
	AcademicYear     int       `json:"academic_year" validate:"required"`
	SelectionType    string    `json:"selection_type" validate:"required"`
	ApplicableGrades []string  `json:"applicable_grades"`
	StartTime        time.Time `json:"start_time" validate:"required"`
	EndTime          time.Time `json:"end_time" validate:"required"`
}

// SelectionPeriodService manages selection windows and answers the single
// question the enrollment path asks: is selection open for this student now.
type SelectionPeriodService struct {
	repo      selectionPeriodRepository
	cache     periodCache
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewSelectionPeriodService instantiates SelectionPeriodService.
func NewSelectionPeriodService(repo selectionPeriodRepository, cache periodCache, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *SelectionPeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionPeriodService{repo: repo, cache: cache, validator: validate, metrics: metrics, logger: logger, now: time.Now}
}

// List returns selection periods with pagination metadata.
func (s *SelectionPeriodService) List(ctx context.Context, filter models.PeriodFilter) ([]models.SelectionPeriod, *models.Pagination, error) {
	periods, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list selection periods")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return periods, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one selection period.
func (s *SelectionPeriodService) Get(ctx context.Context, id string) (*models.SelectionPeriod, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "selection period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selection period")
	}
	return period, nil
}

// Create stores a new period after window validation. New periods start
// enabled.
func (s *SelectionPeriodService) Create(ctx context.Context, req PeriodRequest) (*models.SelectionPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period payload")
	}

	period := models.SelectionPeriod{
		Name:             req.Name,
		Semester:         req.Semester,
		AcademicYear:     req.AcademicYear,
		SelectionType:    req.SelectionType,
		ApplicableGrades: req.ApplicableGrades,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Status:           models.PeriodStatusEnabled,
	}

	if err := s.validateWindow(ctx, period, ""); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, &period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create selection period")
	}
	s.invalidate(ctx)
	return &period, nil
}

// Update modifies a period's definition. The period is excluded from its own
// overlap check.
func (s *SelectionPeriodService) Update(ctx context.Context, id string, req PeriodRequest) (*models.SelectionPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period payload")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == models.PeriodStatusRetired {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "selection period retired")
	}

	updated := *existing
	updated.Name = req.Name
	updated.Semester = req.Semester
	updated.AcademicYear = req.AcademicYear
	updated.SelectionType = req.SelectionType
	updated.ApplicableGrades = req.ApplicableGrades
	updated.StartTime = req.StartTime
	updated.EndTime = req.EndTime

	if err := s.validateWindow(ctx, updated, id); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update selection period")
	}
	s.invalidate(ctx)
	return &updated, nil
}

// Enable re-enables a disabled period.
func (s *SelectionPeriodService) Enable(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.PeriodStatusEnabled)
}

// Disable suppresses a period without altering its window, so it can be
// re-enabled with the original bounds intact.
func (s *SelectionPeriodService) Disable(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.PeriodStatusDisabled)
}

// Retire soft-deletes a period. Retired periods never reopen.
func (s *SelectionPeriodService) Retire(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.PeriodStatusRetired)
}

func (s *SelectionPeriodService) transition(ctx context.Context, id string, status models.PeriodStatus) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status == models.PeriodStatusRetired {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "selection period retired")
	}
	if existing.Status == status {
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update selection period status")
	}
	s.invalidate(ctx)
	return nil
}

// CurrentOpen returns the periods open right now, consulting the cache first.
func (s *SelectionPeriodService) CurrentOpen(ctx context.Context) ([]models.SelectionPeriod, error) {
	enabled, err := s.enabledPeriods(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	open := make([]models.SelectionPeriod, 0, len(enabled))
	for _, p := range enabled {
		if p.IsOpenAt(now) {
			open = append(open, p)
		}
	}
	return open, nil
}

// IsSelectionAllowed reports whether a student with the given grade tag may
// select under the given selection type and semester at this instant. Empty
// selectionType or semester matches any period on that axis.
func (s *SelectionPeriodService) IsSelectionAllowed(ctx context.Context, gradeTag, selectionType, semester string) (bool, error) {
	enabled, err := s.enabledPeriods(ctx)
	if err != nil {
		return false, err
	}
	now := s.now()
	for _, p := range enabled {
		if selectionType != "" && p.SelectionType != selectionType {
			continue
		}
		if semester != "" && p.Semester != semester {
			continue
		}
		if p.IsOpenAt(now) && p.AppliesToGrade(gradeTag) {
			return true, nil
		}
	}
	return false, nil
}

func (s *SelectionPeriodService) enabledPeriods(ctx context.Context) ([]models.SelectionPeriod, error) {
	if s.cache != nil {
		start := time.Now()
		cached, err := s.cache.GetEnabled(ctx)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return cached, nil
		}
		var appErr *appErrors.Error
		if !errors.As(err, &appErr) || appErr.Code != appErrors.ErrCacheMiss.Code {
			s.logger.Warn("selection period cache read failed", zap.Error(err))
		}
	}

	periods, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enabled selection periods")
	}
	if s.cache != nil {
		if err := s.cache.SetEnabled(ctx, periods); err != nil {
			s.logger.Warn("selection period cache write failed", zap.Error(err))
		}
	}
	return periods, nil
}

func (s *SelectionPeriodService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

// validateWindow enforces well-formed bounds and no overlap with enabled
// periods of the same selection type, semester and academic year.
func (s *SelectionPeriodService) validateWindow(ctx context.Context, period models.SelectionPeriod, excludeID string) error {
	if !period.StartTime.Before(period.EndTime) {
		return appErrors.Clone(appErrors.ErrValidation, "period start must precede end")
	}

	peers, err := s.repo.ListEnabledByScope(ctx, period.SelectionType, period.Semester, period.AcademicYear)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check period overlaps")
	}
	for _, peer := range peers {
		if excludeID != "" && peer.ID == excludeID {
			continue
		}
		if period.OverlapsWindow(peer) {
			return appErrors.Clone(appErrors.ErrValidation, "period window overlaps an existing period of the same type")
		}
	}
	return nil
}
