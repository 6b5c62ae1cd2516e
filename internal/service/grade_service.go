package service

import (
	"context"
	"database/sql"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-suite/academics-api/internal/models"
	appErrors "github.com/campus-suite/academics-api/pkg/errors"
)

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.GradeRecord, error)
	ListBySelectionIDs(ctx context.Context, selectionIDs []string) (map[string]models.GradeRecord, error)
	ListByStudentSemester(ctx context.Context, studentID, semester string) ([]models.GradeRecord, error)
	ListByCourseForStudents(ctx context.Context, courseID string, studentIDs []string) ([]models.GradeRecord, error)
	BulkCreate(ctx context.Context, records []models.GradeRecord) error
	UpdateScores(ctx context.Context, record *models.GradeRecord) error
	PublishBySchedule(ctx context.Context, scheduleID string) (int, error)
}

type rosterReader interface {
	ListActiveBySchedule(ctx context.Context, scheduleID string) ([]models.Selection, error)
}

type creditReader interface {
	CreditsByIDs(ctx context.Context, ids []string) (map[string]float64, error)
}

type classRosterReader interface {
	ListIDsByClass(ctx context.Context, classID string) ([]string, error)
}

// EnterScoresRequest carries component scores for one grade record. Nil
// fields leave the stored component untouched.
type EnterScoresRequest struct {
	RegularScore *float64 `json:"regular_score" validate:"omitempty,min=0,max=100"`
	MidtermScore *float64 `json:"midterm_score" validate:"omitempty,min=0,max=100"`
	FinalScore   *float64 `json:"final_score" validate:"omitempty,min=0,max=100"`
	IsMakeup     *bool    `json:"is_makeup"`
	IsRetake     *bool    `json:"is_retake"`
}

// GradeService derives computed scores, grade points, GPA and class averages
// from stored component scores. Weights and the grading scale come from
// configuration, never from code.
type GradeService struct {
	repo      gradeRepository
	roster    rosterReader
	credits   creditReader
	students  classRosterReader
	weights   models.GradeWeights
	scale     models.GradeScale
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService instantiates GradeService. Weights and scale must already
// be validated by the config layer.
func NewGradeService(repo gradeRepository, roster rosterReader, credits creditReader, students classRosterReader, weights models.GradeWeights, scale models.GradeScale, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, roster: roster, credits: credits, students: students, weights: weights, scale: scale, validator: validate, logger: logger}
}

// CalculateFinalScore folds component scores into a weighted total, rounded
// half-to-even to two decimals. Any missing component yields nil; a partial
// total would misrank students against fully scored peers.
func (s *GradeService) CalculateFinalScore(regular, midterm, final *float64) *float64 {
	if regular == nil || midterm == nil || final == nil {
		return nil
	}
	total := *regular*s.weights.Regular + *midterm*s.weights.Midterm + *final*s.weights.Final
	rounded := math.RoundToEven(total*100) / 100
	return &rounded
}

// CalculateGradePointAndLevel resolves a computed score against the scale.
func (s *GradeService) CalculateGradePointAndLevel(score *float64) (*float64, *string) {
	if score == nil {
		return nil, nil
	}
	point, letter := s.scale.Lookup(*score)
	return &point, &letter
}

// List returns grade records with pagination metadata.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecord, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade records")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one grade record.
func (s *GradeService) Get(ctx context.Context, id string) (*models.GradeRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade record")
	}
	return record, nil
}

// EnterScores merges component scores into a record and rederives the
// computed fields. Published records reject every edit.
func (s *GradeService) EnterScores(ctx context.Context, id string, req EnterScoresRequest) (*models.GradeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "scores must be between 0 and 100")
	}

	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == models.GradeStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrPublished, "")
	}

	if req.RegularScore != nil {
		record.RegularScore = req.RegularScore
	}
	if req.MidtermScore != nil {
		record.MidtermScore = req.MidtermScore
	}
	if req.FinalScore != nil {
		record.FinalScore = req.FinalScore
	}
	if req.IsMakeup != nil {
		record.IsMakeup = *req.IsMakeup
	}
	if req.IsRetake != nil {
		record.IsRetake = *req.IsRetake
	}

	record.ComputedScore = s.CalculateFinalScore(record.RegularScore, record.MidtermScore, record.FinalScore)
	record.GradePoint, record.LetterLevel = s.CalculateGradePointAndLevel(record.ComputedScore)
	if record.RegularScore != nil || record.MidtermScore != nil || record.FinalScore != nil {
		record.Status = models.GradeStatusRecorded
	}

	if err := s.repo.UpdateScores(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade record")
	}
	return record, nil
}

// BatchCreateFromSchedule seeds one pending grade record per active selection
// on the schedule. Selections that already have a record are skipped, so the
// operation can be re-run after late enrollments.
func (s *GradeService) BatchCreateFromSchedule(ctx context.Context, scheduleID string) (int, error) {
	selections, err := s.roster.ListActiveBySchedule(ctx, scheduleID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule roster")
	}
	if len(selections) == 0 {
		return 0, nil
	}

	ids := make([]string, len(selections))
	for i, sel := range selections {
		ids[i] = sel.ID
	}
	existing, err := s.repo.ListBySelectionIDs(ctx, ids)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing grade records")
	}

	var records []models.GradeRecord
	for _, sel := range selections {
		if _, ok := existing[sel.ID]; ok {
			continue
		}
		records = append(records, models.GradeRecord{
			SelectionID: sel.ID,
			StudentID:   sel.StudentID,
			CourseID:    sel.CourseID,
			ScheduleID:  sel.ScheduleID,
			Semester:    sel.Semester,
			Status:      models.GradeStatusPending,
		})
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := s.repo.BulkCreate(ctx, records); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade records")
	}
	s.logger.Info("grade records seeded",
		zap.String("schedule_id", scheduleID),
		zap.Int("created", len(records)),
		zap.Int("skipped", len(existing)))
	return len(records), nil
}

// Publish locks every recorded grade on the schedule and returns how many
// records transitioned. Pending records without scores stay pending.
func (s *GradeService) Publish(ctx context.Context, scheduleID string) (int, error) {
	published, err := s.repo.PublishBySchedule(ctx, scheduleID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish grade records")
	}
	s.logger.Info("grades published",
		zap.String("schedule_id", scheduleID),
		zap.Int("count", published))
	return published, nil
}

// StudentGPA computes a student's credit-weighted grade point average for a
// semester. Records without a grade point are excluded from both sides of
// the division; a student with no graded records has a GPA of 0.0.
func (s *GradeService) StudentGPA(ctx context.Context, studentID, semester string) (float64, error) {
	records, err := s.repo.ListByStudentSemester(ctx, studentID, semester)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade records")
	}

	courseIDs := make([]string, 0, len(records))
	seen := make(map[string]struct{})
	for _, rec := range records {
		if rec.GradePoint == nil {
			continue
		}
		if _, ok := seen[rec.CourseID]; !ok {
			seen[rec.CourseID] = struct{}{}
			courseIDs = append(courseIDs, rec.CourseID)
		}
	}
	if len(courseIDs) == 0 {
		return 0.0, nil
	}
	sort.Strings(courseIDs)

	credits, err := s.credits.CreditsByIDs(ctx, courseIDs)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course credits")
	}

	var weighted, totalCredits float64
	for _, rec := range records {
		if rec.GradePoint == nil {
			continue
		}
		credit, ok := credits[rec.CourseID]
		if !ok || credit <= 0 {
			continue
		}
		weighted += *rec.GradePoint * credit
		totalCredits += credit
	}
	if totalCredits == 0 {
		return 0.0, nil
	}
	return math.RoundToEven(weighted/totalCredits*100) / 100, nil
}

// ClassAverageScore averages computed scores of a class's students in one
// course. Ungraded records and ungraded students simply do not participate;
// no graded score in the class yields nil rather than a fake zero.
func (s *GradeService) ClassAverageScore(ctx context.Context, classID, courseID string) (*float64, error) {
	studentIDs, err := s.students.ListIDsByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class students")
	}
	if len(studentIDs) == 0 {
		return nil, nil
	}

	records, err := s.repo.ListByCourseForStudents(ctx, courseID, studentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade records")
	}

	var sum float64
	var counted int
	for _, rec := range records {
		if rec.ComputedScore == nil {
			continue
		}
		sum += *rec.ComputedScore
		counted++
	}
	if counted == 0 {
		return nil, nil
	}
	avg := math.RoundToEven(sum/float64(counted)*100) / 100
	return &avg, nil
}
