package models

import (
	"time"

	"github.com/lib/pq"
)

// PeriodStatus represents the administrative state of a selection period.
type PeriodStatus string

const (
	// PeriodStatusEnabled lets the period open and close on wall-clock time.
	PeriodStatusEnabled PeriodStatus = "enabled"
	// PeriodStatusDisabled suppresses the open window regardless of time.
	PeriodStatusDisabled PeriodStatus = "disabled"
	// PeriodStatusRetired marks a period soft-deleted by an administrator.
	PeriodStatusRetired PeriodStatus = "retired"
)

// PeriodWindowState is the derived scheduled/open/closed progression.
type PeriodWindowState string

const (
	PeriodWindowScheduled PeriodWindowState = "scheduled"
	PeriodWindowOpen      PeriodWindowState = "open"
	PeriodWindowClosed    PeriodWindowState = "closed"
)

// SelectionPeriod is an administrator-defined absolute time window
// [StartTime, EndTime) during which a category of students may add or drop
// courses. The window progression is derived from the clock on every read,
// never stored.
type SelectionPeriod struct {
	ID               string         `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	Semester         string         `db:"semester" json:"semester"`
	AcademicYear     int            `db:"academic_year" json:"academic_year"`
	SelectionType    string         `db:"selection_type" json:"selection_type"`
	ApplicableGrades pq.StringArray `db:"applicable_grades" json:"applicable_grades"`
	StartTime        time.Time      `db:"start_time" json:"start_time"`
	EndTime          time.Time      `db:"end_time" json:"end_time"`
	Status           PeriodStatus   `db:"status" json:"status"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// WindowState derives the scheduled/open/closed progression at the given
// instant. Start is inclusive, end exclusive.
func (p SelectionPeriod) WindowState(now time.Time) PeriodWindowState {
	if now.Before(p.StartTime) {
		return PeriodWindowScheduled
	}
	if now.Before(p.EndTime) {
		return PeriodWindowOpen
	}
	return PeriodWindowClosed
}

// IsOpenAt reports whether students may act under this period at the given
// instant. Disabled and retired periods are never open.
func (p SelectionPeriod) IsOpenAt(now time.Time) bool {
	return p.Status == PeriodStatusEnabled && p.WindowState(now) == PeriodWindowOpen
}

// AppliesToGrade reports whether a student grade tag falls under this
// period. An empty applicable set applies to every grade.
func (p SelectionPeriod) AppliesToGrade(gradeTag string) bool {
	if len(p.ApplicableGrades) == 0 {
		return true
	}
	for _, tag := range p.ApplicableGrades {
		if tag == gradeTag {
			return true
		}
	}
	return false
}

// OverlapsWindow reports whether two periods' absolute [start, end) windows
// intersect.
func (p SelectionPeriod) OverlapsWindow(other SelectionPeriod) bool {
	return p.StartTime.Before(other.EndTime) && other.StartTime.Before(p.EndTime)
}

// PeriodFilter describes query params for listing selection periods.
type PeriodFilter struct {
	Semester      string
	AcademicYear  int
	SelectionType string
	Status        string
	Page          int
	PageSize      int
}

// SelectionStatus represents the lifecycle state of a selection.
type SelectionStatus string

const (
	SelectionStatusActive    SelectionStatus = "active"
	SelectionStatusWithdrawn SelectionStatus = "withdrawn"
)

// Selection is a student's claim on one schedule slot, subject to capacity.
// Selections are never physically deleted; withdrawal is a status change so
// grade records keep their linkage.
type Selection struct {
	ID          string          `db:"id" json:"id"`
	StudentID   string          `db:"student_id" json:"student_id"`
	CourseID    string          `db:"course_id" json:"course_id"`
	ScheduleID  string          `db:"schedule_id" json:"schedule_id"`
	Semester    string          `db:"semester" json:"semester"`
	Status      SelectionStatus `db:"status" json:"status"`
	SelectedAt  time.Time       `db:"selected_at" json:"selected_at"`
	WithdrawnAt *time.Time      `db:"withdrawn_at" json:"withdrawn_at,omitempty"`
}

// SelectionDetail augments a selection with the derived seat count of its
// schedule. The count is computed from active rows, never stored.
type SelectionDetail struct {
	Selection
	SelectedCount int `json:"selected_count"`
	Capacity      int `json:"capacity"`
}
