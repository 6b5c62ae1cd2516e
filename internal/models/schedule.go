package models

import "time"

// SlotStatus represents the lifecycle state of a schedule slot.
type SlotStatus string

const (
	// SlotStatusActive marks a committed slot visible to conflict checks and selection.
	SlotStatusActive SlotStatus = "active"
	// SlotStatusCancelled marks a logically removed slot. Existing selections
	// keep pointing at it so grade records stay linked.
	SlotStatusCancelled SlotStatus = "cancelled"
)

// ScheduleSlot is one weekly-recurring occurrence of a course meeting: one
// classroom, one teacher, one day-of-week, one clock range within that day.
type ScheduleSlot struct {
	ID           string     `db:"id" json:"id"`
	CourseID     string     `db:"course_id" json:"course_id"`
	TeacherID    string     `db:"teacher_id" json:"teacher_id"`
	ClassroomID  string     `db:"classroom_id" json:"classroom_id"`
	Semester     string     `db:"semester" json:"semester"`
	AcademicYear int        `db:"academic_year" json:"academic_year"`
	DayOfWeek    int        `db:"day_of_week" json:"day_of_week"`
	StartTime    string     `db:"start_time" json:"start_time"`
	EndTime      string     `db:"end_time" json:"end_time"`
	Capacity     int        `db:"capacity" json:"capacity"`
	Status       SlotStatus `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Interval returns the slot's weekly interval.
func (s ScheduleSlot) Interval() WeeklyInterval {
	return WeeklyInterval{DayOfWeek: s.DayOfWeek, StartTime: s.StartTime, EndTime: s.EndTime}
}

// WeeklyInterval is a recurring half-open time span [StartTime, EndTime)
// within a single day of the week. Times are zero-padded "HH:MM" clock
// strings, so lexicographic comparison is chronological comparison.
type WeeklyInterval struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Valid reports whether the interval has a known day, well-formed clock
// strings, and a non-empty span.
func (w WeeklyInterval) Valid() bool {
	if w.DayOfWeek < 1 || w.DayOfWeek > 7 {
		return false
	}
	if !ValidClock(w.StartTime) || !ValidClock(w.EndTime) {
		return false
	}
	return w.StartTime < w.EndTime
}

// Overlaps reports whether two weekly intervals intersect. Days must match
// exactly; within a day the classic half-open test applies, so a slot ending
// exactly when another starts does not overlap.
func (w WeeklyInterval) Overlaps(other WeeklyInterval) bool {
	if w.DayOfWeek != other.DayOfWeek {
		return false
	}
	return w.StartTime < other.EndTime && other.StartTime < w.EndTime
}

// ValidClock reports whether raw is a zero-padded "HH:MM" clock string.
func ValidClock(raw string) bool {
	if len(raw) != 5 || raw[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if raw[i] < '0' || raw[i] > '9' {
			return false
		}
	}
	hour := int(raw[0]-'0')*10 + int(raw[1]-'0')
	minute := int(raw[3]-'0')*10 + int(raw[4]-'0')
	return hour < 24 && minute < 60
}

// ScheduleFilter describes query params for listing schedule slots.
type ScheduleFilter struct {
	CourseID     string
	TeacherID    string
	ClassroomID  string
	Semester     string
	AcademicYear int
	DayOfWeek    int
	Status       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// ScheduleConflict describes an existing slot that blocks a proposed one.
type ScheduleConflict struct {
	ScheduleID  string `json:"schedule_id"`
	CourseID    string `json:"course_id"`
	TeacherID   string `json:"teacher_id"`
	ClassroomID string `json:"classroom_id"`
	Semester    string `json:"semester"`
	DayOfWeek   int    `json:"day_of_week"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Dimension   string `json:"dimension"`
}

// ScheduleConflictError is returned when a proposed slot collides with a
// committed one on the classroom or teacher dimension.
type ScheduleConflictError struct {
	Type     string           `json:"type"`
	Message  string           `json:"message"`
	Conflict ScheduleConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
