package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// GradeStatus represents the lifecycle state of a grade record.
type GradeStatus string

const (
	// GradeStatusPending marks a record created from a selection with no scores yet.
	GradeStatusPending GradeStatus = "pending"
	// GradeStatusRecorded marks a record with at least one component entered.
	GradeStatusRecorded GradeStatus = "recorded"
	// GradeStatusPublished locks a record for audit; published records are immutable.
	GradeStatusPublished GradeStatus = "published"
)

// GradeRecord is the scored outcome of one selection. Component scores stay
// nil until entered; ComputedScore, GradePoint and LetterLevel are derived
// and remain nil while any required component is missing.
type GradeRecord struct {
	ID            string      `db:"id" json:"id"`
	SelectionID   string      `db:"selection_id" json:"selection_id"`
	StudentID     string      `db:"student_id" json:"student_id"`
	CourseID      string      `db:"course_id" json:"course_id"`
	ScheduleID    string      `db:"schedule_id" json:"schedule_id"`
	Semester      string      `db:"semester" json:"semester"`
	RegularScore  *float64    `db:"regular_score" json:"regular_score,omitempty"`
	MidtermScore  *float64    `db:"midterm_score" json:"midterm_score,omitempty"`
	FinalScore    *float64    `db:"final_score" json:"final_score,omitempty"`
	ComputedScore *float64    `db:"computed_score" json:"computed_score,omitempty"`
	GradePoint    *float64    `db:"grade_point" json:"grade_point,omitempty"`
	LetterLevel   *string     `db:"letter_level" json:"letter_level,omitempty"`
	IsMakeup      bool        `db:"is_makeup" json:"is_makeup"`
	IsRetake      bool        `db:"is_retake" json:"is_retake"`
	Status        GradeStatus `db:"status" json:"status"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// GradeFilter describes query params for listing grade records.
type GradeFilter struct {
	StudentID  string
	CourseID   string
	ScheduleID string
	Semester   string
	Status     string
	Page       int
	PageSize   int
}

// GradeWeights are the component weights applied to regular, midterm and
// final scores when deriving the computed score.
type GradeWeights struct {
	Regular float64 `json:"regular"`
	Midterm float64 `json:"midterm"`
	Final   float64 `json:"final"`
}

// Validate requires non-negative weights summing to 1.
func (w GradeWeights) Validate() error {
	if w.Regular < 0 || w.Midterm < 0 || w.Final < 0 {
		return fmt.Errorf("grade weights must be non-negative")
	}
	if math.Abs(w.Regular+w.Midterm+w.Final-1.0) > 1e-9 {
		return fmt.Errorf("grade weights must sum to 1.0, got %g", w.Regular+w.Midterm+w.Final)
	}
	return nil
}

// GradeTier maps a minimum score to a grade point and letter.
type GradeTier struct {
	MinScore   float64 `json:"min_score"`
	GradePoint float64 `json:"grade_point"`
	Letter     string  `json:"letter"`
}

// GradeScale is an ordered list of tiers, highest threshold first.
type GradeScale []GradeTier

// Validate requires a total, monotonic scale: thresholds strictly descending
// down to 0 so every non-negative score maps to exactly one tier, and grade
// points never increasing as thresholds decrease.
func (s GradeScale) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("grade scale is empty")
	}
	for i, tier := range s {
		if tier.Letter == "" {
			return fmt.Errorf("grade scale tier %d has no letter", i)
		}
		if i == 0 {
			continue
		}
		if tier.MinScore >= s[i-1].MinScore {
			return fmt.Errorf("grade scale thresholds must be strictly descending")
		}
		if tier.GradePoint > s[i-1].GradePoint {
			return fmt.Errorf("grade scale points must be monotonic")
		}
	}
	if s[len(s)-1].MinScore != 0 {
		return fmt.Errorf("grade scale must end at threshold 0")
	}
	return nil
}

// Lookup resolves a score to its tier by descending threshold.
func (s GradeScale) Lookup(score float64) (float64, string) {
	for _, tier := range s {
		if score >= tier.MinScore {
			return tier.GradePoint, tier.Letter
		}
	}
	last := s[len(s)-1]
	return last.GradePoint, last.Letter
}

// ParseGradeScale parses a "min:point:letter,..." spec into a validated scale.
func ParseGradeScale(raw string) (GradeScale, error) {
	parts := strings.Split(raw, ",")
	scale := make(GradeScale, 0, len(parts))
	for _, part := range parts {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed grade scale tier %q", part)
		}
		minScore, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed grade scale threshold %q: %w", fields[0], err)
		}
		point, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed grade point %q: %w", fields[1], err)
		}
		scale = append(scale, GradeTier{MinScore: minScore, GradePoint: point, Letter: strings.TrimSpace(fields[2])})
	}
	if err := scale.Validate(); err != nil {
		return nil, err
	}
	return scale, nil
}
