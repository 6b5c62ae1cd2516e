package models

import "time"

// Student carries the fields the selection and grading core needs: the grade
// tag matched against selection periods, eligibility, and class membership
// for class averages.
type Student struct {
	ID        string    `db:"id" json:"id"`
	StudentNo string    `db:"student_no" json:"student_no"`
	Name      string    `db:"name" json:"name"`
	ClassID   string    `db:"class_id" json:"class_id"`
	GradeTag  string    `db:"grade_tag" json:"grade_tag"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
