package models

import (
	"database/sql/driver"
	"time"
)

// Assessment is a gradable unit of a subject, scoped to an assessment period.
// ScoringType, TotalMarks and Rubric override the effective assessment system
// when set.
type Assessment struct {
	ID          string                `db:"id" json:"id"`
	SubjectID   string                `db:"subject_id" json:"subject_id"`
	PeriodID    *string               `db:"period_id" json:"period_id,omitempty"`
	Title       string                `db:"title" json:"title"`
	Category    string                `db:"category" json:"category"`
	ScoringType *AssessmentSystemType `db:"scoring_type" json:"scoring_type,omitempty"`
	TotalMarks  *float64              `db:"total_marks" json:"total_marks,omitempty"`
	Rubric      RubricCriteria        `db:"rubric" json:"rubric,omitempty"`
	IsRequired  bool                  `db:"is_required" json:"is_required"`
	CreatedAt   time.Time             `db:"created_at" json:"created_at"`
}

// RubricScores maps criterion id to awarded points.
type RubricScores map[string]float64

// Scan implements sql.Scanner.
func (r *RubricScores) Scan(src interface{}) error { return scanJSON(src, r) }

// Value implements driver.Valuer.
func (r RubricScores) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return valueJSON(map[string]float64(r))
}

// Submission is one student's attempt at an assessment. GradedAt is nil
// until the submission has been graded.
type Submission struct {
	ID            string       `db:"id" json:"id"`
	AssessmentID  string       `db:"assessment_id" json:"assessment_id"`
	StudentID     string       `db:"student_id" json:"student_id"`
	ObtainedMarks *float64     `db:"obtained_marks" json:"obtained_marks,omitempty"`
	TotalMarks    *float64     `db:"total_marks" json:"total_marks,omitempty"`
	RubricScores  RubricScores `db:"rubric_scores" json:"rubric_scores,omitempty"`
	GradedAt      *time.Time   `db:"graded_at" json:"graded_at,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// IsGraded reports whether the submission carries a grade.
func (s Submission) IsGraded() bool {
	return s.GradedAt != nil
}
