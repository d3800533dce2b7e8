package models

import (
	"database/sql/driver"
	"time"
)

// AssessmentSystemType tags the scoring scheme of an assessment system.
type AssessmentSystemType string

const (
	AssessmentTypeFixedMarks AssessmentSystemType = "FIXED_MARKS"
	AssessmentTypeRubric     AssessmentSystemType = "RUBRIC"
	AssessmentTypeCGPA       AssessmentSystemType = "CGPA"
)

// DefaultPassingThreshold applies when an assessment system configures none.
const DefaultPassingThreshold = 50.0

// GradeBand maps a percentage range to a letter and grade point.
type GradeBand struct {
	Grade         string  `json:"grade"`
	MinPercentage float64 `json:"min_percentage"`
	MaxPercentage float64 `json:"max_percentage"`
	GradePoint    float64 `json:"grade_point"`
}

// RubricLevel is one point-valued performance level of a criterion.
type RubricLevel struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// RubricCriterion is a named rubric row.
type RubricCriterion struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Levels []RubricLevel `json:"levels"`
}

// MaxPoints returns the highest level value of the criterion.
func (c RubricCriterion) MaxPoints() float64 {
	highest := 0.0
	for _, level := range c.Levels {
		if level.Points > highest {
			highest = level.Points
		}
	}
	return highest
}

// RubricCriteria is stored as a jsonb array.
type RubricCriteria []RubricCriterion

// Scan implements sql.Scanner.
func (r *RubricCriteria) Scan(src interface{}) error { return scanJSON(src, r) }

// Value implements driver.Valuer.
func (r RubricCriteria) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return valueJSON([]RubricCriterion(r))
}

// AssessmentConfig is the type-specific payload of an assessment system.
type AssessmentConfig struct {
	MaxMarks     float64            `json:"max_marks,omitempty"`
	PassingMarks float64            `json:"passing_marks,omitempty"`
	GradeBands   []GradeBand        `json:"grade_bands,omitempty"`
	Criteria     []RubricCriterion  `json:"criteria,omitempty"`
	GradePoints  []GradeBand        `json:"grade_points,omitempty"`
	Weightage    map[string]float64 `json:"weightage,omitempty"`
}

// Scan implements sql.Scanner.
func (c *AssessmentConfig) Scan(src interface{}) error { return scanJSON(src, c) }

// Value implements driver.Valuer.
func (c AssessmentConfig) Value() (driver.Value, error) { return valueJSON(c) }

// AssessmentSystem is an institution or program wide scoring scheme.
type AssessmentSystem struct {
	ID               string               `db:"id" json:"id"`
	Name             string               `db:"name" json:"name"`
	Type             AssessmentSystemType `db:"type" json:"type"`
	PassingThreshold *float64             `db:"passing_threshold" json:"passing_threshold,omitempty"`
	Config           AssessmentConfig     `db:"config" json:"config"`
	SourceID         *string              `db:"source_id" json:"source_id,omitempty"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `db:"updated_at" json:"updated_at"`
}

// Threshold returns the effective passing percentage. An explicit threshold
// wins; fixed-marks systems derive one from passing/max marks; otherwise
// fallback applies.
func (s AssessmentSystem) Threshold(fallback float64) float64 {
	if s.PassingThreshold != nil {
		return *s.PassingThreshold
	}
	if s.Config.MaxMarks > 0 && s.Config.PassingMarks > 0 {
		return s.Config.PassingMarks / s.Config.MaxMarks * 100
	}
	if fallback <= 0 {
		return DefaultPassingThreshold
	}
	return fallback
}

// CategoryWeight returns the weight of an assessment category, 1 when unset.
func (s AssessmentSystem) CategoryWeight(category string) float64 {
	if w, ok := s.Config.Weightage[category]; ok && w >= 0 {
		return w
	}
	return 1
}

// GradePointTable returns the bands used for percentage to grade point mapping.
func (s AssessmentSystem) GradePointTable() []GradeBand {
	if len(s.Config.GradePoints) > 0 {
		return s.Config.GradePoints
	}
	return s.Config.GradeBands
}
