package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ClassGroupAssessmentSettings is an optional class-group level override of
// the program's assessment system.
type ClassGroupAssessmentSettings struct {
	ID           string         `db:"id" json:"id"`
	ClassGroupID string         `db:"class_group_id" json:"class_group_id"`
	IsCustomized bool           `db:"is_customized" json:"is_customized"`
	Payload      types.JSONText `db:"payload" json:"payload,omitempty"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ClassGroupTermSettings is an optional class-group level override of the
// program's term structure.
type ClassGroupTermSettings struct {
	ID           string         `db:"id" json:"id"`
	ClassGroupID string         `db:"class_group_id" json:"class_group_id"`
	IsCustomized bool           `db:"is_customized" json:"is_customized"`
	Payload      types.JSONText `db:"payload" json:"payload,omitempty"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// AssessmentSystemOverride carries the fields a class group replaces. Nil
// fields keep the base value.
type AssessmentSystemOverride struct {
	Name             *string               `json:"name,omitempty"`
	Type             *AssessmentSystemType `json:"type,omitempty"`
	PassingThreshold *float64              `json:"passing_threshold,omitempty"`
	MaxMarks         *float64              `json:"max_marks,omitempty"`
	PassingMarks     *float64              `json:"passing_marks,omitempty"`
	GradeBands       []GradeBand           `json:"grade_bands,omitempty"`
	Criteria         []RubricCriterion     `json:"criteria,omitempty"`
	GradePoints      []GradeBand           `json:"grade_points,omitempty"`
	Weightage        map[string]float64    `json:"weightage,omitempty"`
}

// IsEmpty reports whether the override changes nothing.
func (o AssessmentSystemOverride) IsEmpty() bool {
	return o.Name == nil && o.Type == nil && o.PassingThreshold == nil &&
		o.MaxMarks == nil && o.PassingMarks == nil &&
		o.GradeBands == nil && o.Criteria == nil && o.GradePoints == nil && o.Weightage == nil
}

// Apply returns base with the override's fields written over it. Lists are
// replaced wholesale; weightage entries are merged per category.
func (o AssessmentSystemOverride) Apply(base AssessmentSystem) AssessmentSystem {
	out := base
	out.Config.GradeBands = append([]GradeBand(nil), base.Config.GradeBands...)
	out.Config.Criteria = append([]RubricCriterion(nil), base.Config.Criteria...)
	out.Config.GradePoints = append([]GradeBand(nil), base.Config.GradePoints...)
	out.Config.Weightage = make(map[string]float64, len(base.Config.Weightage)+len(o.Weightage))
	for k, v := range base.Config.Weightage {
		out.Config.Weightage[k] = v
	}

	if o.Name != nil {
		out.Name = *o.Name
	}
	if o.Type != nil {
		out.Type = *o.Type
	}
	if o.PassingThreshold != nil {
		threshold := *o.PassingThreshold
		out.PassingThreshold = &threshold
	}
	if o.MaxMarks != nil {
		out.Config.MaxMarks = *o.MaxMarks
	}
	if o.PassingMarks != nil {
		out.Config.PassingMarks = *o.PassingMarks
	}
	if o.GradeBands != nil {
		out.Config.GradeBands = append([]GradeBand(nil), o.GradeBands...)
	}
	if o.Criteria != nil {
		out.Config.Criteria = append([]RubricCriterion(nil), o.Criteria...)
	}
	if o.GradePoints != nil {
		out.Config.GradePoints = append([]GradeBand(nil), o.GradePoints...)
	}
	for k, v := range o.Weightage {
		out.Config.Weightage[k] = v
	}
	return out
}

// PeriodOverride replaces fields of one assessment period, matched by id.
type PeriodOverride struct {
	PeriodID  string     `json:"period_id" validate:"required"`
	Name      *string    `json:"name,omitempty"`
	Weight    *float64   `json:"weight,omitempty" validate:"omitempty,gte=0"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// TermOverride replaces fields of one term, matched by id.
type TermOverride struct {
	TermID    string           `json:"term_id" validate:"required"`
	Name      *string          `json:"name,omitempty"`
	Weight    *float64         `json:"weight,omitempty" validate:"omitempty,gte=0"`
	StartDate *time.Time       `json:"start_date,omitempty"`
	EndDate   *time.Time       `json:"end_date,omitempty"`
	Periods   []PeriodOverride `json:"periods,omitempty" validate:"dive"`
}

// TermStructureOverride lists per-term replacements. Terms not listed keep
// the program default.
type TermStructureOverride struct {
	Terms []TermOverride `json:"terms" validate:"dive"`
}

// IsEmpty reports whether the override changes nothing.
func (o TermStructureOverride) IsEmpty() bool {
	return len(o.Terms) == 0
}

// Apply returns a copy of base with matching terms and periods replaced
// field by field. Override entries naming unknown ids are ignored.
func (o TermStructureOverride) Apply(base TermStructure) TermStructure {
	out := base.Clone()
	byTerm := make(map[string]TermOverride, len(o.Terms))
	for _, term := range o.Terms {
		byTerm[term.TermID] = term
	}
	for i := range out.Terms {
		ov, ok := byTerm[out.Terms[i].ID]
		if !ok {
			continue
		}
		term := &out.Terms[i]
		if ov.Name != nil {
			term.Name = *ov.Name
		}
		if ov.Weight != nil {
			term.Weight = *ov.Weight
		}
		if ov.StartDate != nil {
			term.StartDate = *ov.StartDate
		}
		if ov.EndDate != nil {
			term.EndDate = *ov.EndDate
		}
		byPeriod := make(map[string]PeriodOverride, len(ov.Periods))
		for _, p := range ov.Periods {
			byPeriod[p.PeriodID] = p
		}
		for j := range term.Periods {
			pov, ok := byPeriod[term.Periods[j].ID]
			if !ok {
				continue
			}
			period := &term.Periods[j]
			if pov.Name != nil {
				period.Name = *pov.Name
			}
			if pov.Weight != nil {
				period.Weight = *pov.Weight
			}
			if pov.StartDate != nil {
				period.StartDate = *pov.StartDate
			}
			if pov.EndDate != nil {
				period.EndDate = *pov.EndDate
			}
		}
	}
	return out
}
