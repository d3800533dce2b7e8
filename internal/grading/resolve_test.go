package grading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func programTerms() models.TermStructure {
	return models.TermStructure{
		ProgramID: "prog-1",
		Terms: []models.Term{
			{ID: "term-a", Name: "Term A", Weight: 1, StartDate: day(1, 8), EndDate: day(3, 29), Periods: []models.AssessmentPeriod{
				{ID: "pa-1", TermID: "term-a", Weight: 1, StartDate: day(1, 8), EndDate: day(2, 16)},
				{ID: "pa-2", TermID: "term-a", Weight: 2, StartDate: day(2, 19), EndDate: day(3, 29)},
			}},
			{ID: "term-b", Name: "Term B", Weight: 1, StartDate: day(4, 15), EndDate: day(6, 28), Periods: []models.AssessmentPeriod{
				{ID: "pb-1", TermID: "term-b", Weight: 1, StartDate: day(4, 15), EndDate: day(6, 28)},
			}},
		},
	}
}

func TestResolveWithoutOverrideReturnsBase(t *testing.T) {
	base := programTerms()
	resolved := Resolved[models.TermStructure, models.TermStructureOverride]{Base: base}.Resolve()
	assert.Equal(t, base, resolved)
}

func TestTermOverrideReplacesOnlyMatchingTerm(t *testing.T) {
	start, end := day(1, 15), day(4, 5)
	periodWeight := 3.0
	override := models.TermStructureOverride{Terms: []models.TermOverride{{
		TermID:    "term-a",
		StartDate: &start,
		EndDate:   &end,
		Periods:   []models.PeriodOverride{{PeriodID: "pa-2", Weight: &periodWeight}},
	}}}
	base := programTerms()

	resolved := Resolved[models.TermStructure, models.TermStructureOverride]{Base: base, Override: &override}.Resolve()

	termA, ok := resolved.FindTerm("term-a")
	require.True(t, ok)
	assert.Equal(t, start, termA.StartDate)
	assert.Equal(t, end, termA.EndDate)
	assert.Equal(t, "Term A", termA.Name)
	assert.Equal(t, 1.0, termA.Periods[0].Weight)
	assert.Equal(t, 3.0, termA.Periods[1].Weight)

	termB, ok := resolved.FindTerm("term-b")
	require.True(t, ok)
	assert.Equal(t, base.Terms[1], termB)

	assert.Equal(t, day(1, 8), base.Terms[0].StartDate, "base must not be mutated")
	assert.Equal(t, 2.0, base.Terms[0].Periods[1].Weight, "base periods must not be mutated")
}

func TestAssessmentOverrideKeepsUntouchedFields(t *testing.T) {
	base := models.AssessmentSystem{
		ID:   "sys-1",
		Name: "Program default",
		Type: models.AssessmentTypeCGPA,
		Config: models.AssessmentConfig{
			GradePoints: []models.GradeBand{{Grade: "A", MinPercentage: 80, GradePoint: 4}},
			Weightage:   map[string]float64{"exam": 2, "quiz": 1},
		},
	}
	threshold := 60.0
	override := models.AssessmentSystemOverride{PassingThreshold: &threshold, Weightage: map[string]float64{"quiz": 0.5}}

	resolved := Resolved[models.AssessmentSystem, models.AssessmentSystemOverride]{Base: base, Override: &override}.Resolve()

	assert.Equal(t, models.AssessmentTypeCGPA, resolved.Type)
	assert.Equal(t, base.Config.GradePoints, resolved.Config.GradePoints)
	assert.Equal(t, 60.0, resolved.Threshold(50))
	assert.Equal(t, map[string]float64{"exam": 2, "quiz": 0.5}, resolved.Config.Weightage)
	assert.Equal(t, map[string]float64{"exam": 2, "quiz": 1}, base.Config.Weightage)
	assert.Nil(t, base.PassingThreshold)
}

func TestValidateTermStructure(t *testing.T) {
	assert.NoError(t, ValidateTermStructure(programTerms()))

	broken := programTerms()
	broken.Terms[0].EndDate = broken.Terms[0].StartDate
	assert.Error(t, ValidateTermStructure(broken))

	broken = programTerms()
	broken.Terms[1].Periods[0].Weight = -1
	assert.Error(t, ValidateTermStructure(broken))
}
