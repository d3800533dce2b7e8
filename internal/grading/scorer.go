// Package grading holds the side-effect free parts of grade computation:
// submission scoring, weighted aggregation, grade point mapping and the
// settings override merge.
package grading

import (
	"math"
	"sort"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

// ScoringConfig is the scoring scheme applied to one assessment's submissions.
type ScoringConfig struct {
	Type       models.AssessmentSystemType
	TotalMarks float64
	Criteria   []models.RubricCriterion
}

// ScoringConfigFor resolves the scoring scheme of an assessment against the
// effective assessment system. Assessment-level fields win.
func ScoringConfigFor(assessment models.Assessment, system models.AssessmentSystem) ScoringConfig {
	cfg := ScoringConfig{Type: system.Type, TotalMarks: system.Config.MaxMarks, Criteria: system.Config.Criteria}
	if assessment.ScoringType != nil && *assessment.ScoringType != "" {
		cfg.Type = *assessment.ScoringType
	}
	if assessment.TotalMarks != nil {
		cfg.TotalMarks = *assessment.TotalMarks
	}
	if len(assessment.Rubric) > 0 {
		cfg.Criteria = assessment.Rubric
	}
	return cfg
}

// Score converts a graded submission into a 0..100 percentage. Missing
// inputs score 0. Out-of-range marks are not clamped.
func Score(submission *models.Submission, cfg ScoringConfig) float64 {
	if submission == nil {
		return 0
	}
	switch cfg.Type {
	case models.AssessmentTypeRubric:
		awarded, possible := RubricPoints(submission.RubricScores, cfg.Criteria)
		if possible == 0 {
			return 0
		}
		return awarded / possible * 100
	default:
		obtained, total := Marks(submission, cfg)
		if submission.ObtainedMarks == nil {
			return 0
		}
		return obtained / math.Max(1, total) * 100
	}
}

// Marks returns the obtained and total marks of a fixed-marks submission.
// The submission's own total wins over the configured one.
func Marks(submission *models.Submission, cfg ScoringConfig) (obtained, total float64) {
	if submission == nil {
		return 0, 0
	}
	if submission.ObtainedMarks != nil {
		obtained = *submission.ObtainedMarks
	}
	total = cfg.TotalMarks
	if submission.TotalMarks != nil {
		total = *submission.TotalMarks
	}
	return obtained, total
}

// RubricPoints sums awarded points and per-criterion maxima. Criteria the
// student was not scored on count as 0 awarded.
func RubricPoints(scores models.RubricScores, criteria []models.RubricCriterion) (awarded, possible float64) {
	for _, criterion := range criteria {
		awarded += scores[criterion.ID]
		possible += criterion.MaxPoints()
	}
	return awarded, possible
}

// DefaultGradePoints is the 4.0 scale used when a system has no table.
var DefaultGradePoints = []models.GradeBand{
	{Grade: "A", MinPercentage: 90, MaxPercentage: 100, GradePoint: 4.0},
	{Grade: "B", MinPercentage: 80, MaxPercentage: 89.99, GradePoint: 3.0},
	{Grade: "C", MinPercentage: 70, MaxPercentage: 79.99, GradePoint: 2.0},
	{Grade: "D", MinPercentage: 60, MaxPercentage: 69.99, GradePoint: 1.0},
	{Grade: "F", MinPercentage: 0, MaxPercentage: 59.99, GradePoint: 0},
}

// CalculateGPA maps a percentage to a grade point and letter through bands.
// The band with the highest minimum not above percentage wins. An empty
// table falls back to DefaultGradePoints.
func CalculateGPA(percentage float64, bands []models.GradeBand) (float64, string) {
	if len(bands) == 0 {
		bands = DefaultGradePoints
	}
	sorted := append([]models.GradeBand(nil), bands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPercentage > sorted[j].MinPercentage
	})
	for _, band := range sorted {
		if percentage >= band.MinPercentage {
			return band.GradePoint, band.Grade
		}
	}
	return 0, ""
}
