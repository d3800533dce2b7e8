package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-grading/internal/grading"
	"github.com/noah-isme/sma-adp-grading/internal/models"
	appErrors "github.com/noah-isme/sma-adp-grading/pkg/errors"
)

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type assessmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	ListForPeriod(ctx context.Context, subjectID string, period models.AssessmentPeriod) ([]models.Assessment, error)
}

type submissionReader interface {
	ListGradedForStudent(ctx context.Context, studentID string, assessmentIDs []string) ([]models.Submission, error)
}

type settingsSource interface {
	ResolveAssessmentSystem(ctx context.Context, classGroupID string) (*models.AssessmentSystem, error)
	ResolveTermStructure(ctx context.Context, classGroupID string) (*models.TermStructure, error)
}

// PeriodGradeOptions tunes a period computation.
type PeriodGradeOptions struct {
	// RequireAllAssessments fails the period when a required assessment has
	// no graded submission.
	RequireAllAssessments bool
}

// PeriodGradeService aggregates a student's graded submissions inside one
// assessment period.
type PeriodGradeService struct {
	subjects         subjectReader
	assessments      assessmentReader
	submissions      submissionReader
	settings         settingsSource
	metrics          *MetricsService
	logger           *zap.Logger
	defaultThreshold float64
	requireAll       bool
}

// NewPeriodGradeService constructs the service. defaultThreshold applies to
// systems without a passing threshold; requireAll is the default
// partial-completion policy.
func NewPeriodGradeService(subjects subjectReader, assessments assessmentReader, submissions submissionReader, settings settingsSource, metrics *MetricsService, logger *zap.Logger, defaultThreshold float64, requireAll bool) *PeriodGradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultThreshold <= 0 {
		defaultThreshold = models.DefaultPassingThreshold
	}
	return &PeriodGradeService{
		subjects:         subjects,
		assessments:      assessments,
		submissions:      submissions,
		settings:         settings,
		metrics:          metrics,
		logger:           logger,
		defaultThreshold: defaultThreshold,
		requireAll:       requireAll,
	}
}

// DefaultOptions returns the configured options.
func (s *PeriodGradeService) DefaultOptions() PeriodGradeOptions {
	return PeriodGradeOptions{RequireAllAssessments: s.requireAll}
}

// CalculatePeriodGrade computes a student's grade for one assessment period
// of a subject using the configured options.
func (s *PeriodGradeService) CalculatePeriodGrade(ctx context.Context, subjectID, periodID, studentID string) (*models.PeriodGrade, error) {
	return s.CalculatePeriodGradeWithOptions(ctx, subjectID, periodID, studentID, s.DefaultOptions())
}

// CalculatePeriodGradeWithOptions is CalculatePeriodGrade with an explicit
// partial-completion policy.
func (s *PeriodGradeService) CalculatePeriodGradeWithOptions(ctx context.Context, subjectID, periodID, studentID string, opts PeriodGradeOptions) (*models.PeriodGrade, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Internal(err, "failed to load subject")
	}
	structure, err := s.settings.ResolveTermStructure(ctx, subject.ClassGroupID)
	if err != nil {
		return nil, err
	}
	period, _, ok := structure.FindPeriod(periodID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment period not found")
	}
	system, err := s.settings.ResolveAssessmentSystem(ctx, subject.ClassGroupID)
	if err != nil {
		return nil, err
	}

	grade, err := s.Compute(ctx, *subject, period, *system, studentID, opts)
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

// Compute aggregates the period for already resolved inputs. A period with
// no graded submissions yields a zero grade carrying only the period weight.
func (s *PeriodGradeService) Compute(ctx context.Context, subject models.Subject, period models.AssessmentPeriod, system models.AssessmentSystem, studentID string, opts PeriodGradeOptions) (grade models.PeriodGrade, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveComputation(levelPeriod, start, err) }()

	grade = models.PeriodGrade{Weight: period.Weight}

	assessments, err := s.assessments.ListForPeriod(ctx, subject.ID, period)
	if err != nil {
		return grade, appErrors.Internal(err, "failed to load period assessments")
	}
	if len(assessments) == 0 {
		return grade, nil
	}
	ids := make([]string, len(assessments))
	for i, a := range assessments {
		ids[i] = a.ID
	}
	submissions, err := s.submissions.ListGradedForStudent(ctx, studentID, ids)
	if err != nil {
		return grade, appErrors.Internal(err, "failed to load graded submissions")
	}

	latest := make(map[string]models.Submission, len(submissions))
	for _, sub := range submissions {
		if !sub.IsGraded() {
			continue
		}
		latest[sub.AssessmentID] = sub
	}
	if len(latest) == 0 {
		return grade, nil
	}

	var acc grading.Accumulator
	missingRequired := false
	for _, assessment := range assessments {
		sub, ok := latest[assessment.ID]
		if !ok {
			if assessment.IsRequired {
				missingRequired = true
			}
			continue
		}
		cfg := grading.ScoringConfigFor(assessment, system)
		acc.Add(grading.Score(&sub, cfg), system.CategoryWeight(assessment.Category))

		if cfg.Type == models.AssessmentTypeRubric {
			awarded, possible := grading.RubricPoints(sub.RubricScores, cfg.Criteria)
			grade.ObtainedMarks += awarded
			grade.TotalMarks += possible
			continue
		}
		obtained, total := grading.Marks(&sub, cfg)
		grade.ObtainedMarks += obtained
		grade.TotalMarks += total
	}

	grade.ObtainedMarks = grading.Round(grade.ObtainedMarks)
	grade.TotalMarks = grading.Round(grade.TotalMarks)
	grade.Percentage = grading.Round(acc.Mean())
	grade.GradePoints, grade.Grade = grading.CalculateGPA(grade.Percentage, system.GradePointTable())
	grade.IsPassing = grading.IsPassing(grade.Percentage, system.Threshold(s.defaultThreshold))
	if opts.RequireAllAssessments && missingRequired {
		grade.IsPassing = false
	}
	return grade, nil
}
