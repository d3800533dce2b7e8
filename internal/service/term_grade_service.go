package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-grading/internal/grading"
	"github.com/noah-isme/sma-adp-grading/internal/models"
	appErrors "github.com/noah-isme/sma-adp-grading/pkg/errors"
)

type periodCalculator interface {
	Compute(ctx context.Context, subject models.Subject, period models.AssessmentPeriod, system models.AssessmentSystem, studentID string, opts PeriodGradeOptions) (models.PeriodGrade, error)
	DefaultOptions() PeriodGradeOptions
}

type studentGradeWriter interface {
	FindForStudent(ctx context.Context, studentID, classGroupID string) (*models.GradeBook, error)
	UpsertStudentTermGrade(ctx context.Context, gradeBookID, subjectID, studentID, termID string, grade models.TermGrade) error
}

type gradeHistoryWriter interface {
	Append(ctx context.Context, entry *models.GradeHistory) error
}

// TermGradeService aggregates the assessment periods of a term into a
// subject term grade and persists it to the student's grade record.
type TermGradeService struct {
	subjects         subjectReader
	settings         settingsSource
	periods          periodCalculator
	grades           studentGradeWriter
	history          gradeHistoryWriter
	cache            *CacheService
	metrics          *MetricsService
	logger           *zap.Logger
	defaultThreshold float64
}

// NewTermGradeService constructs the service.
func NewTermGradeService(subjects subjectReader, settings settingsSource, periods periodCalculator, grades studentGradeWriter, history gradeHistoryWriter, cache *CacheService, metrics *MetricsService, logger *zap.Logger, defaultThreshold float64) *TermGradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultThreshold <= 0 {
		defaultThreshold = models.DefaultPassingThreshold
	}
	return &TermGradeService{
		subjects:         subjects,
		settings:         settings,
		periods:          periods,
		grades:           grades,
		history:          history,
		cache:            cache,
		metrics:          metrics,
		logger:           logger,
		defaultThreshold: defaultThreshold,
	}
}

// CalculateSubjectTermGrade computes and persists a student's term grade for
// a subject. The grade is written to the grade book of the class the student
// is enrolled in; without one, the grade is returned unsaved but still
// recorded in the grade history.
func (s *TermGradeService) CalculateSubjectTermGrade(ctx context.Context, subjectID, termID, studentID string) (*models.TermGrade, error) {
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
	term, ok := structure.FindTerm(termID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
	}
	system, err := s.settings.ResolveAssessmentSystem(ctx, subject.ClassGroupID)
	if err != nil {
		return nil, err
	}

	book, err := s.grades.FindForStudent(ctx, studentID, subject.ClassGroupID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to locate student grade book")
	}
	gradeBookID := ""
	if book != nil {
		gradeBookID = book.ID
	} else {
		s.logger.Warn("student has no grade book, term grade not persisted",
			zap.String("student_id", studentID), zap.String("subject_id", subjectID), zap.String("term_id", termID))
	}

	grade, err := s.ComputeForGradeBook(ctx, gradeBookID, *subject, term, *system, studentID)
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

// ComputeForGradeBook computes the term grade for resolved inputs and appends
// a history entry. When gradeBookID is set the grade is persisted first and
// the student's cached report cards are dropped.
func (s *TermGradeService) ComputeForGradeBook(ctx context.Context, gradeBookID string, subject models.Subject, term models.Term, system models.AssessmentSystem, studentID string) (grade models.TermGrade, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveComputation(levelTerm, start, err) }()

	if len(term.Periods) == 0 {
		return grade, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("term %s has no assessment periods", term.ID))
	}

	opts := s.periods.DefaultOptions()
	grade.PeriodGrades = make(map[string]models.PeriodGrade, len(term.Periods))
	var acc grading.Accumulator
	for _, period := range term.Periods {
		pg, err := s.periods.Compute(ctx, subject, period, system, studentID, opts)
		if err != nil {
			return grade, err
		}
		pg.Weight = period.Weight
		grade.PeriodGrades[period.ID] = pg
		grade.TotalMarks += pg.TotalMarks
		acc.Add(pg.Percentage, period.Weight)
	}

	grade.TotalMarks = grading.Round(grade.TotalMarks)
	grade.Percentage = grading.Round(acc.Mean())
	grade.FinalGrade = grade.Percentage
	grade.Credits = subject.CreditValue()
	grade.GradePoints, grade.Grade = grading.CalculateGPA(grade.Percentage, system.GradePointTable())
	grade.IsPassing = grading.IsPassing(grade.Percentage, system.Threshold(s.defaultThreshold))

	if gradeBookID != "" {
		if err := s.grades.UpsertStudentTermGrade(ctx, gradeBookID, subject.ID, studentID, term.ID, grade); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return grade, appErrors.Clone(appErrors.ErrNotFound, "grade book has no record for subject")
			}
			return grade, appErrors.Internal(err, "failed to persist term grade")
		}
		s.cache.Invalidate(ctx, reportCardCachePattern(gradeBookID, studentID))
	}

	entry := &models.GradeHistory{
		StudentID:  studentID,
		SubjectID:  subject.ID,
		TermID:     term.ID,
		FinalGrade: grade.FinalGrade,
		Actor:      models.GradeHistoryActorSystem,
		Reason:     "term grade recalculated",
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Warn("append grade history failed", zap.String("student_id", studentID), zap.String("subject_id", subject.ID), zap.Error(err))
	}
	return grade, nil
}
