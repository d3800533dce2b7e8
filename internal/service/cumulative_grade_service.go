package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-adp-grading/internal/grading"
	"github.com/noah-isme/sma-adp-grading/internal/models"
	appErrors "github.com/noah-isme/sma-adp-grading/pkg/errors"
)

type gradeBookReader interface {
	FindByID(ctx context.Context, id string) (*models.GradeBook, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindByGradeBook(ctx context.Context, gradeBookID string) (*models.Class, error)
}

type subjectLister interface {
	ListByClassGroup(ctx context.Context, classGroupID string) ([]models.Subject, error)
}

type termCalculator interface {
	ComputeForGradeBook(ctx context.Context, gradeBookID string, subject models.Subject, term models.Term, system models.AssessmentSystem, studentID string) (models.TermGrade, error)
}

type termResultRepo interface {
	Upsert(ctx context.Context, result *models.TermResult) error
	ListByStudent(ctx context.Context, gradeBookID, studentID string) ([]models.TermResult, error)
}

type activeEnrollmentReader interface {
	ListActiveStudentIDs(ctx context.Context, classID string) ([]string, error)
}

// BatchCumulativeResult holds the outcome of a batch run. Results lists the
// students that succeeded, in input order; Failed lists the skipped ids.
type BatchCumulativeResult struct {
	Results []models.CumulativeGrade
	Failed  []string
}

// CumulativeGradeService computes credit-weighted term GPAs and persists
// term results.
type CumulativeGradeService struct {
	gradeBooks  gradeBookReader
	classes     classReader
	subjects    subjectLister
	settings    settingsSource
	terms       termCalculator
	results     termResultRepo
	enrollments activeEnrollmentReader
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	batchSize   int
	batchPause  time.Duration
}

// NewCumulativeGradeService constructs the service.
func NewCumulativeGradeService(gradeBooks gradeBookReader, classes classReader, subjects subjectLister, settings settingsSource, terms termCalculator, results termResultRepo, enrollments activeEnrollmentReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger, batchSize int, batchPause time.Duration) *CumulativeGradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	if batchPause < 0 {
		batchPause = 0
	}
	return &CumulativeGradeService{
		gradeBooks:  gradeBooks,
		classes:     classes,
		subjects:    subjects,
		settings:    settings,
		terms:       terms,
		results:     results,
		enrollments: enrollments,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		batchSize:   batchSize,
		batchPause:  batchPause,
	}
}

// CalculateCumulativeGrade computes a student's GPA over every subject of the
// grade book's class group for a term and upserts the term result.
func (s *CumulativeGradeService) CalculateCumulativeGrade(ctx context.Context, gradeBookID, studentID, termID string) (result *models.CumulativeGrade, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveComputation(levelCumulative, start, err) }()

	class, err := s.classForGradeBook(ctx, gradeBookID)
	if err != nil {
		return nil, err
	}
	structure, err := s.settings.ResolveTermStructure(ctx, class.ClassGroupID)
	if err != nil {
		return nil, err
	}
	term, ok := structure.FindTerm(termID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
	}
	system, err := s.settings.ResolveAssessmentSystem(ctx, class.ClassGroupID)
	if err != nil {
		return nil, err
	}
	subjects, err := s.subjects.ListByClassGroup(ctx, class.ClassGroupID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load subjects")
	}

	result = &models.CumulativeGrade{
		GradeBookID:   gradeBookID,
		StudentID:     studentID,
		TermID:        termID,
		SubjectGrades: make(map[string]models.TermGrade, len(subjects)),
	}
	var totalPoints float64
	for _, subject := range subjects {
		grade, err := s.terms.ComputeForGradeBook(ctx, gradeBookID, subject, term, *system, studentID)
		if err != nil {
			return nil, err
		}
		result.SubjectGrades[subject.ID] = grade
		totalPoints += grade.GradePoints * grade.Credits
		result.TotalCredits += grade.Credits
		if grade.IsPassing {
			result.EarnedCredits += grade.Credits
		}
	}
	if result.TotalCredits > 0 {
		result.GPA = grading.Round(totalPoints / result.TotalCredits)
	}

	record := &models.TermResult{
		StudentID:     studentID,
		TermID:        termID,
		GradeBookID:   gradeBookID,
		GPA:           result.GPA,
		TotalCredits:  result.TotalCredits,
		EarnedCredits: result.EarnedCredits,
	}
	if err := s.results.Upsert(ctx, record); err != nil {
		return nil, appErrors.Internal(err, "failed to persist term result")
	}
	s.cache.Invalidate(ctx, reportCardCachePattern(gradeBookID, studentID))
	return result, nil
}

// CalculateCumulativeBatch runs CalculateCumulativeGrade for many students.
// An empty studentIDs selects the active enrollments of the grade book's
// class. Students run concurrently within a chunk; a failing student is
// logged and listed in Failed without affecting the others. Cancellation
// is honoured between chunks.
func (s *CumulativeGradeService) CalculateCumulativeBatch(ctx context.Context, gradeBookID, termID string, studentIDs []string) (*BatchCumulativeResult, error) {
	class, err := s.classForGradeBook(ctx, gradeBookID)
	if err != nil {
		return nil, err
	}
	if len(studentIDs) == 0 {
		studentIDs, err = s.enrollments.ListActiveStudentIDs(ctx, class.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load enrollments")
		}
	}
	ids := uniqueIDs(studentIDs)

	out := &BatchCumulativeResult{Results: []models.CumulativeGrade{}, Failed: []string{}}
	slots := make([]*models.CumulativeGrade, len(ids))
	var mu sync.Mutex
	failed := make(map[string]bool)

	for start := 0; start < len(ids); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			collect(out, ids, slots, failed)
			return out, err
		}
		end := start + s.batchSize
		if end > len(ids) {
			end = len(ids)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				grade, err := s.CalculateCumulativeGrade(ctx, gradeBookID, ids[i], termID)
				if err != nil {
					s.logger.Warn("cumulative grade failed, student skipped",
						zap.String("gradebook_id", gradeBookID), zap.String("student_id", ids[i]), zap.String("term_id", termID), zap.Error(err))
					s.metrics.RecordBatchFailure()
					mu.Lock()
					failed[ids[i]] = true
					mu.Unlock()
					return nil
				}
				slots[i] = grade
				return nil
			})
		}
		_ = g.Wait()

		if end < len(ids) && s.batchPause > 0 {
			timer := time.NewTimer(s.batchPause)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}

	collect(out, ids, slots, failed)
	s.logger.Info("cumulative batch finished",
		zap.String("gradebook_id", gradeBookID), zap.String("term_id", termID),
		zap.Int("succeeded", len(out.Results)), zap.Int("failed", len(out.Failed)))
	return out, nil
}

// CalculateAnnualGrade returns the term-weighted mean of a student's persisted
// term GPAs in a grade book. Results of terms no longer in the structure are
// ignored.
func (s *CumulativeGradeService) CalculateAnnualGrade(ctx context.Context, gradeBookID, studentID string) (*models.AnnualGrade, error) {
	class, err := s.classForGradeBook(ctx, gradeBookID)
	if err != nil {
		return nil, err
	}
	structure, err := s.settings.ResolveTermStructure(ctx, class.ClassGroupID)
	if err != nil {
		return nil, err
	}
	results, err := s.results.ListByStudent(ctx, gradeBookID, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load term results")
	}

	annual := &models.AnnualGrade{GradeBookID: gradeBookID, StudentID: studentID, TermGPAs: make(map[string]float64, len(results))}
	var acc grading.Accumulator
	for _, result := range results {
		term, ok := structure.FindTerm(result.TermID)
		if !ok {
			continue
		}
		annual.TermGPAs[result.TermID] = result.GPA
		acc.Add(result.GPA, term.Weight)
	}
	annual.GPA = grading.Round(acc.Mean())
	return annual, nil
}

func (s *CumulativeGradeService) classForGradeBook(ctx context.Context, gradeBookID string) (*models.Class, error) {
	if _, err := s.gradeBooks.FindByID(ctx, gradeBookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade book not found")
		}
		return nil, appErrors.Internal(err, "failed to load grade book")
	}
	class, err := s.classes.FindByGradeBook(ctx, gradeBookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Internal(err, "failed to load class")
	}
	return class, nil
}

func collect(out *BatchCumulativeResult, ids []string, slots []*models.CumulativeGrade, failed map[string]bool) {
	for i, id := range ids {
		switch {
		case slots[i] != nil:
			out.Results = append(out.Results, *slots[i])
		case failed[id]:
			out.Failed = append(out.Failed, id)
		}
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
