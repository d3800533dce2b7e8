package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-grading/internal/dto"
	"github.com/noah-isme/sma-adp-grading/internal/models"
	appErrors "github.com/noah-isme/sma-adp-grading/pkg/errors"
	"github.com/noah-isme/sma-adp-grading/pkg/jobs"
)

// RecomputeJobType tags jobs that refresh a student's grades after grading.
const RecomputeJobType = "grade.recompute"

// RecomputeRequest is the payload of a recompute job.
type RecomputeRequest struct {
	StudentID    string
	AssessmentID string
}

type submissionGrader interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	SaveGrade(ctx context.Context, submission *models.Submission) error
}

type subjectTermCalculator interface {
	CalculateSubjectTermGrade(ctx context.Context, subjectID, termID, studentID string) (*models.TermGrade, error)
}

type cumulativeCalculator interface {
	CalculateCumulativeGrade(ctx context.Context, gradeBookID, studentID, termID string) (*models.CumulativeGrade, error)
}

type studentGradeBookFinder interface {
	FindForStudent(ctx context.Context, studentID, classGroupID string) (*models.GradeBook, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// RecomputeService stores submission grades and refreshes the dependent term
// and cumulative grades in the background.
type RecomputeService struct {
	submissions submissionGrader
	assessments assessmentReader
	subjects    subjectReader
	settings    settingsSource
	terms       subjectTermCalculator
	cumulative  cumulativeCalculator
	gradeBooks  studentGradeBookFinder
	queue       jobEnqueuer
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRecomputeService constructs the service. The queue can be attached later
// with SetQueue since the queue itself needs HandleJob.
func NewRecomputeService(submissions submissionGrader, assessments assessmentReader, subjects subjectReader, settings settingsSource, terms subjectTermCalculator, cumulative cumulativeCalculator, gradeBooks studentGradeBookFinder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RecomputeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecomputeService{
		submissions: submissions,
		assessments: assessments,
		subjects:    subjects,
		settings:    settings,
		terms:       terms,
		cumulative:  cumulative,
		gradeBooks:  gradeBooks,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// SetQueue attaches the queue recompute jobs are sent to.
func (s *RecomputeService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// GradeSubmission records marks or rubric scores on a submission and
// schedules a recompute for the student.
func (s *RecomputeService) GradeSubmission(ctx context.Context, submissionID string, req dto.GradeSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.ObtainedMarks == nil && len(req.RubricScores) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "obtainedMarks or rubricScores is required")
	}

	submission, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Internal(err, "failed to load submission")
	}

	submission.ObtainedMarks = req.ObtainedMarks
	submission.TotalMarks = req.TotalMarks
	submission.RubricScores = models.RubricScores(req.RubricScores)
	if err := s.submissions.SaveGrade(ctx, submission); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Internal(err, "failed to save grade")
	}

	if s.queue == nil {
		s.logger.Warn("recompute queue not configured", zap.String("submission_id", submissionID))
		return submission, nil
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Key:     submission.StudentID,
		Type:    RecomputeJobType,
		Payload: RecomputeRequest{StudentID: submission.StudentID, AssessmentID: submission.AssessmentID},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("enqueue recompute failed", zap.String("submission_id", submissionID), zap.Error(err))
		s.metrics.RecordRecomputeJob("enqueue_failed")
	}
	return submission, nil
}

// HandleJob recomputes the subject term grade containing the graded
// assessment and then the student's cumulative grade. Missing data is
// dropped rather than retried.
func (s *RecomputeService) HandleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(RecomputeRequest)
	if !ok {
		s.metrics.RecordRecomputeJob("invalid")
		return nil
	}
	err := s.recompute(ctx, req)
	switch {
	case err == nil:
		s.metrics.RecordRecomputeJob("success")
		return nil
	case errors.Is(err, appErrors.ErrNotFound), errors.Is(err, appErrors.ErrInvalidState):
		s.logger.Warn("recompute dropped", zap.String("job_id", job.ID), zap.String("student_id", req.StudentID), zap.Error(err))
		s.metrics.RecordRecomputeJob("dropped")
		return nil
	default:
		s.metrics.RecordRecomputeJob("error")
		return err
	}
}

func (s *RecomputeService) recompute(ctx context.Context, req RecomputeRequest) error {
	assessment, err := s.assessments.FindByID(ctx, req.AssessmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return fmt.Errorf("load assessment: %w", err)
	}
	subject, err := s.subjects.FindByID(ctx, assessment.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return fmt.Errorf("load subject: %w", err)
	}
	structure, err := s.settings.ResolveTermStructure(ctx, subject.ClassGroupID)
	if err != nil {
		return err
	}
	termID, ok := termForAssessment(*structure, *assessment)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "assessment is outside every assessment period")
	}

	if _, err := s.terms.CalculateSubjectTermGrade(ctx, subject.ID, termID, req.StudentID); err != nil {
		return err
	}
	book, err := s.gradeBooks.FindForStudent(ctx, req.StudentID, subject.ClassGroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("locate grade book: %w", err)
	}
	_, err = s.cumulative.CalculateCumulativeGrade(ctx, book.ID, req.StudentID, termID)
	return err
}

// termForAssessment returns the term owning the assessment's period, falling
// back to the period whose dates contain the assessment's creation time.
func termForAssessment(structure models.TermStructure, assessment models.Assessment) (string, bool) {
	if assessment.PeriodID != nil {
		if _, term, ok := structure.FindPeriod(*assessment.PeriodID); ok {
			return term.ID, true
		}
	}
	at := assessment.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	for _, term := range structure.Terms {
		for _, period := range term.Periods {
			if period.Contains(at) {
				return term.ID, true
			}
		}
	}
	return "", false
}
