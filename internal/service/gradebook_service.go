package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-grading/internal/dto"
	"github.com/noah-isme/sma-adp-grading/internal/models"
	"github.com/noah-isme/sma-adp-grading/internal/repository"
	appErrors "github.com/noah-isme/sma-adp-grading/pkg/errors"
)

type classWriter interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, exec sqlx.ExtContext, class *models.Class) error
}

type gradeBookWriter interface {
	FindByClassID(ctx context.Context, exec sqlx.ExtContext, classID string) (*models.GradeBook, error)
	Create(ctx context.Context, exec sqlx.ExtContext, book *models.GradeBook) error
	CreateSubjectRecords(ctx context.Context, exec sqlx.ExtContext, records []models.SubjectGradeRecord) error
}

type assessmentSystemWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, system *models.AssessmentSystem) error
}

type layeredSettings interface {
	AssessmentSystemFor(ctx context.Context, classGroupID string) (AssessmentResolution, error)
	ResolveTermStructure(ctx context.Context, classGroupID string) (*models.TermStructure, error)
}

// GradeBookService creates grade books and classes together with their
// seeded subject grade records.
type GradeBookService struct {
	classes    classWriter
	gradeBooks gradeBookWriter
	systems    assessmentSystemWriter
	subjects   subjectLister
	settings   layeredSettings
	tx         transactor
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewGradeBookService constructs the service.
func NewGradeBookService(classes classWriter, gradeBooks gradeBookWriter, systems assessmentSystemWriter, subjects subjectLister, settings layeredSettings, tx transactor, validate *validator.Validate, logger *zap.Logger) *GradeBookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeBookService{
		classes:    classes,
		gradeBooks: gradeBooks,
		systems:    systems,
		subjects:   subjects,
		settings:   settings,
		tx:         tx,
		validator:  validate,
		logger:     logger,
	}
}

// InitializeGradeBook creates the grade book of an existing class and seeds
// one subject grade record per subject. A second call fails with
// ErrAlreadyInitialized and changes nothing.
func (s *GradeBookService) InitializeGradeBook(ctx context.Context, classID string) (*models.GradeBook, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Internal(err, "failed to load class")
	}

	structure := class.TermStructure
	if len(structure.Terms) == 0 {
		resolved, err := s.settings.ResolveTermStructure(ctx, class.ClassGroupID)
		if err != nil {
			return nil, err
		}
		structure = *resolved
	}
	subjects, err := s.subjects.ListByClassGroup(ctx, class.ClassGroupID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load subjects")
	}

	var book models.GradeBook
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		created, err := s.createGradeBook(ctx, exec, class.ID, subjects, structure)
		if err != nil {
			return err
		}
		book = *created
		return nil
	})
	if err != nil {
		return nil, mapLifecycleError(err, "failed to initialize grade book")
	}
	s.logger.Info("grade book initialized", zap.String("class_id", classID), zap.String("gradebook_id", book.ID), zap.Int("subjects", len(subjects)))
	return &book, nil
}

// CreateClassWithInheritance creates a class that inherits the resolved term
// structure and assessment system of its class group, along with its grade
// book and seeded subject records, in one transaction. A customized
// assessment system is cloned into a class-owned row.
func (s *GradeBookService) CreateClassWithInheritance(ctx context.Context, req dto.CreateClassRequest) (*dto.ClassInitializationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	resolution, err := s.settings.AssessmentSystemFor(ctx, req.ClassGroupID)
	if err != nil {
		return nil, err
	}
	structure, err := s.settings.ResolveTermStructure(ctx, req.ClassGroupID)
	if err != nil {
		return nil, err
	}
	subjects, err := s.subjects.ListByClassGroup(ctx, req.ClassGroupID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load subjects")
	}

	system := resolution.Resolve()
	out := &dto.ClassInitializationResponse{}
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if resolution.Override != nil {
			sourceID := resolution.Base.ID
			system.ID = ""
			system.SourceID = &sourceID
			system.Name = fmt.Sprintf("%s (%s)", resolution.Base.Name, req.Name)
			if err := s.systems.Create(ctx, exec, &system); err != nil {
				return err
			}
		}
		systemID := system.ID

		class := &models.Class{
			ClassGroupID:       req.ClassGroupID,
			Name:               req.Name,
			AcademicYear:       req.AcademicYear,
			AssessmentSystemID: &systemID,
			TermStructure:      structure.Clone(),
		}
		if err := s.classes.Create(ctx, exec, class); err != nil {
			return err
		}
		book, err := s.createGradeBook(ctx, exec, class.ID, subjects, class.TermStructure)
		if err != nil {
			return err
		}

		out.Class = *class
		out.GradeBook = *book
		out.SubjectRecords = len(subjects)
		return nil
	})
	if err != nil {
		return nil, mapLifecycleError(err, "failed to create class")
	}
	out.AssessmentSystem = system
	s.logger.Info("class created", zap.String("class_id", out.Class.ID), zap.String("class_group_id", req.ClassGroupID), zap.Bool("customized_assessment", resolution.Override != nil))
	return out, nil
}

func (s *GradeBookService) createGradeBook(ctx context.Context, exec sqlx.ExtContext, classID string, subjects []models.Subject, structure models.TermStructure) (*models.GradeBook, error) {
	existing, err := s.gradeBooks.FindByClassID(ctx, exec, classID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyInitialized, "grade book already initialized for class")
	}

	book := &models.GradeBook{ClassID: classID}
	if err := s.gradeBooks.Create(ctx, exec, book); err != nil {
		return nil, err
	}
	if err := s.gradeBooks.CreateSubjectRecords(ctx, exec, seedSubjectRecords(book.ID, subjects, structure)); err != nil {
		return nil, err
	}
	return book, nil
}

// seedSubjectRecords builds one zeroed record per subject with a period grade
// entry for every assessment period of structure.
func seedSubjectRecords(gradeBookID string, subjects []models.Subject, structure models.TermStructure) []models.SubjectGradeRecord {
	records := make([]models.SubjectGradeRecord, 0, len(subjects))
	for _, subject := range subjects {
		record := models.SubjectGradeRecord{
			GradeBookID:            gradeBookID,
			SubjectID:              subject.ID,
			TermGrades:             make(models.TermGradeMap, len(structure.Terms)),
			AssessmentPeriodGrades: make(models.PeriodGradeMap),
		}
		for _, term := range structure.Terms {
			periods := make(map[string]models.PeriodGrade, len(term.Periods))
			for _, period := range term.Periods {
				zero := models.PeriodGrade{Weight: period.Weight}
				periods[period.ID] = zero
				record.AssessmentPeriodGrades[period.ID] = zero
			}
			record.TermGrades[term.ID] = models.TermGrade{PeriodGrades: periods, Credits: subject.CreditValue()}
		}
		records = append(records, record)
	}
	return records
}

func mapLifecycleError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return appErrors.Clone(appErrors.ErrAlreadyInitialized, "grade book already initialized for class")
	}
	return appErrors.Internal(err, message)
}
