package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-grading/internal/models"
	appErrors "github.com/noah-isme/sma-adp-grading/pkg/errors"
	"github.com/noah-isme/sma-adp-grading/pkg/export"
)

// Report card export formats.
const (
	ReportFormatJSON = "json"
	ReportFormatCSV  = "csv"
	ReportFormatPDF  = "pdf"
)

type termResultReader interface {
	Find(ctx context.Context, studentID, termID string) (*models.TermResult, error)
}

type studentGradeLister interface {
	ListStudentGrades(ctx context.Context, gradeBookID, studentID string) ([]models.StudentSubjectGrade, error)
}

// ReportFile is a rendered report card.
type ReportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ReportCardService composes read-only report cards from persisted grades.
type ReportCardService struct {
	gradeBooks gradeBookReader
	classes    classReader
	settings   settingsSource
	results    termResultReader
	grades     studentGradeLister
	cache      *CacheService
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// NewReportCardService constructs the service.
func NewReportCardService(gradeBooks gradeBookReader, classes classReader, settings settingsSource, results termResultReader, grades studentGradeLister, cache *CacheService, logger *zap.Logger) *ReportCardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportCardService{
		gradeBooks: gradeBooks,
		classes:    classes,
		settings:   settings,
		results:    results,
		grades:     grades,
		cache:      cache,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

// Get returns the student's report card for a term. Subjects without a
// stored grade for the term are omitted; Result is nil until a cumulative
// grade has been computed.
func (s *ReportCardService) Get(ctx context.Context, gradeBookID, studentID, termID string) (*models.ReportCard, error) {
	key := reportCardCacheKey(gradeBookID, studentID, termID)
	var cached models.ReportCard
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

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
	structure, err := s.settings.ResolveTermStructure(ctx, class.ClassGroupID)
	if err != nil {
		return nil, err
	}
	term, ok := structure.FindTerm(termID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
	}

	card := &models.ReportCard{
		GradeBookID: gradeBookID,
		StudentID:   studentID,
		TermID:      termID,
		TermName:    term.Name,
		Subjects:    []models.ReportCardSubject{},
	}
	result, err := s.results.Find(ctx, studentID, termID)
	switch {
	case err == nil && result.GradeBookID == gradeBookID:
		card.Result = result
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to load term result")
	}

	grades, err := s.grades.ListStudentGrades(ctx, gradeBookID, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load student grades")
	}
	for _, g := range grades {
		grade, ok := g.TermGrades[termID]
		if !ok {
			continue
		}
		card.Subjects = append(card.Subjects, models.ReportCardSubject{SubjectID: g.SubjectID, SubjectName: g.SubjectName, Grade: grade})
	}
	sort.SliceStable(card.Subjects, func(i, j int) bool { return card.Subjects[i].SubjectName < card.Subjects[j].SubjectName })

	s.cache.Set(ctx, key, card)
	return card, nil
}

// Export renders the report card as CSV or PDF.
func (s *ReportCardService) Export(ctx context.Context, gradeBookID, studentID, termID, format string) (*ReportFile, error) {
	card, err := s.Get(ctx, gradeBookID, studentID, termID)
	if err != nil {
		return nil, err
	}
	data := reportCardDataset(card)
	base := fmt.Sprintf("report-card-%s-%s", studentID, termID)

	switch format {
	case ReportFormatCSV:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render report card")
		}
		return &ReportFile{Filename: base + ".csv", ContentType: "text/csv", Content: content}, nil
	case ReportFormatPDF:
		content, err := s.pdf.Render(data, "Report Card - "+card.TermName)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render report card")
		}
		return &ReportFile{Filename: base + ".pdf", ContentType: "application/pdf", Content: content}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}
}

func reportCardDataset(card *models.ReportCard) export.Dataset {
	data := export.Dataset{
		Summary: []export.Field{
			{Label: "Student", Value: card.StudentID},
			{Label: "Term", Value: card.TermName},
		},
		Headers: []string{"Subject", "Percentage", "Grade", "Grade Points", "Credits", "Status"},
	}
	if card.Result != nil {
		data.Summary = append(data.Summary,
			export.Field{Label: "GPA", Value: formatFloat(card.Result.GPA)},
			export.Field{Label: "Credits Earned", Value: formatFloat(card.Result.EarnedCredits) + " / " + formatFloat(card.Result.TotalCredits)},
		)
	}
	for _, subject := range card.Subjects {
		status := "FAIL"
		if subject.Grade.IsPassing {
			status = "PASS"
		}
		data.Rows = append(data.Rows, map[string]string{
			"Subject":      subject.SubjectName,
			"Percentage":   formatFloat(subject.Grade.Percentage),
			"Grade":        subject.Grade.Grade,
			"Grade Points": formatFloat(subject.Grade.GradePoints),
			"Credits":      formatFloat(subject.Grade.Credits),
			"Status":       status,
		})
	}
	return data
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
