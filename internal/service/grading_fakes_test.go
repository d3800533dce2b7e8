package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-adp-grading/internal/models"
	"github.com/noah-isme/sma-adp-grading/pkg/database"
	"github.com/noah-isme/sma-adp-grading/pkg/jobs"
)

var (
	jan1  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mar31 = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	apr1  = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	jun30 = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	jul1  = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	dec31 = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
)

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

// programStructure has two terms: term-1 with periods p-1 and p-2, term-2
// with period p-3.
func programStructure() models.TermStructure {
	return models.TermStructure{
		ProgramID: "prog-1",
		Terms: []models.Term{
			{
				ID: "term-1", ProgramID: "prog-1", Name: "Semester 1", Sequence: 1, Weight: 1, StartDate: jan1, EndDate: jun30,
				Periods: []models.AssessmentPeriod{
					{ID: "p-1", TermID: "term-1", Name: "Mid", Sequence: 1, Weight: 1, StartDate: jan1, EndDate: mar31},
					{ID: "p-2", TermID: "term-1", Name: "Final", Sequence: 2, Weight: 2, StartDate: apr1, EndDate: jun30},
				},
			},
			{
				ID: "term-2", ProgramID: "prog-1", Name: "Semester 2", Sequence: 2, Weight: 1, StartDate: jul1, EndDate: dec31,
				Periods: []models.AssessmentPeriod{
					{ID: "p-3", TermID: "term-2", Name: "Final", Sequence: 1, Weight: 1, StartDate: jul1, EndDate: dec31},
				},
			},
		},
	}
}

func programSystem() models.AssessmentSystem {
	return models.AssessmentSystem{
		ID:   "sys-1",
		Name: "Standard",
		Type: models.AssessmentTypeFixedMarks,
		Config: models.AssessmentConfig{
			MaxMarks: 100,
			GradeBands: []models.GradeBand{
				{Grade: "A", MinPercentage: 85, MaxPercentage: 100, GradePoint: 4},
				{Grade: "B", MinPercentage: 70, MaxPercentage: 84.99, GradePoint: 3},
				{Grade: "C", MinPercentage: 55, MaxPercentage: 69.99, GradePoint: 2},
				{Grade: "F", MinPercentage: 0, MaxPercentage: 54.99, GradePoint: 0},
			},
		},
	}
}

type fakeClassGroups struct {
	groups     map[string]*models.ClassGroup
	assessment map[string]*models.ClassGroupAssessmentSettings
	terms      map[string]*models.ClassGroupTermSettings
	upserted   []models.ClassGroupTermSettings
	upsertErr  error
}

func newFakeClassGroups() *fakeClassGroups {
	return &fakeClassGroups{
		groups:     map[string]*models.ClassGroup{"cg-1": {ID: "cg-1", ProgramID: "prog-1", Name: "Grade 10"}},
		assessment: map[string]*models.ClassGroupAssessmentSettings{},
		terms:      map[string]*models.ClassGroupTermSettings{},
	}
}

func (f *fakeClassGroups) FindByID(ctx context.Context, id string) (*models.ClassGroup, error) {
	if g, ok := f.groups[id]; ok {
		return g, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassGroups) FindAssessmentSettings(ctx context.Context, classGroupID string) (*models.ClassGroupAssessmentSettings, error) {
	if s, ok := f.assessment[classGroupID]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassGroups) FindTermSettings(ctx context.Context, classGroupID string) (*models.ClassGroupTermSettings, error) {
	if s, ok := f.terms[classGroupID]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassGroups) UpsertTermSettings(ctx context.Context, exec sqlx.ExtContext, settings *models.ClassGroupTermSettings) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, *settings)
	f.terms[settings.ClassGroupID] = settings
	return nil
}

func (f *fakeClassGroups) customizeAssessment(classGroupID, payload string) {
	f.assessment[classGroupID] = &models.ClassGroupAssessmentSettings{ClassGroupID: classGroupID, IsCustomized: true, Payload: types.JSONText(payload)}
}

func (f *fakeClassGroups) customizeTerms(classGroupID, payload string) {
	f.terms[classGroupID] = &models.ClassGroupTermSettings{ClassGroupID: classGroupID, IsCustomized: true, Payload: types.JSONText(payload)}
}

type fakeSystems struct {
	byProgram map[string]*models.AssessmentSystem
	created   []models.AssessmentSystem
	createErr error
}

func newFakeSystems() *fakeSystems {
	sys := programSystem()
	return &fakeSystems{byProgram: map[string]*models.AssessmentSystem{"prog-1": &sys}}
}

func (f *fakeSystems) FindProgramDefault(ctx context.Context, programID string) (*models.AssessmentSystem, error) {
	if s, ok := f.byProgram[programID]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSystems) Create(ctx context.Context, exec sqlx.ExtContext, system *models.AssessmentSystem) error {
	if f.createErr != nil {
		return f.createErr
	}
	system.ID = fmt.Sprintf("sys-clone-%d", len(f.created)+1)
	f.created = append(f.created, *system)
	return nil
}

type fakeTermStructures struct {
	mu        sync.Mutex
	byProgram map[string]models.TermStructure
	calls     int
}

func newFakeTermStructures() *fakeTermStructures {
	return &fakeTermStructures{byProgram: map[string]models.TermStructure{"prog-1": programStructure()}}
}

func (f *fakeTermStructures) StructureForProgram(ctx context.Context, programID string) (models.TermStructure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.byProgram[programID].Clone(), nil
}

type fakeClasses struct {
	classes     map[string]*models.Class
	byGradeBook map[string]string
	created     []models.Class
	propagated  map[string]models.TermStructure
	createErr   error
}

func newFakeClasses() *fakeClasses {
	return &fakeClasses{
		classes:     map[string]*models.Class{},
		byGradeBook: map[string]string{},
		propagated:  map[string]models.TermStructure{},
	}
}

func (f *fakeClasses) add(class models.Class, gradeBookID string) {
	f.classes[class.ID] = &class
	if gradeBookID != "" {
		f.byGradeBook[gradeBookID] = class.ID
	}
}

func (f *fakeClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := f.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClasses) FindByGradeBook(ctx context.Context, gradeBookID string) (*models.Class, error) {
	if id, ok := f.byGradeBook[gradeBookID]; ok {
		return f.classes[id], nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClasses) Create(ctx context.Context, exec sqlx.ExtContext, class *models.Class) error {
	if f.createErr != nil {
		return f.createErr
	}
	class.ID = fmt.Sprintf("class-%d", len(f.created)+1)
	f.created = append(f.created, *class)
	f.classes[class.ID] = class
	return nil
}

func (f *fakeClasses) UpdateTermStructureByClassGroup(ctx context.Context, exec sqlx.ExtContext, classGroupID string, structure models.TermStructure) (int64, error) {
	f.propagated[classGroupID] = structure
	var n int64
	for _, c := range f.classes {
		if c.ClassGroupID == classGroupID {
			c.TermStructure = structure
			n++
		}
	}
	return n, nil
}

// fakeTx runs fn directly and counts invocations.
type fakeTx struct {
	calls int
}

func (f *fakeTx) RunInTransaction(ctx context.Context, fn database.TxFunc) error {
	f.calls++
	return fn(ctx, nil)
}

type fakeSubjects struct {
	subjects []models.Subject
}

func (f *fakeSubjects) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	for i := range f.subjects {
		if f.subjects[i].ID == id {
			subject := f.subjects[i]
			return &subject, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSubjects) ListByClassGroup(ctx context.Context, classGroupID string) ([]models.Subject, error) {
	var out []models.Subject
	for _, s := range f.subjects {
		if s.ClassGroupID == classGroupID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeAssessments struct {
	assessments []models.Assessment
}

func (f *fakeAssessments) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	for i := range f.assessments {
		if f.assessments[i].ID == id {
			a := f.assessments[i]
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAssessments) ListForPeriod(ctx context.Context, subjectID string, period models.AssessmentPeriod) ([]models.Assessment, error) {
	var out []models.Assessment
	for _, a := range f.assessments {
		if a.SubjectID == subjectID && a.PeriodID != nil && *a.PeriodID == period.ID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeSubmissions struct {
	mu          sync.Mutex
	submissions []models.Submission
	saved       []models.Submission
}

func (f *fakeSubmissions) grade(assessmentID, studentID string, obtained float64) {
	graded := jan1
	f.submissions = append(f.submissions, models.Submission{
		ID:            fmt.Sprintf("sub-%d", len(f.submissions)+1),
		AssessmentID:  assessmentID,
		StudentID:     studentID,
		ObtainedMarks: floatPtr(obtained),
		GradedAt:      &graded,
	})
}

func (f *fakeSubmissions) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.submissions {
		if f.submissions[i].ID == id {
			s := f.submissions[i]
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSubmissions) ListGradedForStudent(ctx context.Context, studentID string, assessmentIDs []string) ([]models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(assessmentIDs))
	for _, id := range assessmentIDs {
		wanted[id] = true
	}
	var out []models.Submission
	for _, s := range f.submissions {
		if s.StudentID == studentID && wanted[s.AssessmentID] && s.IsGraded() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubmissions) SaveGrade(ctx context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	submission.GradedAt = &now
	f.saved = append(f.saved, *submission)
	return nil
}

type termGradeKey struct {
	gradeBookID, subjectID, studentID, termID string
}

type fakeGradeBooks struct {
	mu        sync.Mutex
	books     map[string]*models.GradeBook
	byClass   map[string]string
	byStudent map[string]string
	records   map[string][]models.SubjectGradeRecord
	grades    map[termGradeKey]models.TermGrade
	names     map[string]string
	recordErr error
}

func newFakeGradeBooks() *fakeGradeBooks {
	return &fakeGradeBooks{
		books:     map[string]*models.GradeBook{},
		byClass:   map[string]string{},
		byStudent: map[string]string{},
		records:   map[string][]models.SubjectGradeRecord{},
		grades:    map[termGradeKey]models.TermGrade{},
		names:     map[string]string{},
	}
}

func (f *fakeGradeBooks) add(book models.GradeBook) {
	f.books[book.ID] = &book
	f.byClass[book.ClassID] = book.ID
}

func (f *fakeGradeBooks) FindByID(ctx context.Context, id string) (*models.GradeBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.books[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeGradeBooks) FindByClassID(ctx context.Context, exec sqlx.ExtContext, classID string) (*models.GradeBook, error) {
	if id, ok := f.byClass[classID]; ok {
		return f.books[id], nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeGradeBooks) FindForStudent(ctx context.Context, studentID, classGroupID string) (*models.GradeBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byStudent[studentID]; ok {
		return f.books[id], nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeGradeBooks) Create(ctx context.Context, exec sqlx.ExtContext, book *models.GradeBook) error {
	book.ID = fmt.Sprintf("gb-%d", len(f.books)+1)
	f.add(*book)
	return nil
}

func (f *fakeGradeBooks) CreateSubjectRecords(ctx context.Context, exec sqlx.ExtContext, records []models.SubjectGradeRecord) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	for _, r := range records {
		f.records[r.GradeBookID] = append(f.records[r.GradeBookID], r)
	}
	return nil
}

func (f *fakeGradeBooks) UpsertStudentTermGrade(ctx context.Context, gradeBookID, subjectID, studentID, termID string, grade models.TermGrade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grades[termGradeKey{gradeBookID, subjectID, studentID, termID}] = grade
	return nil
}

func (f *fakeGradeBooks) ListStudentGrades(ctx context.Context, gradeBookID, studentID string) ([]models.StudentSubjectGrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bySubject := map[string]*models.StudentSubjectGrade{}
	var order []string
	for key, grade := range f.grades {
		if key.gradeBookID != gradeBookID || key.studentID != studentID {
			continue
		}
		row, ok := bySubject[key.subjectID]
		if !ok {
			row = &models.StudentSubjectGrade{SubjectID: key.subjectID, SubjectName: f.names[key.subjectID], StudentID: studentID, TermGrades: models.TermGradeMap{}}
			bySubject[key.subjectID] = row
			order = append(order, key.subjectID)
		}
		row.TermGrades[key.termID] = grade
	}
	out := make([]models.StudentSubjectGrade, 0, len(order))
	for _, id := range order {
		out = append(out, *bySubject[id])
	}
	return out, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []models.GradeHistory
	err     error
}

func (f *fakeHistory) Append(ctx context.Context, entry *models.GradeHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *entry)
	return nil
}

type fakeTermResults struct {
	mu      sync.Mutex
	results map[string]models.TermResult
	failFor map[string]bool
}

func newFakeTermResults() *fakeTermResults {
	return &fakeTermResults{results: map[string]models.TermResult{}, failFor: map[string]bool{}}
}

func (f *fakeTermResults) Upsert(ctx context.Context, result *models.TermResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[result.StudentID] {
		return errors.New("connection reset")
	}
	result.CalculatedAt = time.Now()
	f.results[result.StudentID+"|"+result.TermID] = *result
	return nil
}

func (f *fakeTermResults) Find(ctx context.Context, studentID, termID string) (*models.TermResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.results[studentID+"|"+termID]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTermResults) ListByStudent(ctx context.Context, gradeBookID, studentID string) ([]models.TermResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TermResult
	for _, r := range f.results {
		if r.GradeBookID == gradeBookID && r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeEnrollments struct {
	students map[string][]string
}

func (f *fakeEnrollments) ListActiveStudentIDs(ctx context.Context, classID string) ([]string, error) {
	return f.students[classID], nil
}

type fakeQueue struct {
	jobs []jobs.Job
	err  error
}

func (f *fakeQueue) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

// gradingFixture wires every grading service over in-memory fakes.
type gradingFixture struct {
	groups      *fakeClassGroups
	systems     *fakeSystems
	structures  *fakeTermStructures
	classes     *fakeClasses
	tx          *fakeTx
	subjects    *fakeSubjects
	assessments *fakeAssessments
	submissions *fakeSubmissions
	gradeBooks  *fakeGradeBooks
	history     *fakeHistory
	results     *fakeTermResults
	enrollments *fakeEnrollments

	resolver   *SettingsResolver
	periods    *PeriodGradeService
	terms      *TermGradeService
	cumulative *CumulativeGradeService
	lifecycle  *GradeBookService
	reports    *ReportCardService
}

func newGradingFixture() *gradingFixture {
	f := &gradingFixture{
		groups:      newFakeClassGroups(),
		systems:     newFakeSystems(),
		structures:  newFakeTermStructures(),
		classes:     newFakeClasses(),
		tx:          &fakeTx{},
		subjects:    &fakeSubjects{},
		assessments: &fakeAssessments{},
		submissions: &fakeSubmissions{},
		gradeBooks:  newFakeGradeBooks(),
		history:     &fakeHistory{},
		results:     newFakeTermResults(),
		enrollments: &fakeEnrollments{students: map[string][]string{}},
	}
	f.resolver = NewSettingsResolver(f.groups, f.systems, f.structures, f.classes, f.tx, nil, nil, nil)
	f.periods = NewPeriodGradeService(f.subjects, f.assessments, f.submissions, f.resolver, nil, nil, 0, false)
	f.terms = NewTermGradeService(f.subjects, f.resolver, f.periods, f.gradeBooks, f.history, nil, nil, nil, 0)
	f.cumulative = NewCumulativeGradeService(f.gradeBooks, f.classes, f.subjects, f.resolver, f.terms, f.results, f.enrollments, nil, nil, nil, 2, 0)
	f.lifecycle = NewGradeBookService(f.classes, f.gradeBooks, f.systems, f.subjects, f.resolver, f.tx, nil, nil)
	f.reports = NewReportCardService(f.gradeBooks, f.classes, f.resolver, f.results, f.gradeBooks, nil, nil)
	return f
}

// withClass registers class-1 in cg-1 with grade book gb-1.
func (f *gradingFixture) withClass() *gradingFixture {
	f.classes.add(models.Class{ID: "class-1", ClassGroupID: "cg-1", Name: "10A", TermStructure: programStructure()}, "gb-1")
	f.gradeBooks.add(models.GradeBook{ID: "gb-1", ClassID: "class-1"})
	return f
}

func (f *gradingFixture) addSubject(id, name string, credits float64) {
	f.subjects.subjects = append(f.subjects.subjects, models.Subject{ID: id, ClassGroupID: "cg-1", Code: id, Name: name, Credits: floatPtr(credits)})
	f.gradeBooks.names[id] = name
}

func (f *gradingFixture) addAssessment(id, subjectID, periodID, category string) {
	f.assessments.assessments = append(f.assessments.assessments, models.Assessment{
		ID: id, SubjectID: subjectID, PeriodID: strPtr(periodID), Title: id, Category: category, CreatedAt: jan1,
	})
}

func (f *gradingFixture) enroll(studentID string) {
	f.gradeBooks.byStudent[studentID] = "gb-1"
	f.enrollments.students["class-1"] = append(f.enrollments.students["class-1"], studentID)
}
