package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-grading/internal/dto"
	"github.com/noah-isme/sma-adp-grading/internal/models"
	"github.com/noah-isme/sma-adp-grading/internal/service"
	appErrors "github.com/noah-isme/sma-adp-grading/pkg/errors"
)

type settingsServiceMock struct {
	system    *models.AssessmentSystem
	structure *models.TermStructure
	err       error
	saved     dto.TermSettingsRequest
}

func (m *settingsServiceMock) ResolveAssessmentSystem(ctx context.Context, classGroupID string) (*models.AssessmentSystem, error) {
	return m.system, m.err
}

func (m *settingsServiceMock) ResolveTermStructure(ctx context.Context, classGroupID string) (*models.TermStructure, error) {
	return m.structure, m.err
}

func (m *settingsServiceMock) SaveTermOverride(ctx context.Context, classGroupID string, req dto.TermSettingsRequest) (*models.TermStructure, error) {
	m.saved = req
	return m.structure, m.err
}

type periodServiceMock struct {
	opts service.PeriodGradeOptions
	err  error
}

func (m *periodServiceMock) CalculatePeriodGradeWithOptions(ctx context.Context, subjectID, periodID, studentID string, opts service.PeriodGradeOptions) (*models.PeriodGrade, error) {
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	return &models.PeriodGrade{Percentage: 72.5, IsPassing: true}, nil
}

func (m *periodServiceMock) DefaultOptions() service.PeriodGradeOptions {
	return service.PeriodGradeOptions{}
}

type termServiceMock struct {
	err error
}

func (m *termServiceMock) CalculateSubjectTermGrade(ctx context.Context, subjectID, termID, studentID string) (*models.TermGrade, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.TermGrade{Percentage: 60}, nil
}

type cumulativeServiceMock struct {
	batch    *service.BatchCumulativeResult
	batchErr error
	ids      []string
}

func (m *cumulativeServiceMock) CalculateCumulativeGrade(ctx context.Context, gradeBookID, studentID, termID string) (*models.CumulativeGrade, error) {
	return &models.CumulativeGrade{GradeBookID: gradeBookID, StudentID: studentID, TermID: termID, GPA: 2.6}, nil
}

func (m *cumulativeServiceMock) CalculateCumulativeBatch(ctx context.Context, gradeBookID, termID string, studentIDs []string) (*service.BatchCumulativeResult, error) {
	m.ids = studentIDs
	return m.batch, m.batchErr
}

func (m *cumulativeServiceMock) CalculateAnnualGrade(ctx context.Context, gradeBookID, studentID string) (*models.AnnualGrade, error) {
	return &models.AnnualGrade{GradeBookID: gradeBookID, StudentID: studentID, GPA: 2.25}, nil
}

type reportServiceMock struct {
	format string
}

func (m *reportServiceMock) Get(ctx context.Context, gradeBookID, studentID, termID string) (*models.ReportCard, error) {
	return &models.ReportCard{GradeBookID: gradeBookID, StudentID: studentID, TermID: termID}, nil
}

func (m *reportServiceMock) Export(ctx context.Context, gradeBookID, studentID, termID, format string) (*service.ReportFile, error) {
	m.format = format
	return &service.ReportFile{Filename: "card.csv", ContentType: "text/csv", Content: []byte("Subject\n")}, nil
}

type lifecycleMock struct {
	initErr error
}

func (m *lifecycleMock) CreateClassWithInheritance(ctx context.Context, req dto.CreateClassRequest) (*dto.ClassInitializationResponse, error) {
	return &dto.ClassInitializationResponse{Class: models.Class{ID: "class-1", Name: req.Name}, SubjectRecords: 2}, nil
}

func (m *lifecycleMock) InitializeGradeBook(ctx context.Context, classID string) (*models.GradeBook, error) {
	if m.initErr != nil {
		return nil, m.initErr
	}
	return &models.GradeBook{ID: "gb-1", ClassID: classID}, nil
}

type graderMock struct{}

func (graderMock) GradeSubmission(ctx context.Context, submissionID string, req dto.GradeSubmissionRequest) (*models.Submission, error) {
	return &models.Submission{ID: submissionID, ObtainedMarks: req.ObtainedMarks}, nil
}

type testAPI struct {
	engine     *gin.Engine
	settings   *settingsServiceMock
	periods    *periodServiceMock
	terms      *termServiceMock
	cumulative *cumulativeServiceMock
	reports    *reportServiceMock
	lifecycle  *lifecycleMock
}

func newTestAPI() *testAPI {
	gin.SetMode(gin.TestMode)
	api := &testAPI{
		engine:     gin.New(),
		settings:   &settingsServiceMock{structure: &models.TermStructure{ProgramID: "prog-1"}, system: &models.AssessmentSystem{ID: "sys-1"}},
		periods:    &periodServiceMock{},
		terms:      &termServiceMock{},
		cumulative: &cumulativeServiceMock{},
		reports:    &reportServiceMock{},
		lifecycle:  &lifecycleMock{},
	}
	RegisterRoutes(api.engine, Handlers{
		Settings:    NewSettingsHandler(api.settings),
		Grades:      NewGradeHandler(api.periods, api.terms, api.cumulative),
		Reports:     NewReportHandler(api.reports),
		Classes:     NewClassHandler(api.lifecycle),
		Submissions: NewSubmissionHandler(graderMock{}),
	})
	return api
}

func (a *testAPI) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *appErrors.Error {
	var body struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error
}

func TestSettingsRoutes(t *testing.T) {
	api := newTestAPI()

	w := api.do(http.MethodGet, "/class-groups/cg-1/term-structure", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"program_id":"prog-1"`)

	w = api.do(http.MethodGet, "/class-groups/cg-1/assessment-system", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPut, "/class-groups/cg-1/term-settings", map[string]interface{}{"terms": []map[string]interface{}{{"term_id": "term-1", "weight": 2}}})
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, api.settings.saved.Terms, 1)
	assert.Equal(t, 2.0, *api.settings.saved.Terms[0].Weight)
}

func TestSettingsRoutesMapInvalidState(t *testing.T) {
	api := newTestAPI()
	api.settings.err = appErrors.Clone(appErrors.ErrInvalidState, "customized term settings carry no payload")

	w := api.do(http.MethodGet, "/class-groups/cg-1/term-structure", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE", decodeError(t, w).Code)
}

func TestPeriodGradeRoute(t *testing.T) {
	api := newTestAPI()

	w := api.do(http.MethodGet, "/grades/period?subjectId=math&periodId=p-1&studentId=stu-1&requireAll=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, api.periods.opts.RequireAllAssessments)
	assert.Contains(t, w.Body.String(), `"percentage":72.5`)

	w = api.do(http.MethodGet, "/grades/period?subjectId=math", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)
}

func TestTermGradeRoute(t *testing.T) {
	api := newTestAPI()

	w := api.do(http.MethodPost, "/grades/term", dto.TermGradeRequest{SubjectID: "math", TermID: "term-1", StudentID: "stu-1"})
	assert.Equal(t, http.StatusOK, w.Code)

	api.terms.err = appErrors.Clone(appErrors.ErrNotFound, "term not found")
	w = api.do(http.MethodPost, "/grades/term", dto.TermGradeRequest{SubjectID: "math", TermID: "term-9", StudentID: "stu-1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodPost, "/grades/term", map[string]string{"subjectId": "math"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCumulativeRoutes(t *testing.T) {
	api := newTestAPI()
	api.cumulative.batch = &service.BatchCumulativeResult{
		Results: []models.CumulativeGrade{{StudentID: "stu-1"}, {StudentID: "stu-3"}},
		Failed:  []string{"stu-2"},
	}

	w := api.do(http.MethodPost, "/gradebooks/gb-1/cumulative", dto.CumulativeGradeRequest{StudentID: "stu-1", TermID: "term-1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"gpa":2.6`)

	w = api.do(http.MethodPost, "/gradebooks/gb-1/cumulative/batch", dto.BatchCumulativeRequest{TermID: "term-1", StudentIDs: []string{"stu-1", "stu-2", "stu-3"}})
	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data dto.BatchCumulativeResponse `json:"data"`
		Meta map[string]interface{}      `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data.Results, 2)
	assert.Equal(t, []string{"stu-2"}, body.Data.Failed)
	assert.Equal(t, float64(1), body.Meta["failed"])

	w = api.do(http.MethodGet, "/gradebooks/gb-1/students/stu-1/annual", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"gpa":2.25`)
}

func TestReportCardRoute(t *testing.T) {
	api := newTestAPI()

	w := api.do(http.MethodGet, "/gradebooks/gb-1/students/stu-1/report-card?termId=term-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"term_id":"term-1"`)

	w = api.do(http.MethodGet, "/gradebooks/gb-1/students/stu-1/report-card?termId=term-1&format=csv", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", api.reports.format)
	assert.Equal(t, `attachment; filename="card.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Subject\n", w.Body.String())

	w = api.do(http.MethodGet, "/gradebooks/gb-1/students/stu-1/report-card", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassRoutes(t *testing.T) {
	api := newTestAPI()

	w := api.do(http.MethodPost, "/classes", dto.CreateClassRequest{ClassGroupID: "cg-1", Name: "10A", AcademicYear: "2024/2025"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"subjectRecords":2`)

	w = api.do(http.MethodPost, "/classes/class-1/gradebook", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	api.lifecycle.initErr = appErrors.Clone(appErrors.ErrAlreadyInitialized, "grade book already initialized for class")
	w = api.do(http.MethodPost, "/classes/class-1/gradebook", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_INITIALIZED", decodeError(t, w).Code)
}

func TestSubmissionGradeRoute(t *testing.T) {
	api := newTestAPI()

	w := api.do(http.MethodPost, "/submissions/sub-1/grade", dto.GradeSubmissionRequest{ObtainedMarks: func() *float64 { v := 42.0; return &v }()})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"obtained_marks":42`)
}
