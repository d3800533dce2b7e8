package dto

import "github.com/noah-isme/sma-adp-grading/internal/models"

// PeriodGradeQuery captures GET /grades/period parameters.
type PeriodGradeQuery struct {
	SubjectID             string `form:"subjectId" validate:"required"`
	PeriodID              string `form:"periodId" validate:"required"`
	StudentID             string `form:"studentId" validate:"required"`
	RequireAllAssessments *bool  `form:"requireAll"`
}

// TermGradeRequest captures POST /grades/term payload.
type TermGradeRequest struct {
	SubjectID string `json:"subjectId" validate:"required"`
	TermID    string `json:"termId" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
}

// CumulativeGradeRequest captures POST /gradebooks/:id/cumulative payload.
type CumulativeGradeRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	TermID    string `json:"termId" validate:"required"`
}

// BatchCumulativeRequest captures POST /gradebooks/:id/cumulative/batch
// payload. An empty StudentIDs list selects every active enrollment.
type BatchCumulativeRequest struct {
	TermID     string   `json:"termId" validate:"required"`
	StudentIDs []string `json:"studentIds" validate:"omitempty,dive,required"`
}

// BatchCumulativeResponse reports a batch run. Results only holds students
// whose computation succeeded.
type BatchCumulativeResponse struct {
	Results []models.CumulativeGrade `json:"results"`
	Failed  []string                 `json:"failed"`
}

// CreateClassRequest captures POST /classes payload.
type CreateClassRequest struct {
	ClassGroupID string `json:"classGroupId" validate:"required"`
	Name         string `json:"name" validate:"required,max=100"`
	AcademicYear string `json:"academicYear" validate:"required"`
}

// ClassInitializationResponse is returned after a class has been created
// together with its grade book.
type ClassInitializationResponse struct {
	Class            models.Class            `json:"class"`
	AssessmentSystem models.AssessmentSystem `json:"assessmentSystem"`
	GradeBook        models.GradeBook        `json:"gradebook"`
	SubjectRecords   int                     `json:"subjectRecords"`
}

// TermSettingsRequest captures PUT /class-groups/:id/term-settings payload.
type TermSettingsRequest struct {
	Terms []models.TermOverride `json:"terms" validate:"required,min=1,dive"`
}

// GradeSubmissionRequest captures POST /submissions/:id/grade payload.
type GradeSubmissionRequest struct {
	ObtainedMarks *float64           `json:"obtainedMarks" validate:"omitempty,gte=0"`
	TotalMarks    *float64           `json:"totalMarks" validate:"omitempty,gt=0"`
	RubricScores  map[string]float64 `json:"rubricScores" validate:"omitempty,dive,gte=0"`
}

// ReportCardQuery captures report card query parameters.
type ReportCardQuery struct {
	TermID string `form:"termId" validate:"required"`
	Format string `form:"format" validate:"omitempty,oneof=json csv pdf"`
}
