package models

import (
	"database/sql/driver"
	"time"
)

// GradeHistoryActorSystem marks history entries written by recomputation.
const GradeHistoryActorSystem = "SYSTEM"

// PeriodGrade is a student's aggregated grade for one assessment period.
// Weight is the period's own weight inside its term.
type PeriodGrade struct {
	ObtainedMarks float64 `json:"obtained_marks"`
	TotalMarks    float64 `json:"total_marks"`
	Percentage    float64 `json:"percentage"`
	Weight        float64 `json:"weight"`
	IsPassing     bool    `json:"is_passing"`
	GradePoints   float64 `json:"grade_points"`
	Grade         string  `json:"grade,omitempty"`
}

// TermGrade is a student's subject grade for one term.
type TermGrade struct {
	PeriodGrades map[string]PeriodGrade `json:"period_grades"`
	FinalGrade   float64                `json:"final_grade"`
	TotalMarks   float64                `json:"total_marks"`
	Percentage   float64                `json:"percentage"`
	IsPassing    bool                   `json:"is_passing"`
	GradePoints  float64                `json:"grade_points"`
	Credits      float64                `json:"credits"`
	Grade        string                 `json:"grade,omitempty"`
}

// TermGradeMap is keyed by term id.
type TermGradeMap map[string]TermGrade

// Scan implements sql.Scanner.
func (m *TermGradeMap) Scan(src interface{}) error { return scanJSON(src, m) }

// Value implements driver.Valuer.
func (m TermGradeMap) Value() (driver.Value, error) {
	if m == nil {
		return valueJSON(map[string]TermGrade{})
	}
	return valueJSON(map[string]TermGrade(m))
}

// PeriodGradeMap is keyed by assessment period id.
type PeriodGradeMap map[string]PeriodGrade

// Scan implements sql.Scanner.
func (m *PeriodGradeMap) Scan(src interface{}) error { return scanJSON(src, m) }

// Value implements driver.Valuer.
func (m PeriodGradeMap) Value() (driver.Value, error) {
	if m == nil {
		return valueJSON(map[string]PeriodGrade{})
	}
	return valueJSON(map[string]PeriodGrade(m))
}

// GradeBook is the per-class container of subject grade records.
type GradeBook struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SubjectGradeRecord holds the seeded term and period grade maps of a subject
// inside a grade book. Per-student values live in StudentSubjectGrade rows
// seeded from these maps.
type SubjectGradeRecord struct {
	ID                     string         `db:"id" json:"id"`
	GradeBookID            string         `db:"gradebook_id" json:"gradebook_id"`
	SubjectID              string         `db:"subject_id" json:"subject_id"`
	TermGrades             TermGradeMap   `db:"term_grades" json:"term_grades"`
	AssessmentPeriodGrades PeriodGradeMap `db:"assessment_period_grades" json:"assessment_period_grades"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updated_at"`
}

// StudentSubjectGrade is a student's copy of a subject grade record.
type StudentSubjectGrade struct {
	ID                     string         `db:"id" json:"id"`
	SubjectGradeRecordID   string         `db:"subject_grade_record_id" json:"subject_grade_record_id"`
	SubjectID              string         `db:"subject_id" json:"subject_id"`
	SubjectName            string         `db:"subject_name" json:"subject_name"`
	StudentID              string         `db:"student_id" json:"student_id"`
	TermGrades             TermGradeMap   `db:"term_grades" json:"term_grades"`
	AssessmentPeriodGrades PeriodGradeMap `db:"assessment_period_grades" json:"assessment_period_grades"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updated_at"`
}

// TermResult is the persisted cumulative outcome of a student for a term.
type TermResult struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	TermID        string    `db:"term_id" json:"term_id"`
	GradeBookID   string    `db:"gradebook_id" json:"gradebook_id"`
	GPA           float64   `db:"gpa" json:"gpa"`
	TotalCredits  float64   `db:"total_credits" json:"total_credits"`
	EarnedCredits float64   `db:"earned_credits" json:"earned_credits"`
	CalculatedAt  time.Time `db:"calculated_at" json:"calculated_at"`
}

// GradeHistory is an append-only audit entry of a computed term grade.
type GradeHistory struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	TermID     string    `db:"term_id" json:"term_id"`
	FinalGrade float64   `db:"final_grade" json:"final_grade"`
	Actor      string    `db:"actor" json:"actor"`
	Reason     string    `db:"reason" json:"reason"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CumulativeGrade is a student's GPA over every subject of a term.
type CumulativeGrade struct {
	GradeBookID   string               `json:"gradebook_id"`
	StudentID     string               `json:"student_id"`
	TermID        string               `json:"term_id"`
	GPA           float64              `json:"gpa"`
	TotalCredits  float64              `json:"total_credits"`
	EarnedCredits float64              `json:"earned_credits"`
	SubjectGrades map[string]TermGrade `json:"subject_grades"`
}

// AnnualGrade is the term-weighted mean of a student's persisted term GPAs.
type AnnualGrade struct {
	GradeBookID string             `json:"gradebook_id"`
	StudentID   string             `json:"student_id"`
	GPA         float64            `json:"gpa"`
	TermGPAs    map[string]float64 `json:"term_gpas"`
}

// ReportCard is a read-only view of a student's term standing.
type ReportCard struct {
	GradeBookID string              `json:"gradebook_id"`
	StudentID   string              `json:"student_id"`
	TermID      string              `json:"term_id"`
	TermName    string              `json:"term_name"`
	Result      *TermResult         `json:"result,omitempty"`
	Subjects    []ReportCardSubject `json:"subjects"`
}

// ReportCardSubject is one subject row of a report card.
type ReportCardSubject struct {
	SubjectID   string    `json:"subject_id"`
	SubjectName string    `json:"subject_name"`
	Grade       TermGrade `json:"grade"`
}
