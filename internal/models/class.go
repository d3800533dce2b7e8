package models

import "time"

// Program is the root of the settings inheritance chain.
type Program struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	AssessmentSystemID *string   `db:"assessment_system_id" json:"assessment_system_id,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// ClassGroup groups classes of one program that share subjects and settings.
type ClassGroup struct {
	ID        string    `db:"id" json:"id"`
	ProgramID string    `db:"program_id" json:"program_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Class represents an academic class. Its term structure is the snapshot
// resolved when the class was created.
type Class struct {
	ID                 string        `db:"id" json:"id"`
	ClassGroupID       string        `db:"class_group_id" json:"class_group_id"`
	Name               string        `db:"name" json:"name"`
	AcademicYear       string        `db:"academic_year" json:"academic_year"`
	AssessmentSystemID *string       `db:"assessment_system_id" json:"assessment_system_id,omitempty"`
	TermStructure      TermStructure `db:"term_structure" json:"term_structure"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// Subject is taught to every class of a class group.
type Subject struct {
	ID           string   `db:"id" json:"id"`
	ClassGroupID string   `db:"class_group_id" json:"class_group_id"`
	Code         string   `db:"code" json:"code"`
	Name         string   `db:"name" json:"name"`
	Credits      *float64 `db:"credits" json:"credits,omitempty"`
}

// CreditValue returns the configured credits, 0 when unset.
func (s Subject) CreditValue() float64 {
	if s.Credits == nil || *s.Credits < 0 {
		return 0
	}
	return *s.Credits
}

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive      EnrollmentStatus = "ACTIVE"
	EnrollmentStatusTransferred EnrollmentStatus = "TRANSFERRED"
	EnrollmentStatusLeft        EnrollmentStatus = "LEFT"
)

// Enrollment captures a student's registration to a class.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
}
