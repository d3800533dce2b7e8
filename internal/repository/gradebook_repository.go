package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// GradeBookRepository persists grade books, their subject grade records and
// the per-student copies of those records.
type GradeBookRepository struct {
	db *sqlx.DB
}

// NewGradeBookRepository constructs the repository.
func NewGradeBookRepository(db *sqlx.DB) *GradeBookRepository {
	return &GradeBookRepository{db: db}
}

func (r *GradeBookRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads a grade book.
func (r *GradeBookRepository) FindByID(ctx context.Context, id string) (*models.GradeBook, error) {
	const query = `SELECT id, class_id, created_at FROM gradebooks WHERE id = $1`
	var book models.GradeBook
	if err := r.db.GetContext(ctx, &book, query, id); err != nil {
		return nil, err
	}
	return &book, nil
}

// FindByClassID loads the grade book of a class.
func (r *GradeBookRepository) FindByClassID(ctx context.Context, exec sqlx.ExtContext, classID string) (*models.GradeBook, error) {
	const query = `SELECT id, class_id, created_at FROM gradebooks WHERE class_id = $1`
	var book models.GradeBook
	if err := sqlx.GetContext(ctx, r.exec(exec), &book, query, classID); err != nil {
		return nil, err
	}
	return &book, nil
}

// FindForStudent returns the grade book of the class a student is actively
// enrolled in within a class group.
func (r *GradeBookRepository) FindForStudent(ctx context.Context, studentID, classGroupID string) (*models.GradeBook, error) {
	const query = `SELECT g.id, g.class_id, g.created_at FROM gradebooks g
JOIN classes c ON c.id = g.class_id
JOIN enrollments e ON e.class_id = c.id
WHERE e.student_id = $1 AND c.class_group_id = $2 AND e.status = $3
ORDER BY g.created_at DESC LIMIT 1`
	var book models.GradeBook
	if err := r.db.GetContext(ctx, &book, query, studentID, classGroupID, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &book, nil
}

// Create inserts a grade book. ErrDuplicate is returned when the class
// already has one.
func (r *GradeBookRepository) Create(ctx context.Context, exec sqlx.ExtContext, book *models.GradeBook) error {
	if book == nil {
		return fmt.Errorf("gradebook payload is nil")
	}
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO gradebooks (id, class_id, created_at) VALUES (:id, :class_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, book); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert gradebook: %w", err)
	}
	return nil
}

// CreateSubjectRecords inserts the seeded subject grade records of a grade
// book. Callers run it inside a transaction; the first failure aborts.
func (r *GradeBookRepository) CreateSubjectRecords(ctx context.Context, exec sqlx.ExtContext, records []models.SubjectGradeRecord) error {
	const query = `
INSERT INTO subject_grade_records (id, gradebook_id, subject_id, term_grades, assessment_period_grades, created_at, updated_at)
VALUES (:id, :gradebook_id, :subject_id, :term_grades, :assessment_period_grades, :created_at, :updated_at)`
	target := r.exec(exec)
	now := time.Now().UTC()
	for i := range records {
		record := &records[i]
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		record.CreatedAt = now
		record.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, record); err != nil {
			return fmt.Errorf("insert subject grade record %s: %w", record.SubjectID, err)
		}
	}
	return nil
}

// UpsertStudentTermGrade writes one term grade and its period grades into
// the student's copy of the subject record. The copy is seeded from the
// record on first write; later writes merge so other terms are preserved.
// sql.ErrNoRows is returned when the grade book has no record for subject.
func (r *GradeBookRepository) UpsertStudentTermGrade(ctx context.Context, gradeBookID, subjectID, studentID, termID string, grade models.TermGrade) error {
	termGrades := models.TermGradeMap{termID: grade}
	periodGrades := models.PeriodGradeMap(grade.PeriodGrades)

	const query = `
INSERT INTO student_subject_grades (id, subject_grade_record_id, student_id, term_grades, assessment_period_grades, updated_at)
SELECT $1, r.id, $2, r.term_grades || $3::jsonb, r.assessment_period_grades || $4::jsonb, $5
FROM subject_grade_records r WHERE r.gradebook_id = $6 AND r.subject_id = $7
ON CONFLICT (subject_grade_record_id, student_id) DO UPDATE SET
	term_grades = student_subject_grades.term_grades || $3::jsonb,
	assessment_period_grades = student_subject_grades.assessment_period_grades || $4::jsonb,
	updated_at = $5`
	result, err := r.db.ExecContext(ctx, query, uuid.NewString(), studentID, termGrades, periodGrades, time.Now().UTC(), gradeBookID, subjectID)
	if err != nil {
		return fmt.Errorf("upsert student subject grade: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("student subject grade rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListStudentGrades returns the student's subject grades of a grade book.
func (r *GradeBookRepository) ListStudentGrades(ctx context.Context, gradeBookID, studentID string) ([]models.StudentSubjectGrade, error) {
	const query = `SELECT sg.id, sg.subject_grade_record_id, r.subject_id, s.name AS subject_name, sg.student_id, sg.term_grades, sg.assessment_period_grades, sg.updated_at
FROM student_subject_grades sg
JOIN subject_grade_records r ON r.id = sg.subject_grade_record_id
JOIN subjects s ON s.id = r.subject_id
WHERE r.gradebook_id = $1 AND sg.student_id = $2
ORDER BY s.code ASC`
	var grades []models.StudentSubjectGrade
	if err := r.db.SelectContext(ctx, &grades, query, gradeBookID, studentID); err != nil {
		return nil, fmt.Errorf("list student subject grades: %w", err)
	}
	return grades, nil
}
