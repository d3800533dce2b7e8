package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

const submissionColumns = `id, assessment_id, student_id, obtained_marks, total_marks, rubric_scores, graded_at, created_at, updated_at`

// SubmissionRepository persists student submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// FindByID loads a submission.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListGradedForStudent returns a student's graded submissions for the given
// assessments.
func (r *SubmissionRepository) ListGradedForStudent(ctx context.Context, studentID string, assessmentIDs []string) ([]models.Submission, error) {
	if len(assessmentIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + submissionColumns + ` FROM submissions
WHERE student_id = $1 AND assessment_id = ANY($2) AND graded_at IS NOT NULL
ORDER BY graded_at ASC`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, studentID, pq.Array(assessmentIDs)); err != nil {
		return nil, fmt.Errorf("list graded submissions: %w", err)
	}
	return submissions, nil
}

// SaveGrade stores the marks or rubric scores of a submission and stamps
// graded_at.
func (r *SubmissionRepository) SaveGrade(ctx context.Context, submission *models.Submission) error {
	if submission == nil {
		return fmt.Errorf("submission payload is nil")
	}
	now := time.Now().UTC()
	if submission.GradedAt == nil {
		submission.GradedAt = &now
	}
	submission.UpdatedAt = now

	const query = `UPDATE submissions SET obtained_marks = $1, total_marks = $2, rubric_scores = $3, graded_at = $4, updated_at = $5 WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query, submission.ObtainedMarks, submission.TotalMarks, submission.RubricScores, submission.GradedAt, submission.UpdatedAt, submission.ID)
	if err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("grade submission rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
