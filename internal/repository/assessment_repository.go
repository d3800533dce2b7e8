package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

const assessmentColumns = `id, subject_id, period_id, title, category, scoring_type, total_marks, rubric, is_required, created_at`

// AssessmentRepository reads gradable units of subjects.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// FindByID loads an assessment.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// ListForPeriod returns the assessments of a subject that belong to period.
// Assessments without an explicit period are matched by creation date.
func (r *AssessmentRepository) ListForPeriod(ctx context.Context, subjectID string, period models.AssessmentPeriod) ([]models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments
WHERE subject_id = $1 AND (period_id = $2 OR (period_id IS NULL AND created_at >= $3 AND created_at <= $4))
ORDER BY created_at ASC`
	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, subjectID, period.ID, period.StartDate, period.EndDate); err != nil {
		return nil, fmt.Errorf("list period assessments: %w", err)
	}
	return assessments, nil
}
