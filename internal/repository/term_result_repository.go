package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

// TermResultRepository persists cumulative term outcomes.
type TermResultRepository struct {
	db *sqlx.DB
}

// NewTermResultRepository constructs the repository.
func NewTermResultRepository(db *sqlx.DB) *TermResultRepository {
	return &TermResultRepository{db: db}
}

// Upsert writes the result keyed by (student_id, term_id), overwriting any
// previous value.
func (r *TermResultRepository) Upsert(ctx context.Context, result *models.TermResult) error {
	if result == nil {
		return fmt.Errorf("term result payload is nil")
	}
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CalculatedAt.IsZero() {
		result.CalculatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO term_results (id, student_id, term_id, gradebook_id, gpa, total_credits, earned_credits, calculated_at)
VALUES (:id, :student_id, :term_id, :gradebook_id, :gpa, :total_credits, :earned_credits, :calculated_at)
ON CONFLICT (student_id, term_id) DO UPDATE SET
	gradebook_id = EXCLUDED.gradebook_id,
	gpa = EXCLUDED.gpa,
	total_credits = EXCLUDED.total_credits,
	earned_credits = EXCLUDED.earned_credits,
	calculated_at = EXCLUDED.calculated_at`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("upsert term result: %w", err)
	}
	return nil
}

// Find loads the result of a student for a term.
func (r *TermResultRepository) Find(ctx context.Context, studentID, termID string) (*models.TermResult, error) {
	const query = `SELECT id, student_id, term_id, gradebook_id, gpa, total_credits, earned_credits, calculated_at FROM term_results WHERE student_id = $1 AND term_id = $2`
	var result models.TermResult
	if err := r.db.GetContext(ctx, &result, query, studentID, termID); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListByStudent returns every persisted result of a student in a grade book.
func (r *TermResultRepository) ListByStudent(ctx context.Context, gradeBookID, studentID string) ([]models.TermResult, error) {
	const query = `SELECT id, student_id, term_id, gradebook_id, gpa, total_credits, earned_credits, calculated_at FROM term_results WHERE gradebook_id = $1 AND student_id = $2 ORDER BY calculated_at ASC`
	var results []models.TermResult
	if err := r.db.SelectContext(ctx, &results, query, gradeBookID, studentID); err != nil {
		return nil, fmt.Errorf("list term results: %w", err)
	}
	return results, nil
}
