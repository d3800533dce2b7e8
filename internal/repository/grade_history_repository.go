package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

// GradeHistoryRepository appends grade audit entries. Entries are never
// updated or read back by the grading core.
type GradeHistoryRepository struct {
	db *sqlx.DB
}

// NewGradeHistoryRepository constructs the repository.
func NewGradeHistoryRepository(db *sqlx.DB) *GradeHistoryRepository {
	return &GradeHistoryRepository{db: db}
}

// Append inserts one history entry.
func (r *GradeHistoryRepository) Append(ctx context.Context, entry *models.GradeHistory) error {
	if entry == nil {
		return fmt.Errorf("grade history payload is nil")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO grade_history (id, student_id, subject_id, term_id, final_grade, actor, reason, created_at)
VALUES (:id, :student_id, :subject_id, :term_id, :final_grade, :actor, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append grade history: %w", err)
	}
	return nil
}
