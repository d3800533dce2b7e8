package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

const assessmentSystemColumns = `s.id, s.name, s.type, s.passing_threshold, s.config, s.source_id, s.created_at, s.updated_at`

// AssessmentSystemRepository persists scoring schemes.
type AssessmentSystemRepository struct {
	db *sqlx.DB
}

// NewAssessmentSystemRepository constructs the repository.
func NewAssessmentSystemRepository(db *sqlx.DB) *AssessmentSystemRepository {
	return &AssessmentSystemRepository{db: db}
}

func (r *AssessmentSystemRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads an assessment system.
func (r *AssessmentSystemRepository) FindByID(ctx context.Context, id string) (*models.AssessmentSystem, error) {
	query := `SELECT ` + assessmentSystemColumns + ` FROM assessment_systems s WHERE s.id = $1`
	var system models.AssessmentSystem
	if err := r.db.GetContext(ctx, &system, query, id); err != nil {
		return nil, err
	}
	return &system, nil
}

// FindProgramDefault loads the assessment system a program points to.
// sql.ErrNoRows is returned when the program has none.
func (r *AssessmentSystemRepository) FindProgramDefault(ctx context.Context, programID string) (*models.AssessmentSystem, error) {
	query := `SELECT ` + assessmentSystemColumns + ` FROM assessment_systems s JOIN programs p ON p.assessment_system_id = s.id WHERE p.id = $1`
	var system models.AssessmentSystem
	if err := r.db.GetContext(ctx, &system, query, programID); err != nil {
		return nil, err
	}
	return &system, nil
}

// Create inserts a new assessment system, typically a class-level clone.
func (r *AssessmentSystemRepository) Create(ctx context.Context, exec sqlx.ExtContext, system *models.AssessmentSystem) error {
	if system == nil {
		return fmt.Errorf("assessment system payload is nil")
	}
	if system.ID == "" {
		system.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	system.CreatedAt = now
	system.UpdatedAt = now

	const query = `
INSERT INTO assessment_systems (id, name, type, passing_threshold, config, source_id, created_at, updated_at)
VALUES (:id, :name, :type, :passing_threshold, :config, :source_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, system); err != nil {
		return fmt.Errorf("insert assessment system: %w", err)
	}
	return nil
}
