package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

// ClassGroupRepository reads class groups and their settings overrides.
type ClassGroupRepository struct {
	db *sqlx.DB
}

// NewClassGroupRepository constructs the repository.
func NewClassGroupRepository(db *sqlx.DB) *ClassGroupRepository {
	return &ClassGroupRepository{db: db}
}

func (r *ClassGroupRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads a class group.
func (r *ClassGroupRepository) FindByID(ctx context.Context, id string) (*models.ClassGroup, error) {
	const query = `SELECT id, program_id, name, created_at, updated_at FROM class_groups WHERE id = $1`
	var group models.ClassGroup
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// FindAssessmentSettings loads the assessment override row of a class group.
func (r *ClassGroupRepository) FindAssessmentSettings(ctx context.Context, classGroupID string) (*models.ClassGroupAssessmentSettings, error) {
	const query = `SELECT id, class_group_id, is_customized, payload, updated_at FROM class_group_assessment_settings WHERE class_group_id = $1`
	var settings models.ClassGroupAssessmentSettings
	if err := r.db.GetContext(ctx, &settings, query, classGroupID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// FindTermSettings loads the term structure override row of a class group.
func (r *ClassGroupRepository) FindTermSettings(ctx context.Context, classGroupID string) (*models.ClassGroupTermSettings, error) {
	const query = `SELECT id, class_group_id, is_customized, payload, updated_at FROM class_group_term_settings WHERE class_group_id = $1`
	var settings models.ClassGroupTermSettings
	if err := r.db.GetContext(ctx, &settings, query, classGroupID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpsertTermSettings creates or replaces the term override of a class group.
func (r *ClassGroupRepository) UpsertTermSettings(ctx context.Context, exec sqlx.ExtContext, settings *models.ClassGroupTermSettings) error {
	if settings == nil {
		return fmt.Errorf("term settings payload is nil")
	}
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	settings.UpdatedAt = time.Now().UTC()

	const query = `
INSERT INTO class_group_term_settings (id, class_group_id, is_customized, payload, updated_at)
VALUES (:id, :class_group_id, :is_customized, :payload, :updated_at)
ON CONFLICT (class_group_id) DO UPDATE SET is_customized = EXCLUDED.is_customized, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, settings); err != nil {
		return fmt.Errorf("upsert class group term settings: %w", err)
	}
	return nil
}
