package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

// SubjectRepository reads subjects of class groups.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs the repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// FindByID retrieves a subject by ID.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, class_group_id, code, name, credits FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListByClassGroup returns the subjects of a class group ordered by code.
func (r *SubjectRepository) ListByClassGroup(ctx context.Context, classGroupID string) ([]models.Subject, error) {
	const query = `SELECT id, class_group_id, code, name, credits FROM subjects WHERE class_group_id = $1 ORDER BY code ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, classGroupID); err != nil {
		return nil, fmt.Errorf("list class group subjects: %w", err)
	}
	return subjects, nil
}
