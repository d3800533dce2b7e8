package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

// ClassRepository manages persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

func (r *ClassRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, class_group_id, name, academic_year, assessment_system_id, term_structure, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByGradeBook returns the class owning a grade book.
func (r *ClassRepository) FindByGradeBook(ctx context.Context, gradeBookID string) (*models.Class, error) {
	const query = `SELECT c.id, c.class_group_id, c.name, c.academic_year, c.assessment_system_id, c.term_structure, c.created_at, c.updated_at
FROM classes c JOIN gradebooks g ON g.class_id = c.id WHERE g.id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, gradeBookID); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create persists a class record.
func (r *ClassRepository) Create(ctx context.Context, exec sqlx.ExtContext, class *models.Class) error {
	if class == nil {
		return fmt.Errorf("class payload is nil")
	}
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `
INSERT INTO classes (id, class_group_id, name, academic_year, assessment_system_id, term_structure, created_at, updated_at)
VALUES (:id, :class_group_id, :name, :academic_year, :assessment_system_id, :term_structure, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// UpdateTermStructureByClassGroup rewrites the term structure snapshot of
// every class in a class group and returns the number of classes touched.
func (r *ClassRepository) UpdateTermStructureByClassGroup(ctx context.Context, exec sqlx.ExtContext, classGroupID string, structure models.TermStructure) (int64, error) {
	const query = `UPDATE classes SET term_structure = $1, updated_at = $2 WHERE class_group_id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, structure, time.Now().UTC(), classGroupID)
	if err != nil {
		return 0, fmt.Errorf("update class term structures: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("class term structure rows affected: %w", err)
	}
	return affected, nil
}
