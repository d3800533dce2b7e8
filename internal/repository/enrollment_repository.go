package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

// EnrollmentRepository reads class enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListActiveStudentIDs returns the ids of students actively enrolled in a class.
func (r *EnrollmentRepository) ListActiveStudentIDs(ctx context.Context, classID string) ([]string, error) {
	const query = `SELECT student_id FROM enrollments WHERE class_id = $1 AND status = $2 ORDER BY student_id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, classID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return ids, nil
}
