package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

// TermRepository reads program term structures.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// StructureForProgram assembles the ordered terms of a program together with
// their ordered assessment periods. A program without terms yields an empty
// structure and no error.
func (r *TermRepository) StructureForProgram(ctx context.Context, programID string) (models.TermStructure, error) {
	structure := models.TermStructure{ProgramID: programID}

	const termsQuery = `SELECT id, program_id, name, sequence, weight, start_date, end_date FROM program_terms WHERE program_id = $1 ORDER BY sequence ASC`
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, termsQuery, programID); err != nil {
		return structure, fmt.Errorf("list program terms: %w", err)
	}
	if len(terms) == 0 {
		return structure, nil
	}

	ids := make([]string, len(terms))
	for i, term := range terms {
		ids[i] = term.ID
	}

	const periodsQuery = `SELECT id, term_id, name, sequence, weight, start_date, end_date FROM assessment_periods WHERE term_id = ANY($1) ORDER BY sequence ASC`
	var periods []models.AssessmentPeriod
	if err := r.db.SelectContext(ctx, &periods, periodsQuery, pq.Array(ids)); err != nil {
		return structure, fmt.Errorf("list assessment periods: %w", err)
	}

	byTerm := make(map[string][]models.AssessmentPeriod, len(terms))
	for _, period := range periods {
		byTerm[period.TermID] = append(byTerm[period.TermID], period)
	}
	for i := range terms {
		terms[i].Periods = byTerm[terms[i].ID]
	}
	structure.Terms = terms
	return structure, nil
}
