package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

func TestClassRepositoryFindByGradeBook(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"id", "class_group_id", "name", "academic_year", "assessment_system_id", "term_structure", "created_at", "updated_at"}).
		AddRow("class-1", "cg-1", "10A", "2024/2025", nil, []byte(`{"program_id":"prog-1","terms":[{"id":"term-1","name":"Semester 1","weight":1}]}`), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes c JOIN gradebooks g ON g.class_id = c.id WHERE g.id = $1")).
		WithArgs("gb-1").
		WillReturnRows(rows)

	class, err := repo.FindByGradeBook(context.Background(), "gb-1")
	require.NoError(t, err)
	assert.Equal(t, "cg-1", class.ClassGroupID)
	assert.Nil(t, class.AssessmentSystemID)
	require.Len(t, class.TermStructure.Terms, 1)
	assert.Equal(t, "Semester 1", class.TermStructure.Terms[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestClassRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO classes")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	class := &models.Class{ClassGroupID: "cg-1", Name: "10A", AcademicYear: "2024/2025"}
	require.NoError(t, repo.Create(context.Background(), nil, class))
	assert.NotEmpty(t, class.ID)
	assert.False(t, class.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUpdateTermStructureByClassGroup(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE classes SET term_structure = $1, updated_at = $2 WHERE class_group_id = $3")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "cg-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.UpdateTermStructureByClassGroup(context.Background(), nil, "cg-1", models.TermStructure{ProgramID: "prog-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
