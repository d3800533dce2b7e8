package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

func TestGradeBookRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeBookRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gradebooks")).
		WithArgs(sqlmock.AnyArg(), "class-1", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), nil, &models.GradeBook{ClassID: "class-1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeBookRepositoryCreateSubjectRecordsStopsOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeBookRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_grade_records")).
		WithArgs(sqlmock.AnyArg(), "gb-1", "subj-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_grade_records")).
		WithArgs(sqlmock.AnyArg(), "gb-1", "subj-2", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("constraint"))

	records := []models.SubjectGradeRecord{
		{GradeBookID: "gb-1", SubjectID: "subj-1"},
		{GradeBookID: "gb-1", SubjectID: "subj-2"},
		{GradeBookID: "gb-1", SubjectID: "subj-3"},
	}
	err := repo.CreateSubjectRecords(context.Background(), nil, records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subj-2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeBookRepositoryUpsertStudentTermGrade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeBookRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_subject_grades")).
		WithArgs(sqlmock.AnyArg(), "stu-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "gb-1", "subj-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	grade := models.TermGrade{Percentage: 60, PeriodGrades: map[string]models.PeriodGrade{"pa-1": {Percentage: 80}}}
	require.NoError(t, repo.UpsertStudentTermGrade(context.Background(), "gb-1", "subj-1", "stu-1", "term-a", grade))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeBookRepositoryUpsertStudentTermGradeMissingRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeBookRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_subject_grades")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpsertStudentTermGrade(context.Background(), "gb-1", "subj-9", "stu-1", "term-a", models.TermGrade{})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeBookRepositoryListStudentGrades(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeBookRepository(db)

	rows := sqlmock.NewRows([]string{"id", "subject_grade_record_id", "subject_id", "subject_name", "student_id", "term_grades", "assessment_period_grades", "updated_at"}).
		AddRow("ssg-1", "rec-1", "subj-1", "Mathematics", "stu-1", []byte(`{"term-a":{"percentage":72.5,"grade_points":2,"is_passing":true}}`), []byte(`{}`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_subject_grades sg")).
		WithArgs("gb-1", "stu-1").
		WillReturnRows(rows)

	grades, err := repo.ListStudentGrades(context.Background(), "gb-1", "stu-1")
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, "Mathematics", grades[0].SubjectName)
	assert.Equal(t, 72.5, grades[0].TermGrades["term-a"].Percentage)
	assert.True(t, grades[0].TermGrades["term-a"].IsPassing)
	assert.NoError(t, mock.ExpectationsWereMet())
}
