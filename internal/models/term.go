package models

import (
	"database/sql/driver"
	"time"
)

// AssessmentPeriod is a weighted slice of a term (e.g. mid-term, finals).
type AssessmentPeriod struct {
	ID        string    `db:"id" json:"id"`
	TermID    string    `db:"term_id" json:"term_id"`
	Name      string    `db:"name" json:"name"`
	Sequence  int       `db:"sequence" json:"sequence"`
	Weight    float64   `db:"weight" json:"weight"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
}

// Contains reports whether t falls inside the period's date range, inclusive.
func (p AssessmentPeriod) Contains(t time.Time) bool {
	return !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// Term is one ordered term of a program's term structure.
type Term struct {
	ID        string             `db:"id" json:"id"`
	ProgramID string             `db:"program_id" json:"program_id"`
	Name      string             `db:"name" json:"name"`
	Sequence  int                `db:"sequence" json:"sequence"`
	Weight    float64            `db:"weight" json:"weight"`
	StartDate time.Time          `db:"start_date" json:"start_date"`
	EndDate   time.Time          `db:"end_date" json:"end_date"`
	Periods   []AssessmentPeriod `db:"-" json:"periods"`
}

// TermStructure is the ordered list of terms a class is graded against.
type TermStructure struct {
	ProgramID string `json:"program_id"`
	Terms     []Term `json:"terms"`
}

// Scan implements sql.Scanner.
func (ts *TermStructure) Scan(src interface{}) error { return scanJSON(src, ts) }

// Value implements driver.Valuer.
func (ts TermStructure) Value() (driver.Value, error) { return valueJSON(ts) }

// FindTerm returns the term with the given id.
func (ts TermStructure) FindTerm(id string) (Term, bool) {
	for _, term := range ts.Terms {
		if term.ID == id {
			return term, true
		}
	}
	return Term{}, false
}

// FindPeriod returns the assessment period with the given id and its term.
func (ts TermStructure) FindPeriod(id string) (AssessmentPeriod, Term, bool) {
	for _, term := range ts.Terms {
		for _, period := range term.Periods {
			if period.ID == id {
				return period, term, true
			}
		}
	}
	return AssessmentPeriod{}, Term{}, false
}

// Periods returns every assessment period in term order.
func (ts TermStructure) Periods() []AssessmentPeriod {
	var periods []AssessmentPeriod
	for _, term := range ts.Terms {
		periods = append(periods, term.Periods...)
	}
	return periods
}

// Clone returns a deep copy so callers can mutate without aliasing the source.
func (ts TermStructure) Clone() TermStructure {
	out := TermStructure{ProgramID: ts.ProgramID, Terms: make([]Term, len(ts.Terms))}
	for i, term := range ts.Terms {
		out.Terms[i] = term
		out.Terms[i].Periods = append([]AssessmentPeriod(nil), term.Periods...)
	}
	return out
}
