package grading

import (
	"fmt"

	"github.com/noah-isme/sma-adp-grading/internal/models"
)

// Patch is a partial value that can be written over a base value.
type Patch[T any] interface {
	Apply(base T) T
}

// Resolved pairs an inherited base value with an optional override.
type Resolved[T any, P Patch[T]] struct {
	Base     T
	Override *P
}

// Resolve returns the effective value: Base when there is no override,
// otherwise the field level merge of the override onto Base.
func (r Resolved[T, P]) Resolve() T {
	if r.Override == nil {
		return r.Base
	}
	return (*r.Override).Apply(r.Base)
}

// ValidateTermStructure checks that every term and period ends after it
// starts and carries a non-negative weight.
func ValidateTermStructure(ts models.TermStructure) error {
	for _, term := range ts.Terms {
		if !term.StartDate.IsZero() && !term.EndDate.IsZero() && !term.StartDate.Before(term.EndDate) {
			return fmt.Errorf("term %s: start date must be before end date", term.ID)
		}
		if term.Weight < 0 {
			return fmt.Errorf("term %s: weight must not be negative", term.ID)
		}
		for _, period := range term.Periods {
			if !period.StartDate.IsZero() && !period.EndDate.IsZero() && !period.StartDate.Before(period.EndDate) {
				return fmt.Errorf("period %s: start date must be before end date", period.ID)
			}
			if period.Weight < 0 {
				return fmt.Errorf("period %s: weight must not be negative", period.ID)
			}
		}
	}
	return nil
}
