package core

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an entity that does not exist or belongs to another user.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// DuplicateMonthError is returned when creating a month that already exists.
type DuplicateMonthError struct {
	Year  int
	Month int
}

func (e *DuplicateMonthError) Error() string {
	return fmt.Sprintf("budget for %04d-%02d already exists", e.Year, e.Month)
}

// CycleComputationError signals a card configuration the predictor cannot
// resolve, such as a zero-length billing cycle.
type CycleComputationError struct {
	CardID string
	Reason string
}

func (e *CycleComputationError) Error() string {
	return fmt.Sprintf("cannot compute billing cycle for card %s: %s", e.CardID, e.Reason)
}

// LimitExceededError is returned when a withdrawal is larger than the card's
// available limit.
type LimitExceededError struct {
	CardID    string
	Requested Money
	Available Money
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("withdrawal of %s on card %s exceeds available limit %s", e.Requested, e.CardID, e.Available)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsDuplicateMonth(err error) bool {
	var target *DuplicateMonthError
	return errors.As(err, &target)
}

func IsCycleComputation(err error) bool {
	var target *CycleComputationError
	return errors.As(err, &target)
}

func IsLimitExceeded(err error) bool {
	var target *LimitExceededError
	return errors.As(err, &target)
}
