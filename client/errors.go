package client

import "fmt"

// ValidationError is returned before any store round-trip when a
// payload or query does not fit the schema.
type ValidationError struct {
	Entity  string
	Field   string
	Message string
}

// Error returns the error message for ValidationError.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Entity, e.Message)
}

// NotFoundError is returned when an operation that requires matching
// records matches none.
type NotFoundError struct {
	Entity string
	Detail string
}

// Error returns the error message for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no record found (%s)", e.Entity, e.Detail)
}

// ConstraintKind classifies a store-level constraint rejection.
type ConstraintKind int

const (
	// UniqueConstraint means a value collided with an existing one.
	UniqueConstraint ConstraintKind = iota
	// ForeignKeyConstraint means a relation target is missing, or
	// deleting a record would orphan dependents.
	ForeignKeyConstraint
)

// String returns the kind's name.
func (k ConstraintKind) String() string {
	if k == ForeignKeyConstraint {
		return "foreign key"
	}
	return "unique"
}

// ConstraintError wraps a constraint violation reported by the store.
type ConstraintError struct {
	Entity string
	Kind   ConstraintKind
	// Constraint is the violated constraint's name when the backend
	// reports one.
	Constraint string
	Err        error
}

// Error returns the error message for ConstraintError.
func (e *ConstraintError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s: %s constraint %s violated: %v", e.Entity, e.Kind, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%s: %s constraint violated: %v", e.Entity, e.Kind, e.Err)
}

// Unwrap returns the backend error.
func (e *ConstraintError) Unwrap() error { return e.Err }
