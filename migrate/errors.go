package migrate

import (
	"fmt"
	"strings"
)

// ApplyErrorKind classifies an ApplyError.
type ApplyErrorKind int

const (
	// DialectUnsupported means an operation cannot be expressed in the
	// target dialect's DDL.
	DialectUnsupported ApplyErrorKind = iota
	// ConstraintViolation means the store rejected a statement because
	// existing data violates the new structure.
	ConstraintViolation
	// ConnectionLost means the store connection failed or the operation
	// was cancelled mid-flight. The transaction was rolled back; the
	// caller decides whether to retry.
	ConnectionLost
	// StatementFailed covers any other statement rejection.
	StatementFailed
)

// String returns the kind's name.
func (k ApplyErrorKind) String() string {
	switch k {
	case DialectUnsupported:
		return "DialectUnsupported"
	case ConstraintViolation:
		return "ConstraintViolation"
	case ConnectionLost:
		return "ConnectionLost"
	case StatementFailed:
		return "StatementFailed"
	}
	return fmt.Sprintf("ApplyErrorKind(%d)", int(k))
}

// ApplyError is returned when a migration cannot be planned or applied.
// Attempted carries the statements issued before the failure (the failing
// one last) for diagnostics; all of them were rolled back.
type ApplyError struct {
	Kind      ApplyErrorKind
	Migration string
	Statement string
	Attempted []string
	Err       error
}

// Error returns the error message for ApplyError.
func (e *ApplyError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("migration %q: %s executing %q: %v", e.Migration, e.Kind, e.Statement, e.Err)
	}
	return fmt.Sprintf("migration %q: %s: %v", e.Migration, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ApplyError) Unwrap() error { return e.Err }

// DestructiveError is returned when a plan contains destructive
// operations and the migrator was not configured to allow them.
type DestructiveError struct {
	Migration string
	Ops       []Op
}

// Error returns the error message for DestructiveError.
func (e *DestructiveError) Error() string {
	var parts []string
	for _, op := range e.Ops {
		parts = append(parts, op.Describe())
	}
	return fmt.Sprintf("migration %q contains destructive operations (%s); use WithAllowDestructive to apply",
		e.Migration, strings.Join(parts, "; "))
}

// CorruptLedgerError is returned by Verify when the recorded migrations
// are internally inconsistent. This is an unrecoverable startup
// condition: the store's structural history can no longer be trusted.
type CorruptLedgerError struct {
	Name   string
	Detail string
}

// Error returns the error message for CorruptLedgerError.
func (e *CorruptLedgerError) Error() string {
	return fmt.Sprintf("migration ledger corrupt at %q: %s", e.Name, e.Detail)
}
