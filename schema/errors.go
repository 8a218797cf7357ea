package schema

import "fmt"

// ErrorKind classifies a SchemaError.
type ErrorKind int

const (
	// DuplicateName reports a duplicate entity or field name, or a
	// second identity field on one entity.
	DuplicateName ErrorKind = iota
	// UnknownType reports an unrecognized scalar type.
	UnknownType
	// BadRelationTarget reports a @ref whose target entity or field does
	// not exist, is not the target's identity, or is type-incompatible
	// with the foreign-key field.
	BadRelationTarget
	// MissingIdentity reports an entity with no identity field.
	MissingIdentity
	// InvalidDefault reports a default-value or generated-field policy
	// that does not match the field's type.
	InvalidDefault
)

// String returns the kind's name.
func (k ErrorKind) String() string {
	switch k {
	case DuplicateName:
		return "DuplicateName"
	case UnknownType:
		return "UnknownType"
	case BadRelationTarget:
		return "BadRelationTarget"
	case MissingIdentity:
		return "MissingIdentity"
	case InvalidDefault:
		return "InvalidDefault"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// SchemaError is an authoring-time validation failure. It is raised when
// the schema model is built, never at query time.
type SchemaError struct {
	Kind ErrorKind
	// Location is the source position of the offending declaration.
	Location string
	Message  string
}

// Error returns the error message for SchemaError.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s at %s: %s", e.Kind, e.Location, e.Message)
}
