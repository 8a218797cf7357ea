// Package schema provides the in-memory schema model: immutable snapshots
// of entities, fields, and relations, built and validated from a parsed
// schema definition.
package schema

import (
	"strings"

	"github.com/go-openapi/inflect"
)

// ScalarType is the recognized kind of a field value.
type ScalarType string

// Recognized scalar types.
const (
	TypeInt       ScalarType = "int"
	TypeBigInt    ScalarType = "bigint"
	TypeFloat     ScalarType = "float"
	TypeString    ScalarType = "string"
	TypeBool      ScalarType = "bool"
	TypeTimestamp ScalarType = "timestamp"
)

// Valid reports whether t is one of the recognized scalar types.
func (t ScalarType) Valid() bool {
	switch t {
	case TypeInt, TypeBigInt, TypeFloat, TypeString, TypeBool, TypeTimestamp:
		return true
	}
	return false
}

// DefaultKind specifies a field's default-value policy.
type DefaultKind int

const (
	// DefaultNone means the field has no default; a create payload must
	// supply a value unless the field is nullable.
	DefaultNone DefaultKind = iota
	// DefaultStatic is a constant default declared in the schema.
	DefaultStatic
	// DefaultNow is a generated-on-create timestamp.
	DefaultNow
	// DefaultUUID is a generated-on-create random identifier.
	DefaultUUID
	// DefaultAutoIncrement delegates generation to the store's
	// auto-increment mechanism.
	DefaultAutoIncrement
)

// Field is a typed, named attribute of an Entity.
type Field struct {
	Name     string
	Type     ScalarType
	Nullable bool
	Unique   bool
	// Identity marks the field as the entity's primary handle.
	// At most one field per entity carries it.
	Identity bool
	Default  DefaultKind
	// DefaultValue holds the constant when Default is DefaultStatic.
	DefaultValue any
	// OnUpdateNow marks a generated-on-update timestamp field.
	OnUpdateNow bool
}

// ColumnName returns the physical column name for the field.
func (f *Field) ColumnName() string {
	return toSnakeCase(f.Name)
}

// Relation is a foreign-key-backed association between two entities.
// The owning entity holds the foreign-key field; the target entity sees
// the inverse collection (or singleton, for one-to-one) under Name.
type Relation struct {
	// Name is the inverse view's name on the target entity, e.g. "posts".
	Name string
	// Owner is the entity holding the foreign key.
	Owner string
	// ForeignKey is the field on Owner referencing the target identity.
	ForeignKey string
	// Target and TargetField identify the referenced identity field.
	Target      string
	TargetField string
	// OneToOne is set when the foreign key is unique.
	OneToOne        bool
	OnDeleteCascade bool
}

// ConstraintName returns the physical foreign-key constraint name.
func (r *Relation) ConstraintName() string {
	return "fk_" + toSnakeCase(r.Owner) + "_" + toSnakeCase(r.ForeignKey)
}

// ForwardName returns the name under which the referenced record is
// included from the owning side, derived from the foreign-key field:
// "authorId" yields "author". Falls back to the lowercased target name.
func (r *Relation) ForwardName() string {
	fk := r.ForeignKey
	for _, suffix := range []string{"Id", "_id", "ID"} {
		if len(fk) > len(suffix) && strings.HasSuffix(fk, suffix) {
			return strings.TrimSuffix(fk, suffix)
		}
	}
	return strings.ToLower(r.Target)
}

// Entity is a named logical record type.
type Entity struct {
	Name   string
	Fields []*Field
	// Relations are the relations this entity owns (it holds the FK).
	Relations []*Relation

	fields map[string]*Field
}

// TableName returns the physical table name: pluralized snake_case.
func (e *Entity) TableName() string {
	return inflect.Pluralize(toSnakeCase(e.Name))
}

// Field retrieves a field by its logical name.
func (e *Entity) Field(name string) (*Field, bool) {
	f, ok := e.fields[name]
	return f, ok
}

// Identity returns the entity's identity field.
func (e *Entity) Identity() (*Field, bool) {
	for _, f := range e.Fields {
		if f.Identity {
			return f, true
		}
	}
	return nil, false
}

// Snapshot is an immutable capture of the full set of entities, fields,
// and relations at a point in time. Snapshots are safe for concurrent
// read access; they are never mutated after Build returns.
type Snapshot struct {
	Entities []*Entity

	index map[string]*Entity
}

// Entity retrieves an entity by name.
func (s *Snapshot) Entity(name string) (*Entity, bool) {
	e, ok := s.index[name]
	return e, ok
}

// Relations returns every relation in the snapshot, in entity declaration
// order then field declaration order.
func (s *Snapshot) Relations() []*Relation {
	var rels []*Relation
	for _, e := range s.Entities {
		rels = append(rels, e.Relations...)
	}
	return rels
}

// InverseRelations returns the relations that target the named entity,
// i.e. the relations visible from its non-owning side.
func (s *Snapshot) InverseRelations(entity string) []*Relation {
	var rels []*Relation
	for _, r := range s.Relations() {
		if r.Target == entity {
			rels = append(rels, r)
		}
	}
	return rels
}

// toSnakeCase converts a camelCase or PascalCase name to snake_case.
// e.g. "authorId" → "author_id", "UserAccount" → "user_account"
func toSnakeCase(name string) string {
	if name == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteByte(byte(r - 'A' + 'a'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// defaultBackref derives the inverse collection name for a relation when
// the definition does not name one: the pluralized, lower-camel owning
// entity name. e.g. owner "Post" → "posts".
func defaultBackref(owner string) string {
	return inflect.CamelizeDownFirst(inflect.Pluralize(owner))
}
