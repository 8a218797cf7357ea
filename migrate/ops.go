// Package migrate computes structural differences between schema
// snapshots, lowers them into dialect DDL, and applies them
// transactionally with an append-only migration ledger.
package migrate

import (
	"fmt"

	"github.com/tablodb/tablo/schema"
)

// Op is a single, atomic structural change between two snapshots.
// Ops are produced by Diff and consumed exactly once by a Planner.
type Op interface {
	// Describe returns a human-readable one-liner for logs and plans.
	Describe() string
	// Destructive reports whether applying the op can discard data.
	Destructive() bool
}

// CreateEntity creates the table for a new entity.
type CreateEntity struct {
	Entity *schema.Entity
}

func (op CreateEntity) Describe() string {
	return fmt.Sprintf("create entity %s (table %s)", op.Entity.Name, op.Entity.TableName())
}
func (op CreateEntity) Destructive() bool { return false }

// DropEntity drops the table of a removed entity.
type DropEntity struct {
	Entity string
	Table  string
}

func (op DropEntity) Describe() string {
	return fmt.Sprintf("drop entity %s (table %s)", op.Entity, op.Table)
}
func (op DropEntity) Destructive() bool { return true }

// AddField adds a column to an existing table.
type AddField struct {
	Entity string
	Table  string
	Field  *schema.Field
}

func (op AddField) Describe() string {
	return fmt.Sprintf("add field %s.%s", op.Entity, op.Field.Name)
}
func (op AddField) Destructive() bool { return false }

// DropField removes a column from an existing table.
type DropField struct {
	Entity string
	Table  string
	Field  string
	Column string
}

func (op DropField) Describe() string {
	return fmt.Sprintf("drop field %s.%s", op.Entity, op.Field)
}
func (op DropField) Destructive() bool { return true }

// AlterField changes a column's type, nullability, default, or
// uniqueness.
type AlterField struct {
	Entity string
	Table  string
	From   *schema.Field
	To     *schema.Field
}

func (op AlterField) Describe() string {
	return fmt.Sprintf("alter field %s.%s", op.Entity, op.To.Name)
}

// Destructive reports whether the alteration narrows what existing rows
// may hold: a type change, a nullable→required tightening, or a newly
// added uniqueness constraint.
func (op AlterField) Destructive() bool {
	if op.From.Type != op.To.Type {
		return true
	}
	if op.From.Nullable && !op.To.Nullable {
		return true
	}
	if !op.From.Unique && op.To.Unique {
		return true
	}
	return false
}

// AddRelation adds a foreign-key constraint (and its supporting index)
// for a new relation.
type AddRelation struct {
	Relation *schema.Relation
	// Owner and target physical names, resolved at diff time.
	OwnerTable   string
	FKColumn     string
	TargetTable  string
	TargetColumn string
}

func (op AddRelation) Describe() string {
	return fmt.Sprintf("add relation %s.%s -> %s.%s",
		op.Relation.Owner, op.Relation.ForeignKey, op.Relation.Target, op.Relation.TargetField)
}
func (op AddRelation) Destructive() bool { return false }

// DropRelation removes a foreign-key constraint.
type DropRelation struct {
	Owner      string
	OwnerTable string
	ForeignKey string
	FKColumn   string
	Constraint string
}

func (op DropRelation) Describe() string {
	return fmt.Sprintf("drop relation constraint %s on %s", op.Constraint, op.Owner)
}
func (op DropRelation) Destructive() bool { return false }
