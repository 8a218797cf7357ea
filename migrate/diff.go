package migrate

import (
	"fmt"
	"sort"

	"github.com/tablodb/tablo/schema"
)

// Warning flags a change that could lose or reject existing data.
// Warnings accompany the plan; they never block Diff itself.
type Warning struct {
	Entity string
	Field  string
	Detail string
}

// String returns the warning text.
func (w Warning) String() string {
	if w.Field != "" {
		return fmt.Sprintf("destructive change on %s.%s: %s", w.Entity, w.Field, w.Detail)
	}
	return fmt.Sprintf("destructive change on %s: %s", w.Entity, w.Detail)
}

// Diff compares two snapshots and produces the ordered operations that
// transform previous into current. previous may be nil (empty store).
//
// The order is fixed: relation drops, then entity drops, then entity
// creates, then field changes on surviving entities, then relation
// creates, so a relation constraint never references a missing table.
// Independent operations are ordered by entity name then field name,
// which makes the output deterministic and diffable.
func Diff(previous, current *schema.Snapshot) ([]Op, []Warning) {
	if previous == nil {
		previous = &schema.Snapshot{}
	}

	var ops []Op
	var warns []Warning

	prevEnts := entitiesByName(previous)
	currEnts := entitiesByName(current)

	// Relation drops first: constraints must go before the tables or
	// columns they depend on.
	prevRels := relationsBySignature(previous)
	currRels := relationsBySignature(current)
	for _, key := range sortedKeys(prevRels) {
		if _, ok := currRels[key]; ok {
			continue
		}
		r := prevRels[key]
		owner := prevEnts[r.Owner]
		fk, _ := owner.Field(r.ForeignKey)
		ops = append(ops, DropRelation{
			Owner:      r.Owner,
			OwnerTable: owner.TableName(),
			ForeignKey: r.ForeignKey,
			FKColumn:   fk.ColumnName(),
			Constraint: r.ConstraintName(),
		})
	}

	// Entity drops.
	for _, name := range sortedKeys(prevEnts) {
		if _, ok := currEnts[name]; ok {
			continue
		}
		ent := prevEnts[name]
		ops = append(ops, DropEntity{Entity: name, Table: ent.TableName()})
		warns = append(warns, Warning{
			Entity: name,
			Detail: "dropping the entity discards all its records",
		})
	}

	// Entity creates.
	for _, name := range sortedKeys(currEnts) {
		if _, ok := prevEnts[name]; ok {
			continue
		}
		ops = append(ops, CreateEntity{Entity: currEnts[name]})
	}

	// Field changes on entities present in both snapshots.
	for _, name := range sortedKeys(currEnts) {
		prevEnt, ok := prevEnts[name]
		if !ok {
			continue
		}
		fieldOps, fieldWarns := diffFields(prevEnt, currEnts[name])
		ops = append(ops, fieldOps...)
		warns = append(warns, fieldWarns...)
	}

	// Relation creates last: every referenced table and column exists by
	// now, whether it pre-existed or was created above.
	for _, key := range sortedKeys(currRels) {
		if _, ok := prevRels[key]; ok {
			continue
		}
		r := currRels[key]
		owner := currEnts[r.Owner]
		target := currEnts[r.Target]
		fk, _ := owner.Field(r.ForeignKey)
		tf, _ := target.Field(r.TargetField)
		ops = append(ops, AddRelation{
			Relation:     r,
			OwnerTable:   owner.TableName(),
			FKColumn:     fk.ColumnName(),
			TargetTable:  target.TableName(),
			TargetColumn: tf.ColumnName(),
		})
	}

	return ops, warns
}

func diffFields(prev, curr *schema.Entity) ([]Op, []Warning) {
	var ops []Op
	var warns []Warning

	prevFields := make(map[string]*schema.Field, len(prev.Fields))
	for _, f := range prev.Fields {
		prevFields[f.Name] = f
	}
	currFields := make(map[string]*schema.Field, len(curr.Fields))
	for _, f := range curr.Fields {
		currFields[f.Name] = f
	}

	table := curr.TableName()

	for _, name := range sortedKeys(currFields) {
		f := currFields[name]
		old, ok := prevFields[name]
		if !ok {
			ops = append(ops, AddField{Entity: curr.Name, Table: table, Field: f})
			continue
		}
		if fieldsEqual(old, f) {
			continue
		}
		alter := AlterField{Entity: curr.Name, Table: table, From: old, To: f}
		ops = append(ops, alter)
		if old.Type != f.Type {
			warns = append(warns, Warning{
				Entity: curr.Name,
				Field:  name,
				Detail: fmt.Sprintf("type change %s -> %s may not convert existing values", old.Type, f.Type),
			})
		}
		if old.Nullable && !f.Nullable {
			warns = append(warns, Warning{
				Entity: curr.Name,
				Field:  name,
				Detail: "field becomes required; existing NULL values will be rejected",
			})
		}
		if !old.Unique && f.Unique {
			warns = append(warns, Warning{
				Entity: curr.Name,
				Field:  name,
				Detail: "field becomes unique; existing duplicate values will be rejected",
			})
		}
	}

	for _, name := range sortedKeys(prevFields) {
		if _, ok := currFields[name]; ok {
			continue
		}
		old := prevFields[name]
		ops = append(ops, DropField{
			Entity: curr.Name,
			Table:  table,
			Field:  name,
			Column: old.ColumnName(),
		})
		warns = append(warns, Warning{
			Entity: curr.Name,
			Field:  name,
			Detail: "dropping the field discards its values",
		})
	}

	return ops, warns
}

func fieldsEqual(a, b *schema.Field) bool {
	return a.Type == b.Type &&
		a.Nullable == b.Nullable &&
		a.Unique == b.Unique &&
		a.Identity == b.Identity &&
		a.Default == b.Default &&
		a.DefaultValue == b.DefaultValue &&
		a.OnUpdateNow == b.OnUpdateNow
}

func entitiesByName(s *schema.Snapshot) map[string]*schema.Entity {
	m := make(map[string]*schema.Entity, len(s.Entities))
	for _, e := range s.Entities {
		m[e.Name] = e
	}
	return m
}

// relationsBySignature keys relations by their physical identity. The
// inverse name is deliberately excluded: renaming a back-reference is
// not a structural change.
func relationsBySignature(s *schema.Snapshot) map[string]*schema.Relation {
	m := make(map[string]*schema.Relation)
	for _, r := range s.Relations() {
		key := fmt.Sprintf("%s.%s->%s.%s/%t/%t",
			r.Owner, r.ForeignKey, r.Target, r.TargetField, r.OneToOne, r.OnDeleteCascade)
		m[key] = r
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
