package schema

import (
	"fmt"

	"github.com/tablodb/tablo/schemadef"
)

// Parse parses schema definition source and builds a validated Snapshot.
// This is the usual entry point: grammar errors and semantic errors are
// both reported here, before anything touches a store.
func Parse(src string) (*Snapshot, error) {
	def, err := schemadef.Parse(src)
	if err != nil {
		return nil, err
	}
	return Build(def)
}

// ParseFile reads and parses a schema definition from a file.
func ParseFile(path string) (*Snapshot, error) {
	def, err := schemadef.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Build(def)
}

// Build constructs a validated Snapshot from a parsed definition.
// Validation fails fast with a *SchemaError: duplicate entity or field
// names, unrecognized scalar types, missing or duplicated identity
// fields, bad relation targets, and incoherent default policies are all
// rejected here so query time never sees an invalid model.
func Build(def *schemadef.File) (*Snapshot, error) {
	snap := &Snapshot{index: make(map[string]*Entity)}

	// First pass: entities and fields.
	for _, decl := range def.Entities {
		if _, ok := snap.index[decl.Name]; ok {
			return nil, &SchemaError{
				Kind:     DuplicateName,
				Location: decl.Pos,
				Message:  fmt.Sprintf("entity %q declared twice", decl.Name),
			}
		}
		ent, err := buildEntity(decl)
		if err != nil {
			return nil, err
		}
		snap.Entities = append(snap.Entities, ent)
		snap.index[ent.Name] = ent
	}

	// Second pass: relations, once every target entity is known.
	for i, decl := range def.Entities {
		if err := buildRelations(snap, snap.Entities[i], decl); err != nil {
			return nil, err
		}
	}

	// Backref names must not collide with the target's fields or with
	// each other, and forward include names must not collide with the
	// owner's fields.
	if err := checkBackrefs(snap); err != nil {
		return nil, err
	}
	if err := checkForwardNames(snap); err != nil {
		return nil, err
	}

	return snap, nil
}

func buildEntity(decl schemadef.EntityDecl) (*Entity, error) {
	ent := &Entity{
		Name:   decl.Name,
		fields: make(map[string]*Field),
	}

	identitySeen := false
	for _, fd := range decl.Fields {
		if _, ok := ent.fields[fd.Name]; ok {
			return nil, &SchemaError{
				Kind:     DuplicateName,
				Location: fd.Pos,
				Message:  fmt.Sprintf("field %q declared twice on entity %q", fd.Name, decl.Name),
			}
		}

		f, err := buildField(decl.Name, fd)
		if err != nil {
			return nil, err
		}

		if f.Identity {
			if identitySeen {
				return nil, &SchemaError{
					Kind:     DuplicateName,
					Location: fd.Pos,
					Message:  fmt.Sprintf("entity %q has more than one @id field", decl.Name),
				}
			}
			identitySeen = true
		}

		ent.Fields = append(ent.Fields, f)
		ent.fields[f.Name] = f
	}

	if !identitySeen {
		return nil, &SchemaError{
			Kind:     MissingIdentity,
			Location: decl.Pos,
			Message:  fmt.Sprintf("entity %q has no @id field", decl.Name),
		}
	}

	return ent, nil
}

func buildField(entity string, fd schemadef.FieldDecl) (*Field, error) {
	t := ScalarType(fd.Type)
	if !t.Valid() {
		return nil, &SchemaError{
			Kind:     UnknownType,
			Location: fd.Pos,
			Message:  fmt.Sprintf("field %s.%s has unrecognized type %q", entity, fd.Name, fd.Type),
		}
	}

	f := &Field{
		Name:        fd.Name,
		Type:        t,
		Nullable:    fd.Optional,
		Unique:      fd.Unique,
		Identity:    fd.ID,
		OnUpdateNow: fd.Updated,
	}
	if f.Identity && f.Nullable {
		return nil, &SchemaError{
			Kind:     InvalidDefault,
			Location: fd.Pos,
			Message:  fmt.Sprintf("identity field %s.%s cannot be nullable", entity, fd.Name),
		}
	}
	if f.OnUpdateNow && t != TypeTimestamp {
		return nil, &SchemaError{
			Kind:     InvalidDefault,
			Location: fd.Pos,
			Message:  fmt.Sprintf("@updated on %s.%s requires a timestamp field", entity, fd.Name),
		}
	}

	if fd.Default == nil {
		return f, nil
	}
	switch fd.Default.Kind {
	case schemadef.DefaultNow:
		if t != TypeTimestamp {
			return nil, &SchemaError{
				Kind:     InvalidDefault,
				Location: fd.Pos,
				Message:  fmt.Sprintf("@default(now) on %s.%s requires a timestamp field", entity, fd.Name),
			}
		}
		f.Default = DefaultNow
	case schemadef.DefaultUUID:
		if t != TypeString {
			return nil, &SchemaError{
				Kind:     InvalidDefault,
				Location: fd.Pos,
				Message:  fmt.Sprintf("@default(uuid) on %s.%s requires a string field", entity, fd.Name),
			}
		}
		f.Default = DefaultUUID
	case schemadef.DefaultAutoIncrement:
		if t != TypeInt && t != TypeBigInt {
			return nil, &SchemaError{
				Kind:     InvalidDefault,
				Location: fd.Pos,
				Message:  fmt.Sprintf("@default(autoincrement) on %s.%s requires an integer field", entity, fd.Name),
			}
		}
		f.Default = DefaultAutoIncrement
	case schemadef.DefaultLiteral:
		if !literalMatches(t, fd.Default.Literal) {
			return nil, &SchemaError{
				Kind:     InvalidDefault,
				Location: fd.Pos,
				Message:  fmt.Sprintf("default for %s.%s does not match type %s", entity, fd.Name, t),
			}
		}
		f.Default = DefaultStatic
		f.DefaultValue = fd.Default.Literal
	}
	return f, nil
}

func literalMatches(t ScalarType, v any) bool {
	switch v.(type) {
	case string:
		return t == TypeString
	case int64:
		return t == TypeInt || t == TypeBigInt || t == TypeFloat
	case float64:
		return t == TypeFloat
	case bool:
		return t == TypeBool
	}
	return false
}

func buildRelations(snap *Snapshot, ent *Entity, decl schemadef.EntityDecl) error {
	for _, fd := range decl.Fields {
		if fd.Ref == nil {
			continue
		}
		fk, _ := ent.Field(fd.Name)

		target, ok := snap.index[fd.Ref.Entity]
		if !ok {
			return &SchemaError{
				Kind:     BadRelationTarget,
				Location: fd.Pos,
				Message:  fmt.Sprintf("%s.%s references unknown entity %q", ent.Name, fd.Name, fd.Ref.Entity),
			}
		}
		targetField, ok := target.Field(fd.Ref.Field)
		if !ok {
			return &SchemaError{
				Kind:     BadRelationTarget,
				Location: fd.Pos,
				Message:  fmt.Sprintf("%s.%s references unknown field %s.%s", ent.Name, fd.Name, fd.Ref.Entity, fd.Ref.Field),
			}
		}
		if !targetField.Identity {
			return &SchemaError{
				Kind:     BadRelationTarget,
				Location: fd.Pos,
				Message:  fmt.Sprintf("%s.%s must reference the identity field of %q, not %q", ent.Name, fd.Name, fd.Ref.Entity, fd.Ref.Field),
			}
		}
		if fk.Type != targetField.Type {
			return &SchemaError{
				Kind:     BadRelationTarget,
				Location: fd.Pos,
				Message: fmt.Sprintf("%s.%s has type %s but %s.%s has type %s",
					ent.Name, fd.Name, fk.Type, fd.Ref.Entity, fd.Ref.Field, targetField.Type),
			}
		}

		name := fd.Ref.Backref
		if name == "" {
			name = defaultBackref(ent.Name)
		}
		ent.Relations = append(ent.Relations, &Relation{
			Name:            name,
			Owner:           ent.Name,
			ForeignKey:      fk.Name,
			Target:          target.Name,
			TargetField:     targetField.Name,
			OneToOne:        fk.Unique,
			OnDeleteCascade: fd.OnDeleteCascade,
		})
	}
	return nil
}

func checkBackrefs(snap *Snapshot) error {
	for _, ent := range snap.Entities {
		seen := make(map[string]string) // backref name → owner
		for _, r := range snap.InverseRelations(ent.Name) {
			if _, ok := ent.Field(r.Name); ok {
				return &SchemaError{
					Kind:     DuplicateName,
					Location: "entity " + ent.Name,
					Message:  fmt.Sprintf("relation name %q collides with a field of %q", r.Name, ent.Name),
				}
			}
			if owner, ok := seen[r.Name]; ok {
				return &SchemaError{
					Kind:     DuplicateName,
					Location: "entity " + ent.Name,
					Message: fmt.Sprintf("relation name %q on %q claimed by both %q and %q",
						r.Name, ent.Name, owner, r.Owner),
				}
			}
			seen[r.Name] = r.Owner
		}
	}
	return nil
}

// checkForwardNames rejects schemas where a relation's forward include
// name shadows one of the owning entity's own fields: reads would then
// write the included record over the field's value.
func checkForwardNames(snap *Snapshot) error {
	for _, ent := range snap.Entities {
		seen := make(map[string]string) // forward name → foreign key
		for _, r := range ent.Relations {
			name := r.ForwardName()
			if _, ok := ent.Field(name); ok {
				return &SchemaError{
					Kind:     DuplicateName,
					Location: "entity " + ent.Name,
					Message:  fmt.Sprintf("forward relation name %q collides with a field of %q", name, ent.Name),
				}
			}
			if fk, ok := seen[name]; ok {
				return &SchemaError{
					Kind:     DuplicateName,
					Location: "entity " + ent.Name,
					Message: fmt.Sprintf("forward relation name %q on %q derived from both %q and %q",
						name, ent.Name, fk, r.ForeignKey),
				}
			}
			seen[name] = r.ForeignKey
		}
	}
	return nil
}
