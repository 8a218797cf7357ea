// Package schemadef parses the declarative schema definition language.
//
// A definition file is a sequence of entity blocks:
//
//	entity User {
//	    id        int       @id @default(autoincrement)
//	    email     string    @unique
//	    name      string?
//	    createdAt timestamp @default(now)
//	    updatedAt timestamp @updated
//	}
//
//	entity Post {
//	    id       int    @id @default(autoincrement)
//	    title    string
//	    authorId int    @ref(User.id)
//	}
//
// A trailing ? marks a nullable field. @ref declares the owning side of a
// relation; the inverse collection name may be given as a second argument,
// e.g. @ref(User.id, posts).
package schemadef

import (
	"fmt"
	"strconv"
	"strings"
)

// File is the parsed form of one schema definition source.
type File struct {
	Entities []EntityDecl
}

// EntityDecl is one entity block.
type EntityDecl struct {
	Name   string
	Fields []FieldDecl
	// Pos is the source position of the declaration, for error reporting.
	Pos string
}

// FieldDecl is one field line within an entity block.
type FieldDecl struct {
	Name     string
	Type     string
	Optional bool
	ID       bool
	Unique   bool
	Updated  bool
	Default  *DefaultDecl
	Ref      *RefDecl
	// OnDeleteCascade is set by @onDelete(cascade) and only meaningful
	// together with Ref.
	OnDeleteCascade bool
	Pos             string
}

// Default value kinds.
const (
	DefaultLiteral       = "literal"
	DefaultNow           = "now"
	DefaultUUID          = "uuid"
	DefaultAutoIncrement = "autoincrement"
)

// DefaultDecl is a parsed @default annotation.
type DefaultDecl struct {
	// Kind is one of the Default* constants.
	Kind string
	// Literal holds the constant value when Kind is DefaultLiteral:
	// string, int64, float64, or bool.
	Literal any
}

// RefDecl is a parsed @ref annotation: the owning side of a relation.
type RefDecl struct {
	Entity  string
	Field   string
	Backref string // optional inverse collection name
}

// convertAST lowers the raw grammar structs into the clean declaration model.
func convertAST(ast *FileP) (*File, error) {
	f := &File{}
	for _, e := range ast.Entities {
		decl := EntityDecl{
			Name: e.Name,
			Pos:  e.Pos.String(),
		}
		for _, fd := range e.Fields {
			field, err := convertField(fd)
			if err != nil {
				return nil, err
			}
			decl.Fields = append(decl.Fields, field)
		}
		f.Entities = append(f.Entities, decl)
	}
	return f, nil
}

func convertField(fd FieldDefP) (FieldDecl, error) {
	field := FieldDecl{
		Name:     fd.Name,
		Type:     fd.Type,
		Optional: fd.Optional,
		Pos:      fd.Pos.String(),
	}
	for _, a := range fd.Annots {
		switch {
		case a.ID:
			field.ID = true
		case a.Unique:
			field.Unique = true
		case a.Updated:
			field.Updated = true
		case a.Default != nil:
			d, err := convertDefault(fd, a.Default.Value)
			if err != nil {
				return FieldDecl{}, err
			}
			field.Default = d
		case a.Ref != nil:
			field.Ref = &RefDecl{
				Entity:  a.Ref.Entity,
				Field:   a.Ref.Field,
				Backref: a.Ref.Backref,
			}
		case a.OnDelete != nil:
			field.OnDeleteCascade = a.OnDelete.Cascade
		}
	}
	return field, nil
}

func convertDefault(fd FieldDefP, v DefaultValueP) (*DefaultDecl, error) {
	switch {
	case v.Now:
		return &DefaultDecl{Kind: DefaultNow}, nil
	case v.UUID:
		return &DefaultDecl{Kind: DefaultUUID}, nil
	case v.Auto:
		return &DefaultDecl{Kind: DefaultAutoIncrement}, nil
	case v.Str != nil:
		return &DefaultDecl{Kind: DefaultLiteral, Literal: *v.Str}, nil
	case v.Num != nil:
		if strings.Contains(*v.Num, ".") {
			f, err := strconv.ParseFloat(*v.Num, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: field %s: bad numeric default %q", fd.Pos, fd.Name, *v.Num)
			}
			return &DefaultDecl{Kind: DefaultLiteral, Literal: f}, nil
		}
		n, err := strconv.ParseInt(*v.Num, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: field %s: bad numeric default %q", fd.Pos, fd.Name, *v.Num)
		}
		return &DefaultDecl{Kind: DefaultLiteral, Literal: n}, nil
	case v.Bool != nil:
		return &DefaultDecl{Kind: DefaultLiteral, Literal: *v.Bool == "true"}, nil
	}
	return nil, fmt.Errorf("%s: field %s: empty @default", fd.Pos, fd.Name)
}
