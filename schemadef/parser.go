package schemadef

import (
	"fmt"
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// --- Participle grammar structs ---
// These define the schema definition language grammar using struct tags.
// The grammar handles entity blocks, typed fields, and field annotations.

// FileP is the top-level grammar: a sequence of entity blocks.
type FileP struct {
	Entities []EntityDefP `parser:"@@*"`
}

// EntityDefP parses: entity Name { field* }
type EntityDefP struct {
	Pos    lexer.Position
	Name   string      `parser:"'entity' @Ident"`
	Fields []FieldDefP `parser:"'{' @@* '}'"`
}

// FieldDefP parses: name type [?] annotation*
type FieldDefP struct {
	Pos      lexer.Position
	Name     string   `parser:"@Ident"`
	Type     string   `parser:"@Ident"`
	Optional bool     `parser:"@'?'?"`
	Annots   []AnnotP `parser:"@@*"`
}

// AnnotP is one of: @id, @unique, @updated, @default(...), @ref(...), @onDelete(...).
type AnnotP struct {
	ID       bool           `parser:"  @'@id'"`
	Unique   bool           `parser:"| @'@unique'"`
	Updated  bool           `parser:"| @'@updated'"`
	Default  *DefaultAnnot  `parser:"| @@"`
	Ref      *RefAnnot      `parser:"| @@"`
	OnDelete *OnDeleteAnnot `parser:"| @@"`
}

// DefaultAnnot parses: @default(now | uuid | autoincrement | literal)
type DefaultAnnot struct {
	Value DefaultValueP `parser:"'@default' '(' @@ ')'"`
}

// DefaultValueP is a generator keyword or a literal constant.
type DefaultValueP struct {
	Now  bool    `parser:"  @'now'"`
	UUID bool    `parser:"| @'uuid'"`
	Auto bool    `parser:"| @'autoincrement'"`
	Str  *string `parser:"| @String"`
	Num  *string `parser:"| @Number"`
	Bool *string `parser:"| @('true' | 'false')"`
}

// RefAnnot parses: @ref(Entity.field [, backref])
type RefAnnot struct {
	Entity  string `parser:"'@ref' '(' @Ident"`
	Field   string `parser:"'.' @Ident"`
	Backref string `parser:"( ',' @Ident )? ')'"`
}

// OnDeleteAnnot parses: @onDelete(cascade)
type OnDeleteAnnot struct {
	Cascade bool `parser:"'@onDelete' '(' @'cascade' ')'"`
}

var defLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s]+`},
	{Name: "AnnotKW", Pattern: `@(onDelete|default|updated|unique|ref|id)`},
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Number", Pattern: `-?\d+(\.\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[{}().,?]`},
})

var defParser = participle.MustBuild[FileP](
	participle.Lexer(defLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// Parse parses schema definition source into a File structure.
// Parsing is pure: it reports grammar errors only; semantic validation
// (duplicate names, relation targets, identity rules) happens when the
// schema model is built from the returned File.
func Parse(input string) (*File, error) {
	ast, err := defParser.ParseString("schema.tdl", input)
	if err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}
	return convertAST(ast)
}

// ParseFile reads a schema definition from the specified path and parses it.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema definition: %w", err)
	}
	return Parse(string(data))
}
