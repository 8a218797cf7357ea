// Package sqlast provides small, dialect-aware builders that compile
// statement descriptions into parameterized SQL. Values never appear in
// the statement text; they are always bound through placeholders.
package sqlast

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialects understood by the compiler. They control identifier quoting
// and placeholder style ($n for postgres, ? otherwise).
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
)

type builder struct {
	sb      strings.Builder
	args    []any
	dialect string
}

func newBuilder(dialect string) (*builder, error) {
	switch dialect {
	case SQLite, Postgres, MySQL:
		return &builder{dialect: dialect}, nil
	}
	return nil, fmt.Errorf("sqlast: unsupported dialect %q", dialect)
}

func (b *builder) write(s string) { b.sb.WriteString(s) }

// arg binds a value and writes its placeholder.
func (b *builder) arg(v any) {
	b.args = append(b.args, v)
	if b.dialect == Postgres {
		b.write("$" + strconv.Itoa(len(b.args)))
		return
	}
	b.write("?")
}

// ident writes a quoted identifier.
func (b *builder) ident(name string) {
	if b.dialect == MySQL {
		b.write("`" + name + "`")
		return
	}
	b.write(`"` + name + `"`)
}

func (b *builder) idents(names []string) {
	for i, n := range names {
		if i > 0 {
			b.write(", ")
		}
		b.ident(n)
	}
}

// --- Predicates ---

// Predicate is a filter expression compiled into a WHERE clause.
type Predicate interface {
	append(b *builder)
}

type cmp struct {
	col string
	op  string
	val any
}

func (p cmp) append(b *builder) {
	b.ident(p.col)
	b.write(" " + p.op + " ")
	b.arg(p.val)
}

// EQ builds column = value.
func EQ(col string, v any) Predicate { return cmp{col, "=", v} }

// NEQ builds column <> value.
func NEQ(col string, v any) Predicate { return cmp{col, "<>", v} }

// GT builds column > value.
func GT(col string, v any) Predicate { return cmp{col, ">", v} }

// GTE builds column >= value.
func GTE(col string, v any) Predicate { return cmp{col, ">=", v} }

// LT builds column < value.
func LT(col string, v any) Predicate { return cmp{col, "<", v} }

// LTE builds column <= value.
func LTE(col string, v any) Predicate { return cmp{col, "<=", v} }

type inPred struct {
	col  string
	vals []any
}

func (p inPred) append(b *builder) {
	// IN over an empty set matches nothing.
	if len(p.vals) == 0 {
		b.write("1 = 0")
		return
	}
	b.ident(p.col)
	b.write(" IN (")
	for i, v := range p.vals {
		if i > 0 {
			b.write(", ")
		}
		b.arg(v)
	}
	b.write(")")
}

// In builds column IN (values...). An empty value list compiles to a
// contradiction rather than invalid SQL.
func In(col string, vals ...any) Predicate { return inPred{col, vals} }

type isNull struct {
	col string
}

func (p isNull) append(b *builder) {
	b.ident(p.col)
	b.write(" IS NULL")
}

// IsNull builds column IS NULL.
func IsNull(col string) Predicate { return isNull{col} }

type and struct {
	ps []Predicate
}

func (p and) append(b *builder) {
	for i, child := range p.ps {
		if i > 0 {
			b.write(" AND ")
		}
		child.append(b)
	}
}

// And combines predicates into a conjunction. And of one predicate is
// that predicate; And of none is invalid and must not reach Compile.
func And(ps ...Predicate) Predicate {
	if len(ps) == 1 {
		return ps[0]
	}
	return and{ps}
}

// --- SELECT ---

type orderClause struct {
	col  string
	desc bool
}

// SelectStmt describes a SELECT statement.
type SelectStmt struct {
	table   string
	cols    []string
	where   Predicate
	orderBy []orderClause
	limit   int
	offset  int
}

// Select starts a SELECT over the given columns.
func Select(cols ...string) *SelectStmt {
	return &SelectStmt{cols: cols, limit: -1, offset: -1}
}

// From sets the table.
func (s *SelectStmt) From(table string) *SelectStmt {
	s.table = table
	return s
}

// Where sets the filter predicate.
func (s *SelectStmt) Where(p Predicate) *SelectStmt {
	s.where = p
	return s
}

// OrderAsc appends an ascending order clause.
func (s *SelectStmt) OrderAsc(col string) *SelectStmt {
	s.orderBy = append(s.orderBy, orderClause{col: col})
	return s
}

// OrderDesc appends a descending order clause.
func (s *SelectStmt) OrderDesc(col string) *SelectStmt {
	s.orderBy = append(s.orderBy, orderClause{col: col, desc: true})
	return s
}

// Limit restricts the number of returned rows.
func (s *SelectStmt) Limit(n int) *SelectStmt {
	s.limit = n
	return s
}

// Offset skips the first n rows.
func (s *SelectStmt) Offset(n int) *SelectStmt {
	s.offset = n
	return s
}

// Compile renders the statement for the dialect.
func (s *SelectStmt) Compile(dialect string) (string, []any, error) {
	if s.table == "" || len(s.cols) == 0 {
		return "", nil, fmt.Errorf("sqlast: select needs a table and columns")
	}
	b, err := newBuilder(dialect)
	if err != nil {
		return "", nil, err
	}
	b.write("SELECT ")
	b.idents(s.cols)
	b.write(" FROM ")
	b.ident(s.table)
	if s.where != nil {
		b.write(" WHERE ")
		s.where.append(b)
	}
	for i, o := range s.orderBy {
		if i == 0 {
			b.write(" ORDER BY ")
		} else {
			b.write(", ")
		}
		b.ident(o.col)
		if o.desc {
			b.write(" DESC")
		}
	}
	if s.limit >= 0 {
		b.write(" LIMIT " + strconv.Itoa(s.limit))
	}
	if s.offset > 0 {
		b.write(" OFFSET " + strconv.Itoa(s.offset))
	}
	return b.sb.String(), b.args, nil
}

// --- INSERT ---

// InsertStmt describes an INSERT statement.
type InsertStmt struct {
	table     string
	cols      []string
	vals      []any
	returning []string
}

// Insert starts an INSERT into the given table.
func Insert(table string) *InsertStmt {
	return &InsertStmt{table: table}
}

// Columns sets the column list.
func (s *InsertStmt) Columns(cols ...string) *InsertStmt {
	s.cols = cols
	return s
}

// Values sets the bound values, matching Columns positionally.
func (s *InsertStmt) Values(vals ...any) *InsertStmt {
	s.vals = vals
	return s
}

// Returning requests the listed columns back from the insert. Supported
// on postgres and sqlite; Compile rejects it for mysql.
func (s *InsertStmt) Returning(cols ...string) *InsertStmt {
	s.returning = cols
	return s
}

// Compile renders the statement for the dialect.
func (s *InsertStmt) Compile(dialect string) (string, []any, error) {
	if s.table == "" || len(s.cols) == 0 {
		return "", nil, fmt.Errorf("sqlast: insert needs a table and columns")
	}
	if len(s.cols) != len(s.vals) {
		return "", nil, fmt.Errorf("sqlast: insert has %d columns but %d values", len(s.cols), len(s.vals))
	}
	if len(s.returning) > 0 && dialect == MySQL {
		return "", nil, fmt.Errorf("sqlast: RETURNING is not supported on mysql")
	}
	b, err := newBuilder(dialect)
	if err != nil {
		return "", nil, err
	}
	b.write("INSERT INTO ")
	b.ident(s.table)
	b.write(" (")
	b.idents(s.cols)
	b.write(") VALUES (")
	for i, v := range s.vals {
		if i > 0 {
			b.write(", ")
		}
		b.arg(v)
	}
	b.write(")")
	if len(s.returning) > 0 {
		b.write(" RETURNING ")
		b.idents(s.returning)
	}
	return b.sb.String(), b.args, nil
}

// --- UPDATE ---

// UpdateStmt describes an UPDATE statement.
type UpdateStmt struct {
	table string
	cols  []string
	vals  []any
	where Predicate
}

// Update starts an UPDATE of the given table.
func Update(table string) *UpdateStmt {
	return &UpdateStmt{table: table}
}

// Set appends one column assignment.
func (s *UpdateStmt) Set(col string, v any) *UpdateStmt {
	s.cols = append(s.cols, col)
	s.vals = append(s.vals, v)
	return s
}

// Where sets the filter predicate.
func (s *UpdateStmt) Where(p Predicate) *UpdateStmt {
	s.where = p
	return s
}

// Compile renders the statement for the dialect. An UPDATE without a
// predicate is rejected: every caller addresses specific rows.
func (s *UpdateStmt) Compile(dialect string) (string, []any, error) {
	if s.table == "" || len(s.cols) == 0 {
		return "", nil, fmt.Errorf("sqlast: update needs a table and assignments")
	}
	if s.where == nil {
		return "", nil, fmt.Errorf("sqlast: update without a predicate")
	}
	b, err := newBuilder(dialect)
	if err != nil {
		return "", nil, err
	}
	b.write("UPDATE ")
	b.ident(s.table)
	b.write(" SET ")
	for i, col := range s.cols {
		if i > 0 {
			b.write(", ")
		}
		b.ident(col)
		b.write(" = ")
		b.arg(s.vals[i])
	}
	b.write(" WHERE ")
	s.where.append(b)
	return b.sb.String(), b.args, nil
}

// --- DELETE ---

// DeleteStmt describes a DELETE statement.
type DeleteStmt struct {
	table string
	where Predicate
}

// Delete starts a DELETE from the given table.
func Delete(table string) *DeleteStmt {
	return &DeleteStmt{table: table}
}

// Where sets the filter predicate.
func (s *DeleteStmt) Where(p Predicate) *DeleteStmt {
	s.where = p
	return s
}

// Compile renders the statement for the dialect. A DELETE without a
// predicate is rejected.
func (s *DeleteStmt) Compile(dialect string) (string, []any, error) {
	if s.table == "" {
		return "", nil, fmt.Errorf("sqlast: delete needs a table")
	}
	if s.where == nil {
		return "", nil, fmt.Errorf("sqlast: delete without a predicate")
	}
	b, err := newBuilder(dialect)
	if err != nil {
		return "", nil, err
	}
	b.write("DELETE FROM ")
	b.ident(s.table)
	b.write(" WHERE ")
	s.where.append(b)
	return b.sb.String(), b.args, nil
}
