package migrate

import (
	"fmt"
	"strings"

	"github.com/tablodb/tablo/driver"
	"github.com/tablodb/tablo/schema"
)

// Planner lowers diff operations into DDL statements for one dialect.
type Planner struct {
	dialect string
}

// NewPlanner returns a planner for the given dialect.
func NewPlanner(dialect string) (*Planner, error) {
	if !driver.Supported(dialect) {
		return nil, &ApplyError{
			Kind: DialectUnsupported,
			Err:  fmt.Errorf("unknown dialect %q", dialect),
		}
	}
	return &Planner{dialect: dialect}, nil
}

// Dialect returns the dialect the planner emits DDL for.
func (p *Planner) Dialect() string { return p.dialect }

// Plan lowers the operations into executable DDL statements, in order.
//
// SQLite cannot add a foreign-key constraint to an existing table, so
// relation constraints targeting a table created in the same plan are
// folded into its CREATE TABLE; an AddRelation on a pre-existing SQLite
// table is rejected as DialectUnsupported. Similarly SQLite rejects
// type and nullability alterations outright.
func (p *Planner) Plan(ops []Op) ([]string, error) {
	created := make(map[string]bool)
	dropped := make(map[string]bool)
	for _, op := range ops {
		switch op := op.(type) {
		case CreateEntity:
			created[op.Entity.TableName()] = true
		case DropEntity:
			dropped[op.Table] = true
		}
	}

	// On SQLite, constraints for freshly created tables are inlined.
	inline := make(map[string][]AddRelation)
	if p.dialect == driver.SQLite {
		for _, op := range ops {
			if rel, ok := op.(AddRelation); ok && created[rel.OwnerTable] {
				inline[rel.OwnerTable] = append(inline[rel.OwnerTable], rel)
			}
		}
	}

	var stmts []string
	for _, op := range ops {
		switch op := op.(type) {
		case CreateEntity:
			stmts = append(stmts, p.createTable(op.Entity, inline[op.Entity.TableName()])...)
		case DropEntity:
			stmts = append(stmts, fmt.Sprintf("DROP TABLE %s", p.ident(op.Table)))
		case AddField:
			s, err := p.addColumn(op)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s...)
		case DropField:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
				p.ident(op.Table), p.ident(op.Column)))
		case AlterField:
			s, err := p.alterColumn(op)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s...)
		case AddRelation:
			s, err := p.addRelation(op, created)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s...)
		case DropRelation:
			s, err := p.dropRelation(op, dropped)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s...)
		default:
			return nil, &ApplyError{
				Kind: DialectUnsupported,
				Err:  fmt.Errorf("unknown operation %T", op),
			}
		}
	}
	return stmts, nil
}

func (p *Planner) createTable(e *schema.Entity, rels []AddRelation) []string {
	fkByColumn := make(map[string]AddRelation, len(rels))
	for _, r := range rels {
		fkByColumn[r.FKColumn] = r
	}

	var cols []string
	for _, f := range e.Fields {
		cols = append(cols, p.columnDef(f))
	}
	for _, r := range rels {
		cols = append(cols, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)%s",
			p.ident(r.FKColumn), p.ident(r.TargetTable), p.ident(r.TargetColumn),
			cascadeClause(r.Relation)))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE %s (%s)",
		p.ident(e.TableName()), strings.Join(cols, ", "))}

	// Uniqueness lives in named indexes so it can be dropped and added
	// without rebuilding the table.
	for _, f := range e.Fields {
		if f.Unique && !f.Identity {
			stmts = append(stmts, p.createUniqueIndex(e.TableName(), f.ColumnName()))
		}
	}
	for _, r := range rels {
		stmts = append(stmts, p.createFKIndex(r))
	}
	return stmts
}

func (p *Planner) addColumn(op AddField) ([]string, error) {
	f := op.Field
	if f.Default == schema.DefaultAutoIncrement {
		return nil, &ApplyError{
			Kind: DialectUnsupported,
			Err: fmt.Errorf("cannot add auto-increment field %s.%s to an existing entity",
				op.Entity, f.Name),
		}
	}
	if f.Identity {
		// ADD COLUMN ... PRIMARY KEY is rejected by every backend.
		return nil, &ApplyError{
			Kind: DialectUnsupported,
			Err: fmt.Errorf("cannot add identity field %s.%s to an existing entity",
				op.Entity, f.Name),
		}
	}
	if !f.Nullable && f.Default != schema.DefaultStatic {
		// Generated defaults (now, uuid) are computed in the client and
		// cannot backfill rows that already exist.
		return nil, &ApplyError{
			Kind: ConstraintViolation,
			Err: fmt.Errorf("new required field %s.%s needs a constant default for existing records",
				op.Entity, f.Name),
		}
	}
	stmts := []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
		p.ident(op.Table), p.columnDef(f))}
	if f.Unique {
		stmts = append(stmts, p.createUniqueIndex(op.Table, f.ColumnName()))
	}
	return stmts, nil
}

func (p *Planner) alterColumn(op AlterField) ([]string, error) {
	from, to := op.From, op.To
	var stmts []string

	if from.Identity != to.Identity {
		// Moving the primary key rewrites the table constraint and every
		// foreign key referencing it.
		return nil, &ApplyError{
			Kind: DialectUnsupported,
			Err: fmt.Errorf("cannot change the identity of %s.%s in place; recreate the entity instead",
				op.Table, to.ColumnName()),
		}
	}

	structural := from.Type != to.Type ||
		from.Nullable != to.Nullable ||
		from.Default != to.Default ||
		from.DefaultValue != to.DefaultValue

	if structural {
		switch p.dialect {
		case driver.SQLite:
			return nil, &ApplyError{
				Kind: DialectUnsupported,
				Err: fmt.Errorf("sqlite cannot alter column %s.%s in place; recreate the entity instead",
					op.Table, to.ColumnName()),
			}
		case driver.MySQL:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s",
				p.ident(op.Table), p.columnDef(to)))
		case driver.Postgres:
			col := p.ident(to.ColumnName())
			table := p.ident(op.Table)
			if from.Type != to.Type {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
					table, col, p.columnType(to), col, p.columnType(to)))
			}
			if from.Nullable != to.Nullable {
				if to.Nullable {
					stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", table, col))
				} else {
					stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, col))
				}
			}
			if from.Default != to.Default || from.DefaultValue != to.DefaultValue {
				if lit, ok := staticDefaultLiteral(to); ok {
					stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", table, col, lit))
				} else {
					stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", table, col))
				}
			}
		}
	}

	if from.Unique != to.Unique {
		if to.Unique {
			stmts = append(stmts, p.createUniqueIndex(op.Table, to.ColumnName()))
		} else {
			stmts = append(stmts, p.dropIndex(op.Table, uniqueIndexName(op.Table, to.ColumnName())))
		}
	}
	return stmts, nil
}

func (p *Planner) addRelation(op AddRelation, created map[string]bool) ([]string, error) {
	if p.dialect == driver.SQLite {
		if created[op.OwnerTable] {
			// Folded into the CREATE TABLE by the plan pass.
			return nil, nil
		}
		return nil, &ApplyError{
			Kind: DialectUnsupported,
			Err: fmt.Errorf("sqlite cannot add a foreign key to existing table %s", op.OwnerTable),
		}
	}
	stmts := []string{fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)%s",
		p.ident(op.OwnerTable), p.ident(op.Relation.ConstraintName()),
		p.ident(op.FKColumn), p.ident(op.TargetTable), p.ident(op.TargetColumn),
		cascadeClause(op.Relation))}
	stmts = append(stmts, p.createFKIndex(op))
	return stmts, nil
}

func (p *Planner) dropRelation(op DropRelation, dropped map[string]bool) ([]string, error) {
	switch p.dialect {
	case driver.Postgres:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s",
			p.ident(op.OwnerTable), p.ident(op.Constraint))}, nil
	case driver.MySQL:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s",
			p.ident(op.OwnerTable), p.ident(op.Constraint))}, nil
	case driver.SQLite:
		if dropped[op.OwnerTable] {
			// The constraint disappears with its table.
			return nil, nil
		}
		return nil, &ApplyError{
			Kind: DialectUnsupported,
			Err: fmt.Errorf("sqlite cannot drop the foreign key on %s without dropping the table", op.OwnerTable),
		}
	}
	return nil, &ApplyError{Kind: DialectUnsupported, Err: fmt.Errorf("unknown dialect %q", p.dialect)}
}

// columnDef renders "name TYPE [constraints]" for one field.
func (p *Planner) columnDef(f *schema.Field) string {
	var sb strings.Builder
	sb.WriteString(p.ident(f.ColumnName()))
	sb.WriteByte(' ')

	if f.Default == schema.DefaultAutoIncrement {
		switch p.dialect {
		case driver.SQLite:
			sb.WriteString("INTEGER PRIMARY KEY AUTOINCREMENT")
		case driver.Postgres:
			if f.Type == schema.TypeBigInt {
				sb.WriteString("BIGSERIAL PRIMARY KEY")
			} else {
				sb.WriteString("SERIAL PRIMARY KEY")
			}
		case driver.MySQL:
			sb.WriteString(p.columnType(f))
			sb.WriteString(" AUTO_INCREMENT PRIMARY KEY")
		}
		return sb.String()
	}

	sb.WriteString(p.columnType(f))
	if f.Identity {
		sb.WriteString(" PRIMARY KEY")
	} else if !f.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if lit, ok := staticDefaultLiteral(f); ok {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(lit)
	}
	return sb.String()
}

// columnType maps a scalar type to the dialect's column type. Generated
// defaults (now, uuid) are computed in the client, so timestamps and
// uuid-bearing strings need no special column type.
func (p *Planner) columnType(f *schema.Field) string {
	switch f.Type {
	case schema.TypeInt:
		if p.dialect == driver.MySQL {
			return "INT"
		}
		return "INTEGER"
	case schema.TypeBigInt:
		return "BIGINT"
	case schema.TypeFloat:
		if p.dialect == driver.Postgres {
			return "DOUBLE PRECISION"
		}
		if p.dialect == driver.MySQL {
			return "DOUBLE"
		}
		return "REAL"
	case schema.TypeString:
		if p.dialect == driver.MySQL {
			if f.Unique || f.Identity {
				// MySQL needs a bounded key length for indexed text.
				return "VARCHAR(255)"
			}
			return "TEXT"
		}
		return "TEXT"
	case schema.TypeBool:
		if p.dialect == driver.MySQL {
			return "TINYINT(1)"
		}
		return "BOOLEAN"
	case schema.TypeTimestamp:
		if p.dialect == driver.Postgres {
			return "TIMESTAMPTZ"
		}
		if p.dialect == driver.MySQL {
			return "DATETIME(6)"
		}
		return "TEXT"
	}
	return strings.ToUpper(string(f.Type))
}

func (p *Planner) createUniqueIndex(table, column string) string {
	return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
		p.ident(uniqueIndexName(table, column)), p.ident(table), p.ident(column))
}

func (p *Planner) createFKIndex(op AddRelation) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		p.ident(fkIndexName(op.OwnerTable, op.FKColumn)), p.ident(op.OwnerTable), p.ident(op.FKColumn))
}

func (p *Planner) dropIndex(table, name string) string {
	if p.dialect == driver.MySQL {
		return fmt.Sprintf("DROP INDEX %s ON %s", p.ident(name), p.ident(table))
	}
	return fmt.Sprintf("DROP INDEX %s", p.ident(name))
}

func (p *Planner) ident(name string) string {
	if p.dialect == driver.MySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

func uniqueIndexName(table, column string) string {
	return fmt.Sprintf("ux_%s_%s", table, column)
}

func fkIndexName(table, column string) string {
	return fmt.Sprintf("ix_%s_%s", table, column)
}

func cascadeClause(r *schema.Relation) string {
	if r.OnDeleteCascade {
		return " ON DELETE CASCADE"
	}
	return ""
}

// staticDefaultLiteral renders a DefaultStatic value as a SQL literal.
// Generated defaults are computed client-side and get no DDL default.
func staticDefaultLiteral(f *schema.Field) (string, bool) {
	if f.Default != schema.DefaultStatic {
		return "", false
	}
	switch v := f.DefaultValue.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", true
	case bool:
		if v {
			return "TRUE", true
		}
		return "FALSE", true
	case int64:
		return fmt.Sprintf("%d", v), true
	case float64:
		return fmt.Sprintf("%g", v), true
	}
	return "", false
}
