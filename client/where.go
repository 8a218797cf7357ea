package client

import (
	"fmt"

	"github.com/tablodb/tablo/schema"
	"github.com/tablodb/tablo/sqlast"
)

// Cond is one field-level condition on a query. Conditions combine
// with AND; build them with Eq, Gt, In and friends.
type Cond struct {
	field  string
	op     string
	value  any
	values []any
	isNull bool
}

// Eq matches records whose field equals v. A nil v matches NULL.
func Eq(field string, v any) Cond {
	if v == nil {
		return Cond{field: field, isNull: true}
	}
	return Cond{field: field, op: "=", value: v}
}

// Neq matches records whose field differs from v.
func Neq(field string, v any) Cond { return Cond{field: field, op: "<>", value: v} }

// Gt matches records whose field is greater than v.
func Gt(field string, v any) Cond { return Cond{field: field, op: ">", value: v} }

// Gte matches records whose field is at least v.
func Gte(field string, v any) Cond { return Cond{field: field, op: ">=", value: v} }

// Lt matches records whose field is less than v.
func Lt(field string, v any) Cond { return Cond{field: field, op: "<", value: v} }

// Lte matches records whose field is at most v.
func Lte(field string, v any) Cond { return Cond{field: field, op: "<=", value: v} }

// In matches records whose field equals any of vals. An empty list
// matches nothing.
func In(field string, vals ...any) Cond {
	return Cond{field: field, op: "in", values: vals}
}

// compile validates the condition against the entity and lowers it to a
// predicate over physical column names.
func (c Cond) compile(dialect string, e *schema.Entity) (sqlast.Predicate, error) {
	f, ok := e.Field(c.field)
	if !ok {
		return nil, &ValidationError{Entity: e.Name, Field: c.field, Message: "unknown field in condition"}
	}
	col := f.ColumnName()
	if c.isNull {
		return sqlast.IsNull(col), nil
	}
	if c.op == "in" {
		encoded := make([]any, len(c.values))
		for i, v := range c.values {
			ev, err := encodeValue(dialect, e.Name, f, v)
			if err != nil {
				return nil, err
			}
			encoded[i] = ev
		}
		return sqlast.In(col, encoded...), nil
	}
	ev, err := encodeValue(dialect, e.Name, f, c.value)
	if err != nil {
		return nil, err
	}
	switch c.op {
	case "=":
		return sqlast.EQ(col, ev), nil
	case "<>":
		return sqlast.NEQ(col, ev), nil
	case ">":
		return sqlast.GT(col, ev), nil
	case ">=":
		return sqlast.GTE(col, ev), nil
	case "<":
		return sqlast.LT(col, ev), nil
	case "<=":
		return sqlast.LTE(col, ev), nil
	}
	return nil, fmt.Errorf("unknown condition operator %q", c.op)
}

func compileConds(dialect string, e *schema.Entity, conds []Cond) (sqlast.Predicate, error) {
	if len(conds) == 0 {
		return nil, nil
	}
	preds := make([]sqlast.Predicate, len(conds))
	for i, c := range conds {
		p, err := c.compile(dialect, e)
		if err != nil {
			return nil, err
		}
		preds[i] = p
	}
	return sqlast.And(preds...), nil
}
