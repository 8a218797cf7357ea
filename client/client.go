// Package client is the runtime data access layer: schema-validated
// create, read, update, and delete over a migrated store, with
// relation-aware reads that batch secondary lookups.
//
// All values cross the API as Record maps keyed by logical field name.
// Every payload is checked against the snapshot before any statement is
// issued, so a malformed write never reaches the store.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tablodb/tablo/driver"
	"github.com/tablodb/tablo/schema"
	"github.com/tablodb/tablo/sqlast"
)

// Record is one entity instance keyed by logical field name. Reads
// return canonical Go values per field type: int64, float64, string,
// bool, time.Time, or nil. Included relations appear under the
// relation's name as []Record (collections) or Record (singletons).
type Record map[string]any

// Client executes validated operations against one store using one
// schema snapshot. It is safe for concurrent use.
type Client struct {
	drv  *driver.Driver
	snap *schema.Snapshot
}

// New returns a client over the given store and snapshot. The snapshot
// must match what migrate applied; the client trusts it blindly.
func New(drv *driver.Driver, snap *schema.Snapshot) *Client {
	return &Client{drv: drv, snap: snap}
}

// Snapshot returns the schema the client operates under.
func (c *Client) Snapshot() *schema.Snapshot { return c.snap }

func (c *Client) entity(name string) (*schema.Entity, error) {
	e, ok := c.snap.Entity(name)
	if !ok {
		return nil, &ValidationError{Entity: name, Message: "unknown entity"}
	}
	return e, nil
}

// Create inserts one record. Missing fields with declared defaults are
// generated client-side (now, uuid, constants); auto-increment
// identities must be absent and are assigned by the store. The stored
// record is read back and returned.
func (c *Client) Create(ctx context.Context, entity string, data Record) (Record, error) {
	e, err := c.entity(entity)
	if err != nil {
		return nil, err
	}
	for key := range data {
		if _, ok := e.Field(key); !ok {
			return nil, &ValidationError{Entity: entity, Field: key, Message: "unknown field"}
		}
	}

	now := time.Now().UTC()
	var cols []string
	var vals []any
	var idValue any
	var autoID *schema.Field

	for _, f := range e.Fields {
		v, present := data[f.Name]
		if f.Default == schema.DefaultAutoIncrement {
			if present {
				return nil, &ValidationError{Entity: entity, Field: f.Name, Message: "value is store-generated"}
			}
			autoID = f
			continue
		}
		if !present {
			switch f.Default {
			case schema.DefaultStatic:
				v = f.DefaultValue
			case schema.DefaultNow:
				v = now
			case schema.DefaultUUID:
				v = uuid.NewString()
			default:
				if f.OnUpdateNow {
					v = now
				} else if !f.Nullable {
					return nil, &ValidationError{Entity: entity, Field: f.Name, Message: "field is required"}
				} else {
					continue
				}
			}
		}
		ev, err := encodeValue(c.drv.Dialect(), entity, f, v)
		if err != nil {
			return nil, err
		}
		cols = append(cols, f.ColumnName())
		vals = append(vals, ev)
		if f.Identity {
			idValue = v
		}
	}

	var query string
	var args []any
	if len(cols) == 0 {
		// Every column is store-generated.
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", c.quoteTable(e))
		if c.drv.Dialect() == driver.MySQL {
			query = fmt.Sprintf("INSERT INTO %s () VALUES ()", c.quoteTable(e))
		} else if autoID != nil {
			query += fmt.Sprintf(" RETURNING %q", autoID.ColumnName())
		}
	} else {
		ins := sqlast.Insert(e.TableName()).Columns(cols...).Values(vals...)
		if autoID != nil && c.drv.Dialect() != driver.MySQL {
			ins = ins.Returning(autoID.ColumnName())
		}
		var err error
		query, args, err = ins.Compile(c.drv.Dialect())
		if err != nil {
			return nil, err
		}
	}

	if autoID == nil {
		if _, err := c.drv.ExecContext(ctx, query, args...); err != nil {
			return nil, c.storeError(entity, err)
		}
	} else if c.drv.Dialect() == driver.MySQL {
		res, err := c.drv.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, c.storeError(entity, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("%s: reading generated identity: %w", entity, err)
		}
		idValue = id
	} else {
		rows, err := c.drv.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, c.storeError(entity, err)
		}
		var id int64
		if rows.Next() {
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%s: reading generated identity: %w", entity, err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		idValue = id
	}

	return c.Get(ctx, entity, idValue)
}

// Get reads one record by identity value.
func (c *Client) Get(ctx context.Context, entity string, id any) (Record, error) {
	e, err := c.entity(entity)
	if err != nil {
		return nil, err
	}
	idField, ok := e.Identity()
	if !ok {
		return nil, &ValidationError{Entity: entity, Message: "entity has no identity field"}
	}
	return c.Query(entity).Where(Eq(idField.Name, id)).One(ctx)
}

// Update applies changes to every record matching conds, inside one
// transaction, and returns the resulting records. Matching zero records
// is a NotFoundError. Identity fields cannot change; fields declared
// with an on-update timestamp are refreshed automatically.
func (c *Client) Update(ctx context.Context, entity string, conds []Cond, changes Record) ([]Record, error) {
	e, err := c.entity(entity)
	if err != nil {
		return nil, err
	}
	if len(conds) == 0 {
		return nil, &ValidationError{Entity: entity, Message: "update requires at least one condition"}
	}
	if len(changes) == 0 {
		return nil, &ValidationError{Entity: entity, Message: "update requires at least one change"}
	}
	idField, ok := e.Identity()
	if !ok {
		return nil, &ValidationError{Entity: entity, Message: "entity has no identity field"}
	}

	type setPair struct {
		col string
		val any
	}
	var sets []setPair
	for key, v := range changes {
		f, ok := e.Field(key)
		if !ok {
			return nil, &ValidationError{Entity: entity, Field: key, Message: "unknown field"}
		}
		if f.Identity {
			return nil, &ValidationError{Entity: entity, Field: key, Message: "identity is immutable"}
		}
		ev, err := encodeValue(c.drv.Dialect(), entity, f, v)
		if err != nil {
			return nil, err
		}
		sets = append(sets, setPair{f.ColumnName(), ev})
	}
	now := time.Now().UTC()
	for _, f := range e.Fields {
		if !f.OnUpdateNow {
			continue
		}
		if _, chosen := changes[f.Name]; chosen {
			continue
		}
		ev, err := encodeValue(c.drv.Dialect(), entity, f, now)
		if err != nil {
			return nil, err
		}
		sets = append(sets, setPair{f.ColumnName(), ev})
	}

	pred, err := compileConds(c.drv.Dialect(), e, conds)
	if err != nil {
		return nil, err
	}

	tx, err := c.drv.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids, err := c.matchingIDs(ctx, tx, e, idField, pred)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, &NotFoundError{Entity: entity, Detail: "no record matches the update conditions"}
	}

	upd := sqlast.Update(e.TableName()).Where(sqlast.In(idField.ColumnName(), ids...))
	for _, s := range sets {
		upd = upd.Set(s.col, s.val)
	}
	query, args, err := upd.Compile(c.drv.Dialect())
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, c.storeError(entity, err)
	}

	recs, err := c.fetch(ctx, tx, e, sqlast.In(idField.ColumnName(), ids...), idField.Name, false, 0, 0)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return recs, nil
}

// Delete removes every record matching conds, inside one transaction,
// and returns the records as they were before removal. Deleting with no
// conditions is refused, and matching zero records is a NotFoundError.
// Relations declared with cascade remove their dependents; otherwise
// dependents make the delete fail with a foreign-key ConstraintError.
func (c *Client) Delete(ctx context.Context, entity string, conds []Cond) ([]Record, error) {
	e, err := c.entity(entity)
	if err != nil {
		return nil, err
	}
	if len(conds) == 0 {
		return nil, &ValidationError{Entity: entity, Message: "delete requires at least one condition"}
	}
	idField, ok := e.Identity()
	if !ok {
		return nil, &ValidationError{Entity: entity, Message: "entity has no identity field"}
	}
	pred, err := compileConds(c.drv.Dialect(), e, conds)
	if err != nil {
		return nil, err
	}

	tx, err := c.drv.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	recs, err := c.fetch(ctx, tx, e, pred, idField.Name, false, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &NotFoundError{Entity: entity, Detail: "no record matches the delete conditions"}
	}
	ids := make([]any, len(recs))
	for i, rec := range recs {
		ids[i] = rec[idField.Name]
	}

	query, args, err := sqlast.Delete(e.TableName()).Where(sqlast.In(idField.ColumnName(), ids...)).Compile(c.drv.Dialect())
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, c.storeError(entity, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *Client) matchingIDs(ctx context.Context, conn driver.ExecQuerier, e *schema.Entity, idField *schema.Field, pred sqlast.Predicate) ([]any, error) {
	sel := sqlast.Select(idField.ColumnName()).From(e.TableName())
	if pred != nil {
		sel = sel.Where(pred)
	}
	query, args, err := sel.Compile(c.drv.Dialect())
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		dv, err := decodeValue(e.Name, idField, v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, dv)
	}
	return ids, rows.Err()
}

// fetch runs a select over all of the entity's columns and decodes the
// rows into records.
func (c *Client) fetch(ctx context.Context, conn driver.ExecQuerier, e *schema.Entity, pred sqlast.Predicate, orderField string, orderDesc bool, limit, offset int) ([]Record, error) {
	cols := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		cols[i] = f.ColumnName()
	}
	sel := sqlast.Select(cols...).From(e.TableName())
	if pred != nil {
		sel = sel.Where(pred)
	}
	if orderField != "" {
		f, ok := e.Field(orderField)
		if !ok {
			return nil, &ValidationError{Entity: e.Name, Field: orderField, Message: "unknown field in order"}
		}
		if orderDesc {
			sel = sel.OrderDesc(f.ColumnName())
		} else {
			sel = sel.OrderAsc(f.ColumnName())
		}
	}
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	if offset > 0 {
		sel = sel.Offset(offset)
	}
	query, args, err := sel.Compile(c.drv.Dialect())
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		raw := make([]any, len(e.Fields))
		ptrs := make([]any, len(e.Fields))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(Record, len(e.Fields))
		for i, f := range e.Fields {
			dv, err := decodeValue(e.Name, f, raw[i])
			if err != nil {
				return nil, err
			}
			rec[f.Name] = dv
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (c *Client) quoteTable(e *schema.Entity) string {
	if c.drv.Dialect() == driver.MySQL {
		return "`" + e.TableName() + "`"
	}
	return `"` + e.TableName() + `"`
}

// storeError maps backend failures onto the client's error types.
func (c *Client) storeError(entity string, err error) error {
	switch {
	case driver.IsUniqueViolation(err):
		return &ConstraintError{Entity: entity, Kind: UniqueConstraint, Constraint: driver.ConstraintName(err), Err: err}
	case driver.IsForeignKeyViolation(err):
		return &ConstraintError{Entity: entity, Kind: ForeignKeyConstraint, Constraint: driver.ConstraintName(err), Err: err}
	}
	return err
}
