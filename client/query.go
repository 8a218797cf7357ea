package client

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tablodb/tablo/schema"
	"github.com/tablodb/tablo/sqlast"
)

// Query reads records of one entity. Build it up with Where, ordering,
// paging, and Include, then run All or One.
type Query struct {
	c        *Client
	entity   string
	conds    []Cond
	order    string
	desc     bool
	limit    int
	offset   int
	includes []string
}

// Query starts a read over the named entity.
func (c *Client) Query(entity string) *Query {
	return &Query{c: c, entity: entity}
}

// Where adds conditions; all conditions must hold.
func (q *Query) Where(conds ...Cond) *Query {
	q.conds = append(q.conds, conds...)
	return q
}

// OrderAsc sorts ascending by the given field.
func (q *Query) OrderAsc(field string) *Query {
	q.order, q.desc = field, false
	return q
}

// OrderDesc sorts descending by the given field.
func (q *Query) OrderDesc(field string) *Query {
	q.order, q.desc = field, true
	return q
}

// Limit caps the number of returned records.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips the first n records.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// Include attaches related records under the given relation names: the
// inverse name for owned collections ("posts"), the forward name for
// the referenced record ("author"). Each include costs one additional
// query regardless of how many records matched.
func (q *Query) Include(names ...string) *Query {
	q.includes = append(q.includes, names...)
	return q
}

// All runs the query and returns every matching record.
func (q *Query) All(ctx context.Context) ([]Record, error) {
	e, err := q.c.entity(q.entity)
	if err != nil {
		return nil, err
	}
	pred, err := compileConds(q.c.drv.Dialect(), e, q.conds)
	if err != nil {
		return nil, err
	}
	recs, err := q.c.fetch(ctx, q.c.drv, e, pred, q.order, q.desc, q.limit, q.offset)
	if err != nil {
		return nil, err
	}
	if len(q.includes) > 0 && len(recs) > 0 {
		if err := q.c.resolveIncludes(ctx, e, recs, q.includes); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// One runs the query and returns exactly one record; zero matches is a
// NotFoundError.
func (q *Query) One(ctx context.Context) (Record, error) {
	recs, err := q.Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &NotFoundError{Entity: q.entity, Detail: "query matched nothing"}
	}
	return recs[0], nil
}

// includePlan is one resolved include: the relation, its direction, and
// the fetched related records, filled concurrently then attached.
type includePlan struct {
	name    string
	rel     *schema.Relation
	forward bool
	related []Record
}

// resolveIncludes fetches and attaches related records. Each include
// runs as a single IN query over the matched key set; independent
// includes fetch concurrently. Attachment happens afterwards on one
// goroutine, so the record maps are never written concurrently.
func (c *Client) resolveIncludes(ctx context.Context, e *schema.Entity, recs []Record, names []string) error {
	plans := make([]*includePlan, len(names))
	for i, name := range names {
		plan, err := c.planInclude(e, name)
		if err != nil {
			return err
		}
		plans[i] = plan
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, plan := range plans {
		plan := plan
		g.Go(func() error {
			return c.fetchInclude(gctx, plan, recs)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, plan := range plans {
		c.attachInclude(plan, recs)
	}
	return nil
}

func (c *Client) planInclude(e *schema.Entity, name string) (*includePlan, error) {
	for _, rel := range c.snap.InverseRelations(e.Name) {
		if rel.Name == name {
			return &includePlan{name: name, rel: rel}, nil
		}
	}
	for _, rel := range e.Relations {
		if rel.ForwardName() == name {
			return &includePlan{name: name, rel: rel, forward: true}, nil
		}
	}
	return nil, &ValidationError{Entity: e.Name, Field: name, Message: "unknown relation in include"}
}

func (c *Client) fetchInclude(ctx context.Context, plan *includePlan, recs []Record) error {
	rel := plan.rel
	if plan.forward {
		// Owner side: load the referenced records by their identity.
		target, ok := c.snap.Entity(rel.Target)
		if !ok {
			return fmt.Errorf("relation %s references unknown entity %s", plan.name, rel.Target)
		}
		tf, _ := target.Field(rel.TargetField)
		keys := collectKeys(recs, rel.ForeignKey)
		if len(keys) == 0 {
			return nil
		}
		related, err := c.fetch(ctx, c.drv, target, sqlast.In(tf.ColumnName(), keys...), "", false, 0, 0)
		if err != nil {
			return err
		}
		plan.related = related
		return nil
	}

	// Inverse side: load the owning records whose FK points at us.
	owner, ok := c.snap.Entity(rel.Owner)
	if !ok {
		return fmt.Errorf("relation %s owned by unknown entity %s", plan.name, rel.Owner)
	}
	fk, _ := owner.Field(rel.ForeignKey)
	keys := collectKeys(recs, rel.TargetField)
	if len(keys) == 0 {
		return nil
	}
	// Children come back in identity order so collection order is stable.
	order := ""
	if ownerID, ok := owner.Identity(); ok {
		order = ownerID.Name
	}
	related, err := c.fetch(ctx, c.drv, owner, sqlast.In(fk.ColumnName(), keys...), order, false, 0, 0)
	if err != nil {
		return err
	}
	plan.related = related
	return nil
}

func (c *Client) attachInclude(plan *includePlan, recs []Record) {
	rel := plan.rel
	if plan.forward {
		byID := make(map[any]Record, len(plan.related))
		for _, r := range plan.related {
			byID[r[rel.TargetField]] = r
		}
		for _, rec := range recs {
			fkVal := rec[rel.ForeignKey]
			if fkVal == nil {
				rec[plan.name] = nil
				continue
			}
			if related, ok := byID[fkVal]; ok {
				rec[plan.name] = related
			} else {
				rec[plan.name] = nil
			}
		}
		return
	}

	byFK := make(map[any][]Record)
	for _, r := range plan.related {
		key := r[rel.ForeignKey]
		byFK[key] = append(byFK[key], r)
	}
	for _, rec := range recs {
		children := byFK[rec[rel.TargetField]]
		if rel.OneToOne {
			if len(children) > 0 {
				rec[plan.name] = children[0]
			} else {
				rec[plan.name] = nil
			}
			continue
		}
		if children == nil {
			children = []Record{}
		}
		rec[plan.name] = children
	}
}

// collectKeys gathers the distinct non-nil values of a field across the
// record set, preserving first-seen order.
func collectKeys(recs []Record, field string) []any {
	seen := make(map[any]bool, len(recs))
	var keys []any
	for _, rec := range recs {
		v := rec[field]
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		keys = append(keys, v)
	}
	return keys
}
