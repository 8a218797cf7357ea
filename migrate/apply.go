package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tablodb/tablo/driver"
	"github.com/tablodb/tablo/schema"
)

// Migrator applies schema snapshots to a store, one named migration at
// a time, recording each in the ledger.
type Migrator struct {
	drv    *driver.Driver
	ledger *Ledger

	logf             func(format string, args ...any)
	allowDestructive bool
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger routes the migrator's progress messages to fn. Without it
// the migrator is silent.
func WithLogger(fn func(format string, args ...any)) Option {
	return func(m *Migrator) { m.logf = fn }
}

// WithAllowDestructive permits plans that drop entities or fields, or
// that narrow existing columns. Without it such plans fail with
// DestructiveError before any statement runs.
func WithAllowDestructive() Option {
	return func(m *Migrator) { m.allowDestructive = true }
}

// NewMigrator returns a migrator bound to the given store.
func NewMigrator(drv *driver.Driver, opts ...Option) *Migrator {
	m := &Migrator{
		drv:    drv,
		ledger: NewLedger(drv.Dialect()),
		logf:   func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Plan computes the statements that Apply would run to bring the store
// from its latest recorded snapshot to target, without touching
// anything but the ledger table. The returned warnings flag
// potentially destructive changes.
func (m *Migrator) Plan(ctx context.Context, target *schema.Snapshot) ([]string, []Warning, error) {
	if err := m.ledger.EnsureSchema(ctx, m.drv); err != nil {
		return nil, nil, err
	}
	prev, err := m.previous(ctx)
	if err != nil {
		return nil, nil, err
	}
	ops, warns := Diff(prev, target)
	planner, err := NewPlanner(m.drv.Dialect())
	if err != nil {
		return nil, nil, err
	}
	stmts, err := planner.Plan(ops)
	if err != nil {
		return nil, nil, err
	}
	return stmts, warns, nil
}

// Apply brings the store to the target snapshot under the given
// migration name. The diff is taken against the latest recorded
// snapshot. A name already present in the ledger is a no-op returning
// the stored record, provided the stored snapshot matches the target.
//
// All statements and the ledger insert run in one transaction; any
// failure rolls everything back. Apply never retries: the caller
// decides what a ConnectionLost means for its deployment.
func (m *Migrator) Apply(ctx context.Context, name string, target *schema.Snapshot) (*Record, error) {
	if err := m.ledger.EnsureSchema(ctx, m.drv); err != nil {
		return nil, err
	}

	sum, err := target.Checksum()
	if err != nil {
		return nil, err
	}

	if rec, ok, err := m.applied(ctx, name, sum); err != nil || ok {
		return rec, err
	}

	prev, err := m.previous(ctx)
	if err != nil {
		return nil, err
	}

	ops, warns := Diff(prev, target)
	for _, w := range warns {
		m.logf("warning: %s", w)
	}
	if !m.allowDestructive {
		var destructive []Op
		for _, op := range ops {
			if op.Destructive() {
				destructive = append(destructive, op)
			}
		}
		if len(destructive) > 0 {
			return nil, &DestructiveError{Migration: name, Ops: destructive}
		}
	}

	planner, err := NewPlanner(m.drv.Dialect())
	if err != nil {
		return nil, err
	}
	stmts, err := planner.Plan(ops)
	if err != nil {
		if ae, ok := err.(*ApplyError); ok {
			ae.Migration = name
		}
		return nil, err
	}

	rec := &Record{
		Name:      name,
		Checksum:  sum,
		AppliedAt: time.Now().UTC(),
		Snapshot:  target,
	}

	tx, err := m.drv.BeginTx(ctx)
	if err != nil {
		return nil, m.classify(name, "", nil, err)
	}

	var attempted []string
	for _, stmt := range stmts {
		attempted = append(attempted, stmt)
		m.logf("exec: %s", stmt)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return nil, m.classify(name, stmt, attempted, err)
		}
	}

	if err := m.ledger.Insert(ctx, tx, rec); err != nil {
		tx.Rollback()
		if driver.IsUniqueViolation(err) {
			// A concurrent apply won the ledger race; take its result.
			m.logf("migration %q applied concurrently, taking no-op path", name)
			rec, _, rerr := m.applied(ctx, name, sum)
			if rerr != nil {
				return nil, rerr
			}
			return rec, nil
		}
		return nil, m.classify(name, "", attempted, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, m.classify(name, "", attempted, err)
	}
	m.logf("migration %q applied (%d statements)", name, len(stmts))
	return rec, nil
}

// Status returns every applied migration in order.
func (m *Migrator) Status(ctx context.Context) ([]*Record, error) {
	if err := m.ledger.EnsureSchema(ctx, m.drv); err != nil {
		return nil, err
	}
	return m.ledger.Records(ctx, m.drv)
}

// Verify checks the ledger's internal consistency. It is meant to run
// at startup; a CorruptLedgerError means migrations must not proceed.
func (m *Migrator) Verify(ctx context.Context) error {
	if err := m.ledger.EnsureSchema(ctx, m.drv); err != nil {
		return err
	}
	return m.ledger.Verify(ctx, m.drv)
}

// Current returns the store's latest recorded snapshot, or nil when no
// migration has been applied.
func (m *Migrator) Current(ctx context.Context) (*schema.Snapshot, error) {
	if err := m.ledger.EnsureSchema(ctx, m.drv); err != nil {
		return nil, err
	}
	return m.previous(ctx)
}

func (m *Migrator) previous(ctx context.Context) (*schema.Snapshot, error) {
	latest, err := m.ledger.Latest(ctx, m.drv)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	return latest.Snapshot, nil
}

// applied resolves the idempotent path: a record with the same name and
// checksum short-circuits to success, a same-named record with a
// different checksum means the migration was edited after being applied.
func (m *Migrator) applied(ctx context.Context, name, sum string) (*Record, bool, error) {
	rec, ok, err := m.ledger.Applied(ctx, m.drv, name)
	if err != nil || !ok {
		return nil, false, err
	}
	if rec.Checksum != sum {
		return nil, false, &CorruptLedgerError{
			Name: name,
			Detail: fmt.Sprintf("already applied with checksum %s, now targeting %s; migrations are immutable once applied",
				rec.Checksum, sum),
		}
	}
	m.logf("migration %q already applied at %s, skipping", name, rec.AppliedAt.Format(time.RFC3339))
	return rec, true, nil
}

// NewMigrationName builds a unique, time-ordered migration name for
// callers that do not manage their own naming.
func NewMigrationName(label string) string {
	return fmt.Sprintf("%s_%s_%s", time.Now().UTC().Format("20060102150405"), label, uuid.NewString()[:8])
}

func (m *Migrator) classify(name, stmt string, attempted []string, err error) error {
	kind := StatementFailed
	switch {
	case driver.IsConnectionLost(err):
		kind = ConnectionLost
	case driver.IsConstraintViolation(err):
		kind = ConstraintViolation
	}
	return &ApplyError{Kind: kind, Migration: name, Statement: stmt, Attempted: attempted, Err: err}
}
