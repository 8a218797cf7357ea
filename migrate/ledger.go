package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tablodb/tablo/driver"
	"github.com/tablodb/tablo/schema"
)

// LedgerTable is the reserved table holding applied migrations.
const LedgerTable = "_tablo_migrations"

// appliedAtLayout is RFC 3339 with a fixed-width nine-digit fraction.
// time.RFC3339Nano trims trailing zeros, which breaks lexicographic
// ordering ("...00.15Z" would sort before "...00.1Z"), so the ledger
// always writes all nine digits.
const appliedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one applied migration as stored in the ledger.
type Record struct {
	Name      string
	Checksum  string
	AppliedAt time.Time
	// Snapshot is the full schema after this migration, decoded from
	// the stored blob.
	Snapshot *schema.Snapshot
}

// Ledger reads and writes the migration history table.
type Ledger struct {
	dialect string
}

// NewLedger returns a ledger accessor for the given dialect.
func NewLedger(dialect string) *Ledger {
	return &Ledger{dialect: dialect}
}

func (l *Ledger) ident(name string) string {
	if l.dialect == driver.MySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

func (l *Ledger) placeholder(n int) string {
	if l.dialect == driver.Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// EnsureSchema creates the ledger table if it does not exist.
func (l *Ledger) EnsureSchema(ctx context.Context, conn driver.ExecQuerier) error {
	blob := "BLOB"
	if l.dialect == driver.Postgres {
		blob = "BYTEA"
	}
	text := "TEXT"
	if l.dialect == driver.MySQL {
		// The name column is the primary key and needs a bounded length.
		text = "VARCHAR(255)"
	}
	// applied_at is stored as RFC 3339 text so lexicographic order is
	// chronological order on every backend.
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s %s PRIMARY KEY, %s TEXT NOT NULL, %s %s NOT NULL, %s TEXT NOT NULL)",
		l.ident(LedgerTable),
		l.ident("name"), text,
		l.ident("checksum"),
		l.ident("snapshot"), blob,
		l.ident("applied_at"),
	)
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating migration ledger: %w", err)
	}
	return nil
}

// Applied returns the record with the given name, if any.
func (l *Ledger) Applied(ctx context.Context, conn driver.ExecQuerier, name string) (*Record, bool, error) {
	stmt := fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s WHERE %s = %s",
		l.ident("name"), l.ident("checksum"), l.ident("snapshot"), l.ident("applied_at"),
		l.ident(LedgerTable), l.ident("name"), l.placeholder(1))
	rows, err := conn.QueryContext(ctx, stmt, name)
	if err != nil {
		return nil, false, fmt.Errorf("reading migration ledger: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("reading migration ledger: %w", err)
		}
		return nil, false, nil
	}
	rec, err := scanRecord(rows)
	if err != nil {
		return nil, false, err
	}
	return rec, true, rows.Close()
}

// Records returns every applied migration in application order.
func (l *Ledger) Records(ctx context.Context, conn driver.ExecQuerier) ([]*Record, error) {
	stmt := fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s ORDER BY %s, %s",
		l.ident("name"), l.ident("checksum"), l.ident("snapshot"), l.ident("applied_at"),
		l.ident(LedgerTable), l.ident("applied_at"), l.ident("name"))
	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("reading migration ledger: %w", err)
	}
	defer rows.Close()
	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading migration ledger: %w", err)
	}
	return recs, nil
}

// Latest returns the most recently applied record, or nil when the
// ledger is empty.
func (l *Ledger) Latest(ctx context.Context, conn driver.ExecQuerier) (*Record, error) {
	recs, err := l.Records(ctx, conn)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[len(recs)-1], nil
}

// Insert records an applied migration. It is meant to run inside the
// same transaction as the migration's DDL so the record and the
// structural change commit together.
func (l *Ledger) Insert(ctx context.Context, conn driver.ExecQuerier, rec *Record) error {
	blob, err := schema.EncodeSnapshot(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot for %q: %w", rec.Name, err)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s) VALUES (%s, %s, %s, %s)",
		l.ident(LedgerTable),
		l.ident("name"), l.ident("checksum"), l.ident("snapshot"), l.ident("applied_at"),
		l.placeholder(1), l.placeholder(2), l.placeholder(3), l.placeholder(4))
	_, err = conn.ExecContext(ctx, stmt,
		rec.Name, rec.Checksum, blob, rec.AppliedAt.UTC().Format(appliedAtLayout))
	return err
}

// Verify checks the internal consistency of every record: each stored
// snapshot must decode, and its recomputed checksum must match the
// stored one. A mismatch means the history was tampered with or
// corrupted and migrations must not proceed.
func (l *Ledger) Verify(ctx context.Context, conn driver.ExecQuerier) error {
	recs, err := l.Records(ctx, conn)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		sum, err := rec.Snapshot.Checksum()
		if err != nil {
			return &CorruptLedgerError{Name: rec.Name, Detail: err.Error()}
		}
		if sum != rec.Checksum {
			return &CorruptLedgerError{
				Name:   rec.Name,
				Detail: fmt.Sprintf("stored checksum %s does not match snapshot checksum %s", rec.Checksum, sum),
			}
		}
	}
	return nil
}

func scanRecord(rows *sql.Rows) (*Record, error) {
	var (
		name, checksum, appliedAt string
		blob                      []byte
	)
	if err := rows.Scan(&name, &checksum, &blob, &appliedAt); err != nil {
		return nil, fmt.Errorf("scanning migration ledger: %w", err)
	}
	snap, err := schema.DecodeSnapshot(blob)
	if err != nil {
		return nil, &CorruptLedgerError{Name: name, Detail: fmt.Sprintf("undecodable snapshot: %v", err)}
	}
	// Parsed with the permissive layout so ledgers written before the
	// fixed-width format still load.
	ts, err := time.Parse(time.RFC3339Nano, appliedAt)
	if err != nil {
		return nil, &CorruptLedgerError{Name: name, Detail: fmt.Sprintf("bad applied_at %q", appliedAt)}
	}
	return &Record{Name: name, Checksum: checksum, AppliedAt: ts, Snapshot: snap}, nil
}
