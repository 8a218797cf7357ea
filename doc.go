// Package tablo provides a schema-driven relational data layer.
//
// Author your schema in a small declarative definition language, and get
// versioned schema snapshots, computed migration plans, dialect-specific
// DDL, and a validated CRUD client with relation-aware reads, all without
// writing raw SQL.
//
// The module is organized into six packages:
//
//   - [github.com/tablodb/tablo/schemadef]: definition language parser
//   - [github.com/tablodb/tablo/schema]: schema model with snapshots, entities, fields, relations
//   - [github.com/tablodb/tablo/migrate]: snapshot diffing, DDL planning, transactional apply
//   - [github.com/tablodb/tablo/sqlast]: parameterized SQL statement builders
//   - [github.com/tablodb/tablo/client]: CRUD client with batched relation loading
//   - [github.com/tablodb/tablo/driver]: dialect-tagged handle over database/sql
//
// The schemadef, schema, migrate, and sqlast packages compile and test
// without a running database. The driver package works with any registered
// database/sql driver for the sqlite, postgres, and mysql dialects.
package tablo
