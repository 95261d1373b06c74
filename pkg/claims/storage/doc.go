// Package storage provides claims.Store implementations.
//
// Two backends are available:
//
//   - SQLiteStore - the production backend over database/sql. The driver is
//     selectable: "sqlite3" (mattn/go-sqlite3, cgo) or "sqlite"
//     (modernc.org/sqlite, pure Go) for environments without a C toolchain.
//   - MemoryStore - an in-memory backend for tests, mirroring the SQLite
//     backend's ordering and error contracts.
//
// The single-pending-review invariant and the one-row-per-(api,hash)
// snapshot rule are enforced here, at the store level, because the
// service-level read-then-insert checks are racy under concurrency.
package storage
