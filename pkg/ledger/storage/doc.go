// Package storage provides persistence backends for the cost ledger:
// immutable cost records, the alert inbox, and the budget singleton.
//
// Cost records are append-only and form the spend audit trail; they are
// removed only by retention pruning. Alerts are never deleted, only flipped
// to acknowledged. Two backends are provided:
//
//   - MemoryBackend: fast, no persistence, default
//   - SQLiteBackend: durable append-heavy store (mattn/go-sqlite3)
//
// All backends are safe for concurrent use.
package storage
