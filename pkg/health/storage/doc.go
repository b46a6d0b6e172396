// Package storage provides persistence backends for provider health state.
//
// The Monitor keeps authoritative state in memory and writes snapshots
// through a Backend so that counters and breaker state survive restarts.
// Two backends are provided:
//
//   - MemoryBackend: fast, no persistence, default
//   - SQLiteBackend: durable single-instance persistence (modernc.org/sqlite)
//
// All backends are safe for concurrent use.
package storage
