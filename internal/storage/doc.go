// Package storage persists schedule definitions and the append-only
// execution history in SQLite (modernc.org/sqlite, no cgo).
//
// Timestamps are stored as unix milliseconds. Mutations of schedules go
// through a Tx so the caller can arm timers before committing.
package storage
