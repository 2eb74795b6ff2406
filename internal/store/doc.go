// Package store provides the persistent conversation store: an in-memory
// mapping from agent id to ordered message history, written through to a
// durable Backend on every mutation.
//
// # Ownership
//
// The in-memory map is authoritative for the process lifetime. Session
// coordinators never mutate message slices directly; all mutation flows
// through AddMessage, ClearConversation, and ClearAll. Durable-write
// failures are logged and swallowed (write-through, best-effort), matching
// the loss model of mobile local storage: a crash between a mutation and a
// successful flush is the only loss window.
//
// # Backends
//
// SQLiteBackend persists conversations and messages in a WAL-mode SQLite
// database, rehydrated wholesale at startup and written incrementally per
// message. MockBackend is an in-memory backend for tests with write
// counting and failure injection.
//
// # Concurrency
//
// All store methods are safe from any goroutine. Each conversation context
// owns a disjoint agent id key, so no cross-key coordination exists or is
// needed.
package store
