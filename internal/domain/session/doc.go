// Package session owns the process-wide registry of revision sessions.
//
// A session binds an opaque id to its current blueprint, the append-only
// history of applied deltas, and build metadata. The store is the only
// shared resource between builds: reads are concurrent, writes are
// serialized per session id. Sessions are never dropped automatically;
// eviction is an operational concern handled outside this package.
package session
