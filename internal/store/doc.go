// Package store keeps an append-only transcript of exchanged turns in SQLite.
//
// The ledger is an audit trail for operators: every user utterance sent to
// the assistant and every reply text posted back is recorded with the user,
// the local session id and the backend session id at the time. It is never
// read back to rebuild sessions; live session state is in memory only.
//
// SQLiteStore uses the pure-Go modernc.org/sqlite driver in WAL mode and
// creates its schema on open. MockStore is an in-memory implementation for
// tests.
package store
