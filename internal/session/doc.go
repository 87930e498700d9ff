// Package session binds each chat user to an assistant session.
//
// The Store owns all per-user conversation state: the opaque backend session
// id, the last-active timestamp, the utterance history and the most recent
// assistant context. Sessions are created on first contact or on an explicit
// reset and replaced in place; they are never swept. Expiry is checked lazily
// by callers with IsExpired.
//
// Backend session ids come from a Creator chosen once at startup, so the Store
// does not know whether the relay talks to the assistant directly or through a
// proxy. State lives in memory only and is lost on restart.
package session
