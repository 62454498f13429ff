// Package session provides Redis-backed session persistence and a compact,
// versioned binary encoding for session records.
//
// # Binary encoding
//
// Records are stored as a binary format (schema versions v1–v2) with
// forward migration on read. The encoder is append-only: new versions add
// fields but never reinterpret old ones.
//
// # Key space
//
//	session:{sessionId}                  encoded record
//	session:token:{sha256(accessToken)}  sessionId
//	session:refresh:{sha256(refresh)}    sessionId
//	user_sessions:{userId}               sorted set of sessionId by creation time
//
// # Architecture boundaries
//
// This package owns the [Store] (key layout and atomic scripts) and the
// [Session] model. It does NOT decide when a session is expired for the
// caller, enforce throttles, or emit audit events; those belong to the
// service in the root package.
//
// # What this package must NOT do
//
//   - Import the root sessionkit package (no upward imports).
//   - Persist plaintext access or refresh tokens.
package session
