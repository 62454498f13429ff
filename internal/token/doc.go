// Package token generates the identifiers and bearer secrets that back a
// session: a UUID session id plus independent access and refresh secrets.
//
// Secrets are never persisted; the store only ever sees their SHA-256
// digests (see [Hash]).
package token
