// Package sessionkit issues, resolves, rotates, caps and expires
// authenticated user sessions backed by Redis.
//
// A session is addressed three ways: by its id, by a digest of its access
// token and by a digest of its refresh token. Every key carries the session
// TTL and each user owns an ordered membership set used to enforce
// [SessionConfig.MaxSessionsPerUser].
//
// Service methods are safe to call from multiple goroutines after
// [Builder.Build]. The Service holds no in-process locks; the cap and
// refresh single-use guarantees come from server-side scripts.
//
// # Absence versus failure
//
// Lookups and refresh return (nil, nil) for a session that is unknown,
// removed or expired. An error always means the store could not answer
// (see [ErrStoreUnavailable]) or a record could not be decoded.
//
// # What this package must NOT do
//
//   - Expose Redis clients or record encoding in its public API.
//   - Persist plaintext access or refresh tokens.
//   - Make authorization decisions; callers map absence to 401.
package sessionkit
