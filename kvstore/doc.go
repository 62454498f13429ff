// Package kvstore is a thin adapter over a TTL-capable Redis deployment.
//
// It exposes the handful of primitives the session layer composes
// (get, set-with-expiry, delete, ordered-set membership, expiry extension,
// prefix scans, transactional pipelines and server-side scripts) and
// normalises every failure into two outcomes: [ErrNil] for a missing key
// and [ErrUnavailable] for anything else.
//
// # What this package must NOT do
//
//   - Interpret session records or tokens.
//   - Retry or swallow connectivity errors.
package kvstore
