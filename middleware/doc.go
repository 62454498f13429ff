// Package middleware adapts a sessionkit Service to net/http.
//
//   - [RequireSession] resolves the bearer access token and rejects
//     requests without a live session.
//   - [ClientIP] puts the caller address on the context for refresh
//     throttling and audit.
//
// Handlers read the session with [SessionFromContext]. This package holds
// no session logic of its own; every decision comes from the Service.
package middleware
