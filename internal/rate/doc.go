// Package rate provides fixed-window Redis counters used to throttle
// session refresh attempts.
//
// # Window semantics
//
// INCR + conditional PEXPIRE on the first hit of a window. Keys live under
// session:rl:{scope}:{identifier}; the identifier may contain colons (IPv6).
//
// # What this package must NOT do
//
//   - Decide what happens to a throttled caller; it only reports
//     [ErrRateLimited].
//   - Be imported outside the sessionkit module.
package rate
