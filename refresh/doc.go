// Package refresh provides the client-side single-flight coordinator for
// access token renewal.
//
// Naive clients fire one refresh per concurrently-rejected request, and
// refresh token rotation then revokes every exchange but the first. The
// [Coordinator] collapses the storm: the first rejected call flips the
// state to Refreshing and triggers exactly one [Refresher] call; every
// later rejection joins a FIFO queue; the single result resolves them all.
// Each call is replayed at most once with the new token.
//
// # Locking contract
//
// The coordinator mutex guards the Idle/Refreshing transition and the
// waiter queue only. It is never held across the refresh network call; the
// refreshing flag is what deduplicates triggers during that window. Waiters
// block on their own buffered channel, so a queued caller whose context
// expires is dropped without affecting the rest of the queue.
//
// # Architecture boundaries
//
// This package knows nothing about token formats, Redis, or policy. Its
// only dependency is the [Refresher] interface, typically satisfied by the
// engine's credential issuer.
//
// # What this package must NOT do
//
//   - Import authcore, jwt, session, or policy (no upward imports).
//   - Retry a call more than once after a refresh.
//   - Trigger a second refresh while one is outstanding.
package refresh
