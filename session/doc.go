// Package session implements the Redis-backed credential-session store: one
// record per issued access/refresh pair, keyed by credential ID, holding the
// hash of the live refresh secret.
//
// # Rotation protocol
//
// RotateRefreshHash runs a Lua compare-and-swap: the presented hash must
// match the stored one, which is then replaced in place. Concurrent refreshes
// with the same token therefore produce exactly one winner; losers observe
// [ErrRefreshHashMismatch] and the session is destroyed, bounding replay.
//
// # Architecture boundaries
//
// This package owns persistence and the rotation CAS. Token encoding lives in
// internal/; failure classification into the public error taxonomy is the
// Engine's job.
//
// # What this package must NOT do
//
//   - Parse or create JWTs.
//   - Import authcore, jwt, or policy.
//   - Decide authentication outcomes beyond its own storage semantics.
package session
