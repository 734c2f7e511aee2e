// Package policy provides domain-scoped role-based access control: durable
// storage of roles, permissions, and bindings, and an in-memory enforcer
// answering allow/deny checks from immutable snapshots.
//
// # Model
//
// A permission is an exact (resource, action) pair. Roles group permissions
// and may inherit other roles through subject->role bindings, forming a
// graph the enforcer walks breadth-first with cycle protection. Every
// entity lives inside exactly one domain; nothing crosses domains.
//
// # Snapshot discipline
//
// The [Enforcer] keeps one immutable snapshot per domain behind an atomic
// pointer. Checks read the snapshot lock-free. Mutations serialize on a
// writer mutex, write through to the [Store], rebuild the touched domain's
// snapshot, and swap — so a check that starts after a mutation returns
// observes its effect.
//
// # Architecture boundaries
//
// This package owns policy data and authorization decisions. It does NOT
// authenticate callers, parse tokens, or know about HTTP — those belong to
// the Engine and middleware layers.
//
// # What this package must NOT do
//
//   - Import authcore, jwt, or session (no upward imports).
//   - Fall back to another domain when a lookup misses.
//   - Return allow on any store or validation failure.
package policy
