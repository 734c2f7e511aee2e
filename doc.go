// Package authcore provides the authentication/authorization core for
// multi-frontend SaaS backends: a JWT access + rotating opaque refresh token
// lifecycle with Redis-backed credential sessions, and a domain-scoped RBAC
// policy engine with a lock-free read path.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Credential, Claims, MetricsSnapshot). Domain logic lives in
// subpackages: jwt (access tokens), session (credential sessions and refresh
// rotation), policy (store + enforcer), refresh (client-side single-flight
// coordinator), middleware (net/http adapters).
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or token encoding details in its
//     public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Performance contract
//
// Verify and CheckAccess are the hot paths. Verify completes without a Redis
// round-trip (access tokens are self-contained); CheckAccess reads an
// immutable policy snapshot behind an atomic pointer and never takes a lock.
// Issue, Refresh, and policy mutations are allowed store round-trips.
package authcore
