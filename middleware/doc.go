// Package middleware exposes HTTP middleware adapters for authentication
// and authorization enforcement built on top of authcore.Engine.
//
// # Guards
//
//   - [RequireAuth] — verifies the bearer access token, injects claims.
//   - [RequirePermission] — checks one fixed (resource, action) pair.
//   - [RequireRoute] — resolves the pair from a static [RouteTable].
//
// Each guard reads the Authorization header or the claims left by an
// earlier guard, delegates the decision to the Engine, and short-circuits
// with 401 or 403 before the handler runs.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication or authorization logic itself — all decisions
// are delegated to Engine.Verify and Engine.CheckAccess.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Derive the checked (resource, action) from user-supplied input.
package middleware
