// Package jwt wraps github.com/golang-jwt/jwt/v5 behind a hardened access
// token [Manager] supporting Ed25519 and HS256, key-ID based verification key
// sets, bounded clock leeway, and future-iat rejection.
//
// # Architecture boundaries
//
// This package owns access-token signing and verification only. Refresh
// tokens are opaque and never pass through here; their rotation state lives
// in the session store.
//
// # What this package must NOT do
//
//   - Access Redis or any I/O.
//   - Import authcore, session, or policy.
//   - Make authorization decisions.
package jwt
