package authcore

import (
	"context"
	"time"
)

// Identity is the verified principal returned by the external identity
// collaborator. Subject is an opaque identifier owned by that collaborator;
// authcore references it, never mutates it.
type Identity struct {
	Subject string
	Domain  string
}

// IdentityProvider is the interface callers must implement to integrate
// authcore with their user database. authcore delegates all credential
// verification (password hashing, OTP, lockout policy) to it and only
// consumes the resulting [Identity].
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, secret string) (Identity, error)
}

// Credential is an access/refresh token pair issued by the Engine.
//
// The access token is a short-lived, self-contained JWT. The refresh token is
// opaque and single-purpose: it can only be exchanged through
// [Engine.Refresh], which rotates it. An access token is never accepted after
// AccessExpiry, even while the refresh token is still valid.
type Credential struct {
	AccessToken   string
	RefreshToken  string
	AccessExpiry  time.Time
	RefreshExpiry time.Time
}

// Claims is the verified content of an access token, as returned by
// [Engine.Verify].
type Claims struct {
	Subject      string
	Domain       string
	CredentialID string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	SigningAlgorithm       string
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	RefreshRotationEnabled bool
	DefaultDomain          string
	AuditEnabled           bool
	MetricsEnabled         bool
}
