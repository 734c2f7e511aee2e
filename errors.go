package authcore

import "errors"

var (
	// ErrInvalidCredentials is returned by Login when the identity
	// collaborator rejects the presented identifier/secret pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when no access token is presented, or
	// the presented token is malformed, unsigned, or expired.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRefreshMalformed is returned when a refresh token fails structural
	// decoding before any store lookup.
	ErrRefreshMalformed = errors.New("malformed refresh token")
	// ErrRefreshExpired is returned when the refresh target credential no
	// longer exists or its lifetime has elapsed. Terminal: force re-login.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrRefreshRevoked is returned when a refresh token that was already
	// rotated out is presented again. The credential is destroyed on
	// detection. Terminal: force re-login.
	ErrRefreshRevoked = errors.New("refresh token revoked")
	// ErrForbidden is returned when a valid subject is denied by policy.
	ErrForbidden = errors.New("forbidden")
	// ErrPolicyStoreUnavailable reports that a policy decision failed closed
	// because the policy store could not be reached. The decision itself is
	// always a deny; this sentinel exists for logs and metrics only.
	ErrPolicyStoreUnavailable = errors.New("policy store unavailable")
	// ErrInvalidDomain is returned for a missing or malformed authorization
	// domain. At the decision point it is treated as a deny.
	ErrInvalidDomain = errors.New("invalid authorization domain")
	// ErrCredentialNotFound is returned by Logout when the target credential
	// does not exist.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrEngineNotReady is an exported constant or variable used by the credential engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
