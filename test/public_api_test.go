package test

import (
	"context"
	"net/http"
	"testing"

	authcore "github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/policy"
	"github.com/MrEthical07/authcore/refresh"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = authcore.New

	var _ *authcore.Engine
	var _ authcore.Config
	var _ authcore.Credential
	var _ authcore.Claims
	var _ authcore.Identity
	var _ authcore.IdentityProvider
	var _ authcore.AuditSink
	var _ authcore.SecurityReport
	var _ policy.Role
	var _ policy.Permission
	var _ policy.Store
	var _ *policy.Enforcer
	var _ *refresh.Coordinator

	var _ error = authcore.ErrInvalidCredentials
	var _ error = authcore.ErrUnauthenticated
	var _ error = authcore.ErrRefreshMalformed
	var _ error = authcore.ErrRefreshExpired
	var _ error = authcore.ErrRefreshRevoked
	var _ error = authcore.ErrForbidden
	var _ error = authcore.ErrPolicyStoreUnavailable
	var _ error = authcore.ErrInvalidDomain

	var _ func(*authcore.Engine) func(http.Handler) http.Handler = middleware.RequireAuth
	var _ func(*authcore.Engine, string, string) func(http.Handler) http.Handler = middleware.RequirePermission

	var _ func(*authcore.Engine, context.Context, string, string) (authcore.Credential, error) = (*authcore.Engine).Login
	var _ func(*authcore.Engine, context.Context, string) (authcore.Credential, error) = (*authcore.Engine).Refresh
	var _ func(*authcore.Engine, context.Context, string) (*authcore.Claims, error) = (*authcore.Engine).Verify
	var _ func(*authcore.Engine, context.Context, string) error = (*authcore.Engine).Logout
	var _ func(*authcore.Engine, context.Context, string, string, string, string) bool = (*authcore.Engine).CheckAccess
}
