package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/policy"
)

type staticIdentityProvider struct {
	users map[string]string // identifier -> secret
}

func (p staticIdentityProvider) VerifyIdentity(ctx context.Context, identifier, secret string) (Identity, error) {
	want, ok := p.users[identifier]
	if !ok || want != secret || secret == "" {
		return Identity{}, errors.New("unknown identity")
	}
	return Identity{Subject: identifier, Domain: DefaultDomain}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.AccessTTL = time.Minute
	cfg.Refresh.TTL = time.Hour
	return cfg
}

func newTestEngine(t *testing.T, opts ...func(*Builder)) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := New().
		WithConfig(testConfig()).
		WithRedis(client).
		WithIdentityProvider(staticIdentityProvider{users: map[string]string{
			"alice": "correct-password-123",
		}})
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mr
}

func TestLoginIssuesVerifiableCredential(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	cred, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if cred.AccessToken == "" || cred.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if !cred.RefreshExpiry.After(cred.AccessExpiry) {
		t.Fatal("refresh expiry must outlive access expiry")
	}

	claims, err := engine.Verify(ctx, cred.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "alice" || claims.Domain != DefaultDomain {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.CredentialID == "" {
		t.Fatal("expected credential ID claim")
	}
}

func TestLoginRejectsBadSecret(t *testing.T) {
	engine, _ := newTestEngine(t)

	if _, err := engine.Login(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := engine.Login(context.Background(), "mallory", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyRejectsGarbageAndExpired(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Verify(ctx, "not-a-jwt"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("garbage err = %v, want ErrUnauthenticated", err)
	}
	if _, err := engine.Verify(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("empty err = %v, want ErrUnauthenticated", err)
	}
}

func TestRefreshRotates(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	cred, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, err := engine.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == cred.RefreshToken {
		t.Fatal("refresh token must rotate")
	}
	if _, err := engine.Verify(ctx, next.AccessToken); err != nil {
		t.Fatalf("Verify refreshed access token: %v", err)
	}

	// The rotated-out token is rejected and the detection destroys the
	// session, so even the current token dies with it.
	if _, err := engine.Refresh(ctx, cred.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("stale refresh err = %v, want ErrRefreshRevoked", err)
	}
	if _, err := engine.Refresh(ctx, next.RefreshToken); !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("post-revocation refresh err = %v, want ErrRefreshExpired", err)
	}
}

func TestRefreshMalformed(t *testing.T) {
	engine, _ := newTestEngine(t)

	if _, err := engine.Refresh(context.Background(), "zzz"); !errors.Is(err, ErrRefreshMalformed) {
		t.Fatalf("err = %v, want ErrRefreshMalformed", err)
	}
}

func TestRefreshExpiredSession(t *testing.T) {
	engine, mr := newTestEngine(t)
	ctx := context.Background()

	cred, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	mr.FastForward(2 * time.Hour)

	if _, err := engine.Refresh(ctx, cred.RefreshToken); !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("err = %v, want ErrRefreshExpired", err)
	}
}

func TestLogout(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	cred, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := engine.Logout(ctx, cred.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := engine.Refresh(ctx, cred.RefreshToken); !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("refresh after logout = %v, want ErrRefreshExpired", err)
	}
	if err := engine.Logout(ctx, cred.RefreshToken); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("second logout = %v, want ErrCredentialNotFound", err)
	}
}

func TestLogoutAll(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	var creds []Credential
	for i := 0; i < 3; i++ {
		cred, err := engine.Login(ctx, "alice", "correct-password-123")
		if err != nil {
			t.Fatalf("Login %d: %v", i, err)
		}
		creds = append(creds, cred)
	}

	n, err := engine.LogoutAll(ctx, DefaultDomain, "alice")
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("LogoutAll destroyed %d sessions, want 3", n)
	}
	for i, cred := range creds {
		if _, err := engine.Refresh(ctx, cred.RefreshToken); !errors.Is(err, ErrRefreshExpired) {
			t.Fatalf("refresh %d after LogoutAll = %v, want ErrRefreshExpired", i, err)
		}
	}
}

func TestCheckAccessScenario(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.CreateRole(ctx, "global", policy.Role{Name: "admin"}); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if _, err := engine.CreatePermission(ctx, "global", policy.Permission{Resource: "users", Action: "delete"}); err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	if err := engine.BindPermission(ctx, "global", "admin", "users", "delete"); err != nil {
		t.Fatalf("BindPermission: %v", err)
	}
	if err := engine.BindRole(ctx, "global", "42", "admin"); err != nil {
		t.Fatalf("BindRole: %v", err)
	}

	if !engine.CheckAccess(ctx, "42", "global", "users", "delete") {
		t.Fatal("expected allow for bound permission")
	}
	if engine.CheckAccess(ctx, "42", "global", "users", "create") {
		t.Fatal("expected deny for unbound action")
	}

	if err := engine.UnbindRole(ctx, "global", "42", "admin"); err != nil {
		t.Fatalf("UnbindRole: %v", err)
	}
	if engine.CheckAccess(ctx, "42", "global", "users", "delete") {
		t.Fatal("expected deny after unbind")
	}
}

func TestCheckAccessDetailedCauses(t *testing.T) {
	engine, mr := newTestEngine(t)
	ctx := context.Background()

	allowed, cause := engine.CheckAccessDetailed(ctx, "42", " ", "users", "delete")
	if allowed || !errors.Is(cause, ErrInvalidDomain) {
		t.Fatalf("invalid domain = (%v, %v), want deny with ErrInvalidDomain", allowed, cause)
	}

	mr.Close()
	allowed, cause = engine.CheckAccessDetailed(ctx, "42", "global", "users", "delete")
	if allowed || !errors.Is(cause, ErrPolicyStoreUnavailable) {
		t.Fatalf("store loss = (%v, %v), want deny with ErrPolicyStoreUnavailable", allowed, cause)
	}
}

func TestSecurityReport(t *testing.T) {
	engine, _ := newTestEngine(t)

	report := engine.SecurityReport()
	if report.SigningAlgorithm != "hs256" {
		t.Fatalf("SigningAlgorithm = %q", report.SigningAlgorithm)
	}
	if !report.RefreshRotationEnabled {
		t.Fatal("rotation must always be reported enabled")
	}
	if report.AccessTTL != time.Minute || report.RefreshTTL != time.Hour {
		t.Fatalf("TTLs = %v / %v", report.AccessTTL, report.RefreshTTL)
	}
	if report.DefaultDomain != DefaultDomain {
		t.Fatalf("DefaultDomain = %q", report.DefaultDomain)
	}
}
