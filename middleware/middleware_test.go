package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/policy"
)

type testIdentityProvider struct{}

func (testIdentityProvider) VerifyIdentity(ctx context.Context, identifier, secret string) (authcore.Identity, error) {
	return authcore.Identity{Subject: identifier, Domain: authcore.DefaultDomain}, nil
}

func newTestEngine(t *testing.T) *authcore.Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := authcore.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.AccessTTL = time.Minute
	cfg.Refresh.TTL = time.Hour

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityProvider(testIdentityProvider{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func loginToken(t *testing.T, engine *authcore.Engine, subject string) string {
	t.Helper()
	cred, err := engine.Login(context.Background(), subject, "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return cred.AccessToken
}

func okHandler(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthInjectsClaims(t *testing.T) {
	engine := newTestEngine(t)
	token := loginToken(t, engine, "alice")

	var gotClaims *authcore.Claims
	handler := RequireAuth(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = ClaimsFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotClaims == nil || gotClaims.Subject != "alice" || gotClaims.Domain != authcore.DefaultDomain {
		t.Fatalf("claims = %+v", gotClaims)
	}
}

func TestRequireAuthRejects(t *testing.T) {
	engine := newTestEngine(t)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var hit bool
			handler := RequireAuth(engine)(okHandler(&hit))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if hit {
				t.Fatal("handler ran on rejected request")
			}
		})
	}
}

func seedAdminPolicy(t *testing.T, engine *authcore.Engine, subject string) {
	t.Helper()
	ctx := context.Background()
	if _, err := engine.CreateRole(ctx, authcore.DefaultDomain, policy.Role{Name: "admin"}); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if _, err := engine.CreatePermission(ctx, authcore.DefaultDomain, policy.Permission{Resource: "users", Action: "delete"}); err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	if err := engine.BindPermission(ctx, authcore.DefaultDomain, "admin", "users", "delete"); err != nil {
		t.Fatalf("BindPermission: %v", err)
	}
	if err := engine.BindRole(ctx, authcore.DefaultDomain, subject, "admin"); err != nil {
		t.Fatalf("BindRole: %v", err)
	}
}

func TestRequirePermission(t *testing.T) {
	engine := newTestEngine(t)
	seedAdminPolicy(t, engine, "alice")

	var hit bool
	handler := RequireAuth(engine)(RequirePermission(engine, "users", "delete")(okHandler(&hit)))

	// alice holds admin -> (users, delete).
	req := httptest.NewRequest(http.MethodDelete, "/users/7", nil)
	req.Header.Set("Authorization", "Bearer "+loginToken(t, engine, "alice"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !hit {
		t.Fatalf("allowed subject: status = %d, hit = %v", rec.Code, hit)
	}

	// bob holds nothing.
	hit = false
	req = httptest.NewRequest(http.MethodDelete, "/users/7", nil)
	req.Header.Set("Authorization", "Bearer "+loginToken(t, engine, "bob"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("denied subject: status = %d, want 403", rec.Code)
	}
	if hit {
		t.Fatal("handler ran on denied request")
	}
}

func TestRequirePermissionWithoutAuth(t *testing.T) {
	engine := newTestEngine(t)

	var hit bool
	// No RequireAuth in front: claims are absent, request must 401.
	handler := RequirePermission(engine, "users", "delete")(okHandler(&hit))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/users/7", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRoute(t *testing.T) {
	engine := newTestEngine(t)
	seedAdminPolicy(t, engine, "alice")

	table := RouteTable{
		"DELETE /users": {Resource: "users", Action: "delete"},
	}
	var hit bool
	handler := RequireAuth(engine)(RequireRoute(engine, table)(okHandler(&hit)))
	token := loginToken(t, engine, "alice")

	req := httptest.NewRequest(http.MethodDelete, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !hit {
		t.Fatalf("mapped route: status = %d, hit = %v", rec.Code, hit)
	}

	// Routes outside the table are denied outright.
	hit = false
	req = httptest.NewRequest(http.MethodPost, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unmapped route: status = %d, want 403", rec.Code)
	}
	if hit {
		t.Fatal("handler ran for unmapped route")
	}
}
