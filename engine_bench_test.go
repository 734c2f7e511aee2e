package authcore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/policy"
)

func newBenchEngine(b *testing.B) *Engine {
	b.Helper()
	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = client.Close() })

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(client).
		WithIdentityProvider(staticIdentityProvider{users: map[string]string{
			"alice": "correct-password-123",
		}}).
		Build()
	if err != nil {
		b.Fatalf("Build: %v", err)
	}
	b.Cleanup(engine.Close)
	return engine
}

func BenchmarkVerify(b *testing.B) {
	engine := newBenchEngine(b)

	cred, err := engine.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Verify(context.Background(), cred.AccessToken); err != nil {
			b.Fatalf("verify failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	engine := newBenchEngine(b)

	cred, err := engine.Login(context.Background(), "alice", "correct-password-123")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	refresh := cred.RefreshToken
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next, err := engine.Refresh(context.Background(), refresh)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
		refresh = next.RefreshToken
	}
}

func BenchmarkLogin(b *testing.B) {
	engine := newBenchEngine(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cred, err := engine.Login(context.Background(), "alice", "correct-password-123")
		if err != nil {
			b.Fatalf("login failed: %v", err)
		}
		if err := engine.Logout(context.Background(), cred.RefreshToken); err != nil {
			b.Fatalf("logout failed: %v", err)
		}
	}
}

func BenchmarkCheckAccess(b *testing.B) {
	engine := newBenchEngine(b)
	ctx := context.Background()

	if _, err := engine.CreateRole(ctx, DefaultDomain, policy.Role{Name: "admin"}); err != nil {
		b.Fatalf("create role: %v", err)
	}
	if _, err := engine.CreatePermission(ctx, DefaultDomain, policy.Permission{Resource: "users", Action: "delete"}); err != nil {
		b.Fatalf("create permission: %v", err)
	}
	if err := engine.BindPermission(ctx, DefaultDomain, "admin", "users", "delete"); err != nil {
		b.Fatalf("bind permission: %v", err)
	}
	if err := engine.BindRole(ctx, DefaultDomain, "alice", "admin"); err != nil {
		b.Fatalf("bind role: %v", err)
	}
	// Warm the snapshot so the loop measures the in-memory path.
	if !engine.CheckAccess(ctx, "alice", DefaultDomain, "users", "delete") {
		b.Fatal("expected allow")
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !engine.CheckAccess(ctx, "alice", DefaultDomain, "users", "delete") {
			b.Fatal("expected allow")
		}
	}
}
