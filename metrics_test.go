package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricIssueSuccess)
	if m.Enabled() {
		t.Fatal("Enabled() = true for disabled metrics")
	}
	if got := m.Value(MetricIssueSuccess); got != 0 {
		t.Fatalf("Value = %d, want 0", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("disabled snapshot has %d counters", len(snap.Counters))
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricCheckAllow)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricCheckAllow); got != workers*perWorker {
		t.Fatalf("Value = %d, want %d", got, workers*perWorker)
	}
}

func TestEngineCountsCredentialLifecycle(t *testing.T) {
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
	if _, err := engine.Refresh(ctx, cred.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("reuse err = %v", err)
	}
	if _, err := engine.Verify(ctx, next.AccessToken); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	_, _ = engine.Verify(ctx, "garbage")

	snap := engine.MetricsSnapshot()
	expect := map[MetricID]uint64{
		MetricIssueSuccess:   1,
		MetricRefreshSuccess: 1,
		MetricRefreshRevoked: 1,
		MetricVerifySuccess:  1,
		MetricVerifyFailure:  1,
	}
	for id, want := range expect {
		if got := snap.Counters[id]; got != want {
			t.Fatalf("counter %d = %d, want %d", id, got, want)
		}
	}
}

func TestEngineCountsAuthorizationOutcomes(t *testing.T) {
	engine, mr := newTestEngine(t)
	ctx := context.Background()

	if err := engine.BindRole(ctx, "global", "42", "admin"); err == nil {
		t.Fatal("expected bind of unknown role to fail")
	}
	engine.CheckAccess(ctx, "42", "global", "users", "delete") // deny
	engine.CheckAccess(ctx, "42", " ", "users", "delete")      // invalid domain
	mr.Close()
	engine.CheckAccess(ctx, "42", "other", "users", "delete") // store failure

	snap := engine.MetricsSnapshot()
	if got := snap.Counters[MetricCheckDeny]; got != 1 {
		t.Fatalf("MetricCheckDeny = %d, want 1", got)
	}
	if got := snap.Counters[MetricCheckInvalidDomain]; got != 1 {
		t.Fatalf("MetricCheckInvalidDomain = %d, want 1", got)
	}
	if got := snap.Counters[MetricCheckStoreFailure]; got != 1 {
		t.Fatalf("MetricCheckStoreFailure = %d, want 1", got)
	}
	if got := snap.Counters[MetricCheckAllow]; got != 0 {
		t.Fatalf("MetricCheckAllow = %d, want 0", got)
	}
}
