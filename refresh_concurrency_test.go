package authcore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/authcore/refresh"
)

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	cred, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.Refresh(context.Background(), cred.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrRefreshRevoked) || errors.Is(err, ErrRefreshExpired) {
			fail++
			continue
		}
		t.Fatalf("unexpected refresh error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d refresh failures, got %d", n-1, fail)
	}
}

// The coordinator turns the same storm into a single refresh call that
// every caller shares, end to end against a live engine.
func TestCoordinatorAbsorbsRefreshStorm(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	cred, err := engine.Login(ctx, "alice", "correct-password-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	coord := engine.NewCoordinator(cred)

	const n = 16
	var (
		wg       sync.WaitGroup
		failures atomic.Int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := coord.Do(ctx, func(ctx context.Context, token string) error {
				if token == cred.AccessToken {
					// Simulate the server rejecting the original token.
					return refresh.ErrUnauthorized
				}
				if _, err := engine.Verify(ctx, token); err != nil {
					return err
				}
				return nil
			})
			if err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := failures.Load(); got != 0 {
		t.Fatalf("%d of %d coordinated calls failed", got, n)
	}
	current, ok := coord.Credential()
	if !ok {
		t.Fatal("coordinator lost its credential")
	}
	if current.AccessToken == cred.AccessToken {
		t.Fatal("coordinator never rotated the credential")
	}
	// Exactly one rotation happened: the original refresh token is now
	// rotated out and its reuse is detected.
	if _, err := engine.Refresh(ctx, cred.RefreshToken); !errors.Is(err, ErrRefreshRevoked) {
		t.Fatalf("old refresh token err = %v, want ErrRefreshRevoked", err)
	}
}
