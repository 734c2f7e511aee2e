package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnauthorized is the signal a [Call] returns when the server
	// rejected its access token. It is the only error the coordinator
	// reacts to; everything else passes through untouched.
	ErrUnauthorized = errors.New("access token rejected")

	// ErrUnauthenticated is the hard failure for a call that was rejected
	// again even after a successful refresh. It is never retried a second
	// time.
	ErrUnauthenticated = errors.New("unauthenticated after refresh")

	// ErrReauthenticationRequired means the refresh chain is dead: there is
	// no credential, or the last refresh attempt failed terminally. The
	// caller must log in again and hand the coordinator a fresh credential
	// via [Coordinator.SetCredential].
	ErrReauthenticationRequired = errors.New("re-authentication required")
)

// Credential is the token pair the coordinator holds on behalf of its
// caller.
type Credential struct {
	AccessToken   string
	RefreshToken  string
	AccessExpiry  time.Time
	RefreshExpiry time.Time
}

func (c Credential) accessExpired(now time.Time) bool {
	return c.AccessExpiry.IsZero() || !now.Before(c.AccessExpiry)
}

// Refresher exchanges a refresh token for a new credential pair. Any error
// is terminal for the current chain: the coordinator clears its credential
// and every waiter is told to re-authenticate.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Credential, error)
}

// Call is one outbound request attempt. It receives the access token to
// attach and returns [ErrUnauthorized] (possibly wrapped) when the server
// refused it.
type Call func(ctx context.Context, accessToken string) error

type outcome struct {
	cred Credential
	err  error
}

// Coordinator guarantees at most one in-flight refresh per credential
// holder. Callers whose access token was rejected while a refresh is
// outstanding queue up and are resumed, in FIFO order, once it resolves.
//
// The mutex guards only the Idle/Refreshing transition and the queue; it is
// released before the refresh network call is awaited. The refreshing flag,
// not the lock, is what prevents a second concurrent refresh.
type Coordinator struct {
	refresher Refresher

	// refreshTimeout bounds the Refresher call, which runs detached from
	// any single waiter's context.
	refreshTimeout time.Duration

	mu         sync.Mutex
	current    Credential
	hasCred    bool
	refreshing bool
	waiters    []chan outcome
	stats      Stats
}

// Stats counts how effective the single-flight collapsing has been. All
// fields are totals since construction.
type Stats struct {
	// Refreshes is the number of refresh network calls actually performed.
	Refreshes uint64
	// Coalesced is the number of waiters that piggybacked on a refresh
	// another caller had already triggered.
	Coalesced uint64
	// Rejected is the number of waiters drained with a terminal error.
	Rejected uint64
}

// NewCoordinator wraps a Refresher. The coordinator starts without a
// credential; seed it with SetCredential after login.
func NewCoordinator(r Refresher) *Coordinator {
	return &Coordinator{refresher: r, refreshTimeout: 30 * time.Second}
}

// SetCredential installs a new token pair, typically right after login. It
// also revives a coordinator whose previous chain ended terminally.
func (c *Coordinator) SetCredential(cred Credential) {
	c.mu.Lock()
	c.current = cred
	c.hasCred = true
	c.mu.Unlock()
}

// Credential returns the currently held token pair.
func (c *Coordinator) Credential() (Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.hasCred
}

// Stats returns a copy of the single-flight effectiveness counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Clear drops the stored credential. Pending waiters are unaffected; the
// in-flight refresh (if any) still resolves them.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	c.current = Credential{}
	c.hasCred = false
	c.mu.Unlock()
}

// Do runs one outbound call under the coordinator's credential. A call
// whose token is rejected (or already expired locally) waits for exactly
// one refresh and is replayed exactly once with the new token. A second
// rejection is surfaced as ErrUnauthenticated with no further retries.
func (c *Coordinator) Do(ctx context.Context, call Call) error {
	cred, ok := c.Credential()
	if !ok {
		return ErrReauthenticationRequired
	}

	// A locally-expired access token is a guaranteed rejection; skip the
	// wasted round trip and go straight to the refresh queue.
	if !cred.accessExpired(time.Now()) {
		err := call(ctx, cred.AccessToken)
		if err == nil || !errors.Is(err, ErrUnauthorized) {
			return err
		}
	}

	fresh, err := c.awaitRefresh(ctx, cred)
	if err != nil {
		return err
	}
	if err := call(ctx, fresh.AccessToken); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		return err
	}
	return nil
}

// awaitRefresh returns a credential newer than stale, triggering a single
// refresh if none is in flight. It blocks only on the caller's own channel,
// never on the lock during the network call. Cancellation removes this
// waiter from the queue without affecting the others.
func (c *Coordinator) awaitRefresh(ctx context.Context, stale Credential) (Credential, error) {
	c.mu.Lock()
	if !c.hasCred {
		c.mu.Unlock()
		return Credential{}, ErrReauthenticationRequired
	}
	// Someone already finished a refresh between our rejection and here.
	if c.current.AccessToken != stale.AccessToken {
		cur := c.current
		c.mu.Unlock()
		return cur, nil
	}
	w := make(chan outcome, 1)
	c.waiters = append(c.waiters, w)
	if !c.refreshing {
		c.refreshing = true
		c.stats.Refreshes++
		token := c.current.RefreshToken
		go c.runRefresh(token)
	} else {
		c.stats.Coalesced++
	}
	c.mu.Unlock()

	select {
	case out := <-w:
		return out.cred, out.err
	case <-ctx.Done():
		c.removeWaiter(w)
		return Credential{}, ctx.Err()
	}
}

// runRefresh performs the single network call and drains the queue. It runs
// without the mutex held; only the state transition at the end re-acquires
// it.
func (c *Coordinator) runRefresh(refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
	cred, err := c.refresher.Refresh(ctx, refreshToken)
	cancel()

	c.mu.Lock()
	c.refreshing = false
	waiters := c.waiters
	c.waiters = nil
	var out outcome
	if err != nil {
		// Terminal: clear the credential so later calls demand re-login
		// instead of hammering the issuer with a dead refresh token.
		c.current = Credential{}
		c.hasCred = false
		c.stats.Rejected += uint64(len(waiters))
		out = outcome{err: fmt.Errorf("%w: %v", ErrReauthenticationRequired, err)}
	} else {
		c.current = cred
		c.hasCred = true
		out = outcome{cred: cred}
	}
	c.mu.Unlock()

	// FIFO drain. Buffered channels keep a cancelled waiter from blocking
	// the rest of the queue.
	for _, w := range waiters {
		w <- out
	}
}

func (c *Coordinator) removeWaiter(w chan outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cand := range c.waiters {
		if cand == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}
