package policy

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

/* ==================================================================== */
/* =========================== ENFORCER =============================== */
/* ==================================================================== */

// Decision is the result of one authorization check.
type Decision struct {
	Allowed bool
	// Cause is non-nil only for error denials (invalid domain, store
	// unavailable). A plain "no matching grant" deny has a nil Cause.
	Cause error
}

// Enforcer answers authorization checks from immutable in-memory snapshots,
// one per domain, and applies mutations write-through to the Store.
//
// Readers load the snapshot map through an atomic pointer and never take a
// lock. Writers serialize on a mutex, apply the mutation to the store,
// rebuild the touched domain's snapshot, and swap in a new map. A check that
// starts after a mutation returns therefore sees its effect.
type Enforcer struct {
	store Store

	mu    sync.Mutex // serializes writers and snapshot swaps
	index atomic.Pointer[map[string]*snapshot]
}

// NewEnforcer constructs an enforcer over the given store. Domains are
// loaded lazily on first use.
func NewEnforcer(store Store) *Enforcer {
	e := &Enforcer{store: store}
	empty := make(map[string]*snapshot)
	e.index.Store(&empty)
	return e
}

// Check reports whether subject may perform action on resource within
// domain. Every failure mode denies.
func (e *Enforcer) Check(ctx context.Context, subject, domain, resource, action string) bool {
	return e.Decide(ctx, subject, domain, resource, action).Allowed
}

// Decide is Check with the denial cause attached, for callers that need to
// distinguish "no grant" from "store down" or "bad domain".
func (e *Enforcer) Decide(ctx context.Context, subject, domain, resource, action string) Decision {
	if strings.TrimSpace(domain) == "" {
		return Decision{Allowed: false, Cause: ErrInvalidDomain}
	}
	if subject == "" || resource == "" || action == "" {
		return Decision{Allowed: false}
	}
	snap, err := e.snapshotFor(ctx, domain)
	if err != nil {
		// Fail closed: an unreachable store denies, never allows.
		return Decision{Allowed: false, Cause: err}
	}
	return Decision{Allowed: snap.allowed(subject, resource, action)}
}

// RolesOf returns every role the subject holds in the domain, transitive
// bindings included.
func (e *Enforcer) RolesOf(ctx context.Context, subject, domain string) ([]Role, error) {
	snap, err := e.snapshotFor(ctx, domain)
	if err != nil {
		return nil, err
	}
	return snap.reachableRoles(subject), nil
}

// PermissionsOf returns the subject's effective permission set in the
// domain: direct grants plus everything reachable through roles.
func (e *Enforcer) PermissionsOf(ctx context.Context, subject, domain string) ([]Permission, error) {
	snap, err := e.snapshotFor(ctx, domain)
	if err != nil {
		return nil, err
	}
	return snap.effectivePermissions(subject), nil
}

func (e *Enforcer) snapshotFor(ctx context.Context, domain string) (*snapshot, error) {
	if !validDomain(domain) {
		return nil, ErrInvalidDomain
	}
	if snap, ok := (*e.index.Load())[domain]; ok {
		return snap, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if snap, ok := (*e.index.Load())[domain]; ok {
		return snap, nil
	}
	return e.reloadLocked(ctx, domain)
}

// reloadLocked rebuilds one domain's snapshot from the store and swaps in a
// new index map. Callers must hold e.mu.
func (e *Enforcer) reloadLocked(ctx context.Context, domain string) (*snapshot, error) {
	pol, err := e.store.LoadDomain(ctx, domain)
	if err != nil {
		// Drop any cached snapshot so the next check retries the store
		// instead of serving state of unknown age.
		e.swapLocked(domain, nil)
		return nil, err
	}
	snap := buildSnapshot(pol)
	e.swapLocked(domain, snap)
	return snap, nil
}

func (e *Enforcer) swapLocked(domain string, snap *snapshot) {
	old := *e.index.Load()
	next := make(map[string]*snapshot, len(old)+1)
	for d, s := range old {
		next[d] = s
	}
	if snap == nil {
		delete(next, domain)
	} else {
		next[domain] = snap
	}
	e.index.Store(&next)
}

/* ============================ MUTATIONS ============================= */

// Each mutation applies write-through to the store, then rebuilds the
// domain snapshot before returning. The store write and the swap happen
// under the writer mutex, so concurrent writers cannot interleave a stale
// rebuild over a newer write.

func (e *Enforcer) CreateRole(ctx context.Context, domain string, role Role) (Role, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	created, err := e.store.CreateRole(ctx, domain, role)
	if err != nil {
		return Role{}, err
	}
	if _, err := e.reloadLocked(ctx, domain); err != nil {
		return Role{}, err
	}
	return created, nil
}

func (e *Enforcer) DeleteRole(ctx context.Context, domain, name string) error {
	return e.mutate(ctx, domain, func() error {
		return e.store.DeleteRole(ctx, domain, name)
	})
}

func (e *Enforcer) CreatePermission(ctx context.Context, domain string, perm Permission) (Permission, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	created, err := e.store.CreatePermission(ctx, domain, perm)
	if err != nil {
		return Permission{}, err
	}
	if _, err := e.reloadLocked(ctx, domain); err != nil {
		return Permission{}, err
	}
	return created, nil
}

func (e *Enforcer) DeletePermission(ctx context.Context, domain, resource, action string) error {
	return e.mutate(ctx, domain, func() error {
		return e.store.DeletePermission(ctx, domain, resource, action)
	})
}

func (e *Enforcer) BindRole(ctx context.Context, domain, subject, role string) error {
	return e.mutate(ctx, domain, func() error {
		return e.store.BindRole(ctx, domain, subject, role)
	})
}

func (e *Enforcer) UnbindRole(ctx context.Context, domain, subject, role string) error {
	return e.mutate(ctx, domain, func() error {
		return e.store.UnbindRole(ctx, domain, subject, role)
	})
}

func (e *Enforcer) BindPermission(ctx context.Context, domain, role, resource, action string) error {
	return e.mutate(ctx, domain, func() error {
		return e.store.BindPermission(ctx, domain, role, resource, action)
	})
}

func (e *Enforcer) UnbindPermission(ctx context.Context, domain, role, resource, action string) error {
	return e.mutate(ctx, domain, func() error {
		return e.store.UnbindPermission(ctx, domain, role, resource, action)
	})
}

func (e *Enforcer) BindSubjectPermission(ctx context.Context, domain, subject, resource, action string) error {
	return e.mutate(ctx, domain, func() error {
		return e.store.BindSubjectPermission(ctx, domain, subject, resource, action)
	})
}

func (e *Enforcer) UnbindSubjectPermission(ctx context.Context, domain, subject, resource, action string) error {
	return e.mutate(ctx, domain, func() error {
		return e.store.UnbindSubjectPermission(ctx, domain, subject, resource, action)
	})
}

func (e *Enforcer) mutate(ctx context.Context, domain string, apply func() error) error {
	if !validDomain(domain) {
		return ErrInvalidDomain
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := apply(); err != nil {
		return err
	}
	_, err := e.reloadLocked(ctx, domain)
	return err
}

// Reload forces a rebuild of one domain's snapshot, for deployments where
// another process writes to the same store.
func (e *Enforcer) Reload(ctx context.Context, domain string) error {
	if !validDomain(domain) {
		return ErrInvalidDomain
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.reloadLocked(ctx, domain)
	return err
}
