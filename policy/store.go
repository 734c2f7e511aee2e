package policy

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable wraps every transport-level policy store failure.
	// At a decision point it always results in a deny, never an allow.
	ErrStoreUnavailable = errors.New("policy store unavailable")
	// ErrInvalidDomain is returned for an empty or malformed domain.
	ErrInvalidDomain = errors.New("invalid policy domain")
	// ErrRoleExists is returned when a role name is already taken in the domain.
	ErrRoleExists = errors.New("role already exists")
	// ErrRoleNotFound is an exported constant or variable used by the policy engine.
	ErrRoleNotFound = errors.New("role not found")
	// ErrPermissionExists is returned when a (resource, action) pair is
	// already registered in the domain.
	ErrPermissionExists = errors.New("permission already exists")
	// ErrPermissionNotFound is an exported constant or variable used by the policy engine.
	ErrPermissionNotFound = errors.New("permission not found")
)

// Role is an administrable grouping of permissions, unique by name within a
// domain.
type Role struct {
	ID          string
	Name        string
	Description string
}

// Permission is a named capability identified by its (resource, action)
// pair, unique within a domain.
type Permission struct {
	ID          string
	Resource    string
	Action      string
	Description string
}

// DomainPolicy is one consistent view of everything stored for a domain,
// used by the enforcer to rebuild its in-memory index.
type DomainPolicy struct {
	Domain string

	Roles       []Role
	Permissions []Permission

	// RoleEdges is the g relation: subject (a user, or a role inheriting
	// another role) -> bound role names.
	RoleEdges map[string][]string

	// RolePermissions maps role name -> granted permissions.
	RolePermissions map[string][]Permission

	// DirectGrants maps a subject -> permissions granted outside the role
	// graph.
	DirectGrants map[string][]Permission
}

// Store is durable, domain-scoped storage of roles, permissions, and
// bindings. Pure data access: no decision logic. Every multi-row mutation
// (cascading deletes in particular) is atomic — no reader observes partial
// state.
type Store interface {
	CreateRole(ctx context.Context, domain string, role Role) (Role, error)
	GetRole(ctx context.Context, domain, name string) (Role, error)
	ListRoles(ctx context.Context, domain string) ([]Role, error)
	// DeleteRole cascades: the role's permission bindings and every
	// role-binding pointing at it are removed in the same atomic step.
	DeleteRole(ctx context.Context, domain, name string) error

	CreatePermission(ctx context.Context, domain string, perm Permission) (Permission, error)
	ListPermissions(ctx context.Context, domain string) ([]Permission, error)
	// DeletePermission cascades to all role and direct bindings.
	DeletePermission(ctx context.Context, domain, resource, action string) error

	BindRole(ctx context.Context, domain, subject, role string) error
	UnbindRole(ctx context.Context, domain, subject, role string) error
	BindPermission(ctx context.Context, domain, role, resource, action string) error
	UnbindPermission(ctx context.Context, domain, role, resource, action string) error
	BindSubjectPermission(ctx context.Context, domain, subject, resource, action string) error
	UnbindSubjectPermission(ctx context.Context, domain, subject, resource, action string) error

	RolesForSubject(ctx context.Context, domain, subject string) ([]string, error)
	SubjectsForRole(ctx context.Context, domain, role string) ([]string, error)
	PermissionsForRole(ctx context.Context, domain, role string) ([]Permission, error)

	LoadDomain(ctx context.Context, domain string) (*DomainPolicy, error)
}
