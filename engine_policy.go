package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/policy"
)

// Administrative policy surface. Each mutation delegates to the enforcer
// (write-through store plus snapshot rebuild), so a CheckAccess issued after
// one of these returns observes the change.

// CreateRole describes the createrole operation and its observable behavior.
//
// CreateRole may return an error when input validation, dependency calls, or security checks fail.
// CreateRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CreateRole(ctx context.Context, domain string, role policy.Role) (policy.Role, error) {
	if e == nil || e.enforcer == nil {
		return policy.Role{}, ErrEngineNotReady
	}
	created, err := e.enforcer.CreateRole(ctx, e.resolveDomain(ctx, domain), role)
	e.policyMutation(ctx, "role.create", domain, role.Name, "", err)
	return created, err
}

// DeleteRole cascades: the role's permission grants and every binding
// pointing at it die in the same step.
//
// DeleteRole may return an error when input validation, dependency calls, or security checks fail.
func (e *Engine) DeleteRole(ctx context.Context, domain, name string) error {
	if e == nil || e.enforcer == nil {
		return ErrEngineNotReady
	}
	err := e.enforcer.DeleteRole(ctx, e.resolveDomain(ctx, domain), name)
	e.policyMutation(ctx, "role.delete", domain, name, "", err)
	return err
}

// CreatePermission describes the createpermission operation and its observable behavior.
//
// CreatePermission may return an error when input validation, dependency calls, or security checks fail.
// CreatePermission does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CreatePermission(ctx context.Context, domain string, perm policy.Permission) (policy.Permission, error) {
	if e == nil || e.enforcer == nil {
		return policy.Permission{}, ErrEngineNotReady
	}
	created, err := e.enforcer.CreatePermission(ctx, e.resolveDomain(ctx, domain), perm)
	e.policyMutation(ctx, "permission.create", domain, perm.Resource, perm.Action, err)
	return created, err
}

// DeletePermission cascades to every role and direct binding of the pair.
//
// DeletePermission may return an error when input validation, dependency calls, or security checks fail.
func (e *Engine) DeletePermission(ctx context.Context, domain, resource, action string) error {
	if e == nil || e.enforcer == nil {
		return ErrEngineNotReady
	}
	err := e.enforcer.DeletePermission(ctx, e.resolveDomain(ctx, domain), resource, action)
	e.policyMutation(ctx, "permission.delete", domain, resource, action, err)
	return err
}

// BindRole describes the bindrole operation and its observable behavior.
//
// BindRole may return an error when input validation, dependency calls, or security checks fail.
// BindRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BindRole(ctx context.Context, domain, subject, role string) error {
	if e == nil || e.enforcer == nil {
		return ErrEngineNotReady
	}
	err := e.enforcer.BindRole(ctx, e.resolveDomain(ctx, domain), subject, role)
	e.policyMutationSubject(ctx, "role.bind", domain, subject, role, err)
	return err
}

// UnbindRole describes the unbindrole operation and its observable behavior.
//
// UnbindRole may return an error when input validation, dependency calls, or security checks fail.
// UnbindRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) UnbindRole(ctx context.Context, domain, subject, role string) error {
	if e == nil || e.enforcer == nil {
		return ErrEngineNotReady
	}
	err := e.enforcer.UnbindRole(ctx, e.resolveDomain(ctx, domain), subject, role)
	e.policyMutationSubject(ctx, "role.unbind", domain, subject, role, err)
	return err
}

// BindPermission describes the bindpermission operation and its observable behavior.
//
// BindPermission may return an error when input validation, dependency calls, or security checks fail.
// BindPermission does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BindPermission(ctx context.Context, domain, role, resource, action string) error {
	if e == nil || e.enforcer == nil {
		return ErrEngineNotReady
	}
	err := e.enforcer.BindPermission(ctx, e.resolveDomain(ctx, domain), role, resource, action)
	e.policyMutation(ctx, "permission.bind", domain, resource, action, err)
	return err
}

// UnbindPermission describes the unbindpermission operation and its observable behavior.
//
// UnbindPermission may return an error when input validation, dependency calls, or security checks fail.
// UnbindPermission does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) UnbindPermission(ctx context.Context, domain, role, resource, action string) error {
	if e == nil || e.enforcer == nil {
		return ErrEngineNotReady
	}
	err := e.enforcer.UnbindPermission(ctx, e.resolveDomain(ctx, domain), role, resource, action)
	e.policyMutation(ctx, "permission.unbind", domain, resource, action, err)
	return err
}

// BindSubjectPermission grants a permission directly to a subject, outside
// the role graph.
//
// BindSubjectPermission may return an error when input validation, dependency calls, or security checks fail.
func (e *Engine) BindSubjectPermission(ctx context.Context, domain, subject, resource, action string) error {
	if e == nil || e.enforcer == nil {
		return ErrEngineNotReady
	}
	err := e.enforcer.BindSubjectPermission(ctx, e.resolveDomain(ctx, domain), subject, resource, action)
	e.policyMutationSubject(ctx, "permission.bind.direct", domain, subject, resource+":"+action, err)
	return err
}

// UnbindSubjectPermission describes the unbindsubjectpermission operation and its observable behavior.
//
// UnbindSubjectPermission may return an error when input validation, dependency calls, or security checks fail.
func (e *Engine) UnbindSubjectPermission(ctx context.Context, domain, subject, resource, action string) error {
	if e == nil || e.enforcer == nil {
		return ErrEngineNotReady
	}
	err := e.enforcer.UnbindSubjectPermission(ctx, e.resolveDomain(ctx, domain), subject, resource, action)
	e.policyMutationSubject(ctx, "permission.unbind.direct", domain, subject, resource+":"+action, err)
	return err
}

// RolesOf returns the subject's roles in the domain, transitive bindings
// included.
//
// RolesOf may return an error when input validation, dependency calls, or security checks fail.
func (e *Engine) RolesOf(ctx context.Context, subject, domain string) ([]policy.Role, error) {
	if e == nil || e.enforcer == nil {
		return nil, ErrEngineNotReady
	}
	return e.enforcer.RolesOf(ctx, subject, e.resolveDomain(ctx, domain))
}

// PermissionsOf returns the subject's flattened effective permission set in
// the domain.
//
// PermissionsOf may return an error when input validation, dependency calls, or security checks fail.
func (e *Engine) PermissionsOf(ctx context.Context, subject, domain string) ([]policy.Permission, error) {
	if e == nil || e.enforcer == nil {
		return nil, ErrEngineNotReady
	}
	return e.enforcer.PermissionsOf(ctx, subject, e.resolveDomain(ctx, domain))
}

func (e *Engine) policyMutation(ctx context.Context, eventType, domain, resource, action string, err error) {
	if err != nil {
		return
	}
	e.metricInc(MetricPolicyMutation)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventType,
		Domain:    e.resolveDomain(ctx, domain),
		Resource:  resource,
		Action:    action,
		Allowed:   true,
	})
}

func (e *Engine) policyMutationSubject(ctx context.Context, eventType, domain, subject, target string, err error) {
	if err != nil {
		return
	}
	e.metricInc(MetricPolicyMutation)
	e.emitAudit(ctx, AuditEvent{
		EventType: eventType,
		Subject:   subject,
		Domain:    e.resolveDomain(ctx, domain),
		Resource:  target,
		Allowed:   true,
	})
}
