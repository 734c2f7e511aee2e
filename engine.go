package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/policy"
	"github.com/MrEthical07/authcore/session"
)

const (
	auditEventLoginSuccess   = "login.success"
	auditEventLoginFailure   = "login.failure"
	auditEventIssue          = "credential.issue"
	auditEventRefreshSuccess = "refresh.success"
	auditEventRefreshFailure = "refresh.failure"
	auditEventLogout         = "logout"
	auditEventLogoutAll      = "logout.all"
	auditEventCheck          = "authz.check"
	auditEventPolicyMutation = "policy.mutation"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config   Config
	jwt      *jwt.Manager
	sessions *session.Store
	enforcer *policy.Enforcer
	identity IdentityProvider
	audit    *auditDispatcher
	metrics  *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// Enforcer exposes the policy enforcer for administrative surfaces that
// need reads beyond [Engine.CheckAccess].
func (e *Engine) Enforcer() *policy.Enforcer {
	if e == nil {
		return nil
	}
	return e.enforcer
}

// SecurityReport describes the securityreport operation and its observable behavior.
//
// SecurityReport may return an error when input validation, dependency calls, or security checks fail.
// SecurityReport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return SecurityReport{
		SigningAlgorithm:       e.config.JWT.SigningMethod,
		AccessTTL:              e.config.JWT.AccessTTL,
		RefreshTTL:             e.config.Refresh.TTL,
		RefreshRotationEnabled: true,
		DefaultDomain:          e.config.Policy.DefaultDomain,
		AuditEnabled:           e.audit != nil,
		MetricsEnabled:         e.metrics != nil && e.metrics.Enabled(),
	}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	event.Timestamp = time.Now()
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

// resolveDomain fills in an omitted domain from the request context or the
// configured default. It never widens matching across domains.
func (e *Engine) resolveDomain(ctx context.Context, domain string) string {
	if domain != "" {
		return domain
	}
	return domainFromContext(ctx, e.config.Policy.DefaultDomain)
}

/* ==================================================================== */
/* ======================= CREDENTIAL LIFECYCLE ======================= */
/* ==================================================================== */

// Login verifies the identifier/secret pair through the configured
// [IdentityProvider] and issues a fresh credential pair.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, identifier, secret string) (Credential, error) {
	if e == nil || e.identity == nil {
		return Credential{}, ErrEngineNotReady
	}
	identity, err := e.identity.VerifyIdentity(ctx, identifier, secret)
	if err != nil {
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventLoginFailure,
			Domain:    e.resolveDomain(ctx, ""),
			Error:     ErrInvalidCredentials.Error(),
		})
		return Credential{}, ErrInvalidCredentials
	}
	cred, err := e.Issue(ctx, identity)
	if err != nil {
		return Credential{}, err
	}
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventLoginSuccess,
		Subject:   identity.Subject,
		Domain:    e.resolveDomain(ctx, identity.Domain),
		Allowed:   true,
	})
	return cred, nil
}

// Issue mints a credential pair for an already-verified identity: a signed
// access token plus an opaque, single-use refresh token whose hash is
// persisted in the session store.
//
// Issue may return an error when input validation, dependency calls, or security checks fail.
// Issue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Issue(ctx context.Context, identity Identity) (Credential, error) {
	if e == nil || e.jwt == nil || e.sessions == nil {
		return Credential{}, ErrEngineNotReady
	}
	if identity.Subject == "" {
		return Credential{}, ErrInvalidCredentials
	}
	domain := e.resolveDomain(ctx, identity.Domain)

	credID, err := internal.NewCredentialID()
	if err != nil {
		e.metricInc(MetricIssueFailure)
		return Credential{}, err
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		e.metricInc(MetricIssueFailure)
		return Credential{}, err
	}
	refreshToken, err := internal.EncodeRefreshToken(credID.String(), secret)
	if err != nil {
		e.metricInc(MetricIssueFailure)
		return Credential{}, err
	}

	accessToken, accessExpiry, err := e.jwt.CreateAccess(identity.Subject, domain, credID.String())
	if err != nil {
		e.metricInc(MetricIssueFailure)
		return Credential{}, err
	}

	now := time.Now()
	refreshExpiry := now.Add(e.config.Refresh.TTL)
	sess := &session.Session{
		CredentialID:  credID.String(),
		Subject:       identity.Subject,
		Domain:        domain,
		RefreshHash:   internal.HashRefreshSecret(secret),
		CreatedAt:     now.Unix(),
		ExpiresAt:     refreshExpiry.Unix(),
		SchemaVersion: session.CurrentSchemaVersion,
	}
	if err := e.sessions.Save(ctx, sess, e.config.Refresh.TTL); err != nil {
		e.metricInc(MetricIssueFailure)
		return Credential{}, err
	}

	e.metricInc(MetricIssueSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditEventIssue,
		Subject:      identity.Subject,
		Domain:       domain,
		CredentialID: credID.String(),
		Allowed:      true,
	})
	return Credential{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// Refresh exchanges a refresh token for a new credential pair, rotating the
// stored refresh hash atomically. Presenting an already-rotated token
// destroys the credential session and returns [ErrRefreshRevoked].
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (Credential, error) {
	if e == nil || e.jwt == nil || e.sessions == nil {
		return Credential{}, ErrEngineNotReady
	}

	credID, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshMalformed)
		e.emitAudit(ctx, AuditEvent{
			EventType: auditEventRefreshFailure,
			Error:     ErrRefreshMalformed.Error(),
		})
		return Credential{}, ErrRefreshMalformed
	}

	nextSecret, err := internal.NewRefreshSecret()
	if err != nil {
		return Credential{}, err
	}

	sess, err := e.sessions.RotateRefreshHash(
		ctx,
		credID,
		internal.HashRefreshSecret(secret),
		internal.HashRefreshSecret(nextSecret),
	)
	if err != nil {
		return Credential{}, e.refreshFailure(ctx, credID, err)
	}

	nextToken, err := internal.EncodeRefreshToken(credID, nextSecret)
	if err != nil {
		return Credential{}, err
	}
	accessToken, accessExpiry, err := e.jwt.CreateAccess(sess.Subject, sess.Domain, credID)
	if err != nil {
		return Credential{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditEventRefreshSuccess,
		Subject:      sess.Subject,
		Domain:       sess.Domain,
		CredentialID: credID,
		Allowed:      true,
	})
	return Credential{
		AccessToken:   accessToken,
		RefreshToken:  nextToken,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: time.Unix(sess.ExpiresAt, 0),
	}, nil
}

func (e *Engine) refreshFailure(ctx context.Context, credID string, err error) error {
	var mapped error
	switch {
	case errors.Is(err, session.ErrRefreshHashMismatch):
		mapped = ErrRefreshRevoked
		e.metricInc(MetricRefreshRevoked)
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionExpired):
		mapped = ErrRefreshExpired
		e.metricInc(MetricRefreshExpired)
	default:
		// Infrastructure failure, not a token verdict.
		return err
	}
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditEventRefreshFailure,
		CredentialID: credID,
		Error:        mapped.Error(),
	})
	return mapped
}

// Verify checks an access token's signature and time claims without any
// store round trip and returns its claims.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Verify(ctx context.Context, accessToken string) (*Claims, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}
	parsed, err := e.jwt.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		return nil, ErrUnauthenticated
	}
	e.metricInc(MetricVerifySuccess)
	claims := &Claims{
		Subject:      parsed.Subject,
		Domain:       parsed.Domain,
		CredentialID: parsed.CredentialID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	return claims, nil
}

// Logout revokes the credential a refresh token points at. The access token
// keeps verifying until its own short expiry; only the refresh chain dies.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	credID, _, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return ErrRefreshMalformed
	}
	deleted, err := e.sessions.Delete(ctx, credID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrCredentialNotFound
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditEvent{
		EventType:    auditEventLogout,
		CredentialID: credID,
		Allowed:      true,
	})
	return nil
}

// LogoutAll revokes every live credential a subject holds in a domain and
// returns how many were destroyed.
//
// LogoutAll may return an error when input validation, dependency calls, or security checks fail.
// LogoutAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LogoutAll(ctx context.Context, domain, subject string) (int, error) {
	if e == nil || e.sessions == nil {
		return 0, ErrEngineNotReady
	}
	domain = e.resolveDomain(ctx, domain)
	n, err := e.sessions.DeleteAllForSubject(ctx, domain, subject)
	if err != nil {
		return 0, err
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, AuditEvent{
		EventType: auditEventLogoutAll,
		Subject:   subject,
		Domain:    domain,
		Allowed:   true,
	})
	return n, nil
}

/* ==================================================================== */
/* ========================= AUTHORIZATION ============================ */
/* ==================================================================== */

// CheckAccess reports whether subject may perform action on resource within
// domain. Absence of a matching grant, an invalid domain, and policy store
// unavailability all deny; only the metrics and audit trail distinguish
// them.
//
// CheckAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CheckAccess(ctx context.Context, subject, domain, resource, action string) bool {
	allowed, _ := e.CheckAccessDetailed(ctx, subject, domain, resource, action)
	return allowed
}

// CheckAccessDetailed is [Engine.CheckAccess] with the denial cause
// attached: nil for a plain policy deny, [ErrInvalidDomain] or
// [ErrPolicyStoreUnavailable] for error denials. The boolean is
// authoritative either way.
func (e *Engine) CheckAccessDetailed(ctx context.Context, subject, domain, resource, action string) (bool, error) {
	if e == nil || e.enforcer == nil {
		return false, ErrEngineNotReady
	}
	domain = e.resolveDomain(ctx, domain)

	decision := e.enforcer.Decide(ctx, subject, domain, resource, action)
	var cause error
	switch {
	case decision.Allowed:
		e.metricInc(MetricCheckAllow)
	case errors.Is(decision.Cause, policy.ErrInvalidDomain):
		cause = ErrInvalidDomain
		e.metricInc(MetricCheckInvalidDomain)
	case errors.Is(decision.Cause, policy.ErrStoreUnavailable):
		cause = ErrPolicyStoreUnavailable
		e.metricInc(MetricCheckStoreFailure)
	default:
		e.metricInc(MetricCheckDeny)
	}

	event := AuditEvent{
		EventType: auditEventCheck,
		Subject:   subject,
		Domain:    domain,
		Resource:  resource,
		Action:    action,
		Allowed:   decision.Allowed,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	e.emitAudit(ctx, event)
	return decision.Allowed, cause
}
