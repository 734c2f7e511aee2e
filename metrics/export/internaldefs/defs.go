package internaldefs

import (
	authcore "github.com/MrEthical07/authcore"
)

// CounterDef defines a public type used by authcore APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the credential engine.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricIssueSuccess, Name: "authcore_issue_success_total", Help: "Successfully issued credential pairs."},
	{ID: authcore.MetricIssueFailure, Name: "authcore_issue_failure_total", Help: "Failed credential issuance attempts."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh exchanges."},
	{ID: authcore.MetricRefreshExpired, Name: "authcore_refresh_expired_total", Help: "Refresh attempts against expired or missing credentials."},
	{ID: authcore.MetricRefreshRevoked, Name: "authcore_refresh_revoked_total", Help: "Rotation-reuse detections."},
	{ID: authcore.MetricRefreshMalformed, Name: "authcore_refresh_malformed_total", Help: "Structurally invalid refresh tokens."},
	{ID: authcore.MetricVerifySuccess, Name: "authcore_verify_success_total", Help: "Successful access token verifications."},
	{ID: authcore.MetricVerifyFailure, Name: "authcore_verify_failure_total", Help: "Failed access token verifications."},
	{ID: authcore.MetricCheckAllow, Name: "authcore_check_allow_total", Help: "Authorization checks that allowed."},
	{ID: authcore.MetricCheckDeny, Name: "authcore_check_deny_total", Help: "Authorization checks denied by policy."},
	{ID: authcore.MetricCheckStoreFailure, Name: "authcore_check_store_failure_total", Help: "Fail-closed denies caused by policy store unavailability."},
	{ID: authcore.MetricCheckInvalidDomain, Name: "authcore_check_invalid_domain_total", Help: "Authorization checks denied for an invalid domain."},
	{ID: authcore.MetricPolicyMutation, Name: "authcore_policy_mutation_total", Help: "Applied policy mutations."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-credential logout operations."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logout-all operations."},
}
