package authcore

import "context"

type clientIPContextKey struct{}
type domainContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine includes
// it in audit events for issue and refresh operations.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithDomain attaches an authorization domain to ctx. When absent, the
// configured default domain is used. An explicit domain and the default
// domain remain distinct namespaces.
func WithDomain(ctx context.Context, domain string) context.Context {
	return context.WithValue(ctx, domainContextKey{}, domain)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func domainFromContext(ctx context.Context, fallback string) string {
	if ctx == nil {
		return fallback
	}

	domain, _ := ctx.Value(domainContextKey{}).(string)
	if domain == "" {
		return fallback
	}

	return domain
}
