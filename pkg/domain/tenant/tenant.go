// Package tenant carries the tenant scope of a request through a context.
package tenant

import "context"

// Default is used when no tenant was attached to the context
const Default = "default"

type contextKey struct{}

// WithTenant returns a copy of ctx scoped to tenantID
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// FromContext returns the tenant attached to ctx, or Default
func FromContext(ctx context.Context) string {
	if val, ok := ctx.Value(contextKey{}).(string); ok && val != "" {
		return val
	}
	return Default
}
