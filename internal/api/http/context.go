package http

import "context"

type principalKey struct{}

// Principal is the authenticated caller of a request. Exactly one of UserID
// and Service is set.
type Principal struct {
	UserID  string
	Service string
}

func (p Principal) IsService() bool {
	return p.Service != ""
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller set by the auth middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
