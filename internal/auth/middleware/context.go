package auth

import "context"

type principalKey struct{}

// Principal is the caller attached by the JWT middlewares. Guests have no
// principal.
type Principal struct {
	Sub  string
	Role string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.Sub != ""
}

// SubjectFromContext returns the caller's subject, or "" for guests.
func SubjectFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.Sub
}
