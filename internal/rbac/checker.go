package rbac

import (
	"context"
	"sort"
	"strings"
)

// Policy answers permission checks for a role table. A grant is an exact
// permission, a "resource:*" prefix or "*".
type Policy struct {
	exact    map[string]map[string]bool
	prefixes map[string][]string
	all      map[string]bool
}

// NewPolicy compiles rp. A nil table selects RolePermissions.
func NewPolicy(rp map[string][]string) *Policy {
	if rp == nil {
		rp = RolePermissions
	}
	p := &Policy{
		exact:    make(map[string]map[string]bool, len(rp)),
		prefixes: make(map[string][]string, len(rp)),
		all:      make(map[string]bool),
	}
	for role, grants := range rp {
		p.exact[role] = map[string]bool{}
		for _, g := range grants {
			switch {
			case g == "*":
				p.all[role] = true
			case strings.HasSuffix(g, "*"):
				p.prefixes[role] = append(p.prefixes[role], strings.TrimSuffix(g, "*"))
			default:
				p.exact[role][g] = true
			}
		}
	}
	return p
}

// Allows reports whether role holds perm. The empty role holds nothing.
func (p *Policy) Allows(role, perm string) bool {
	if role == "" {
		return false
	}
	if p.all[role] || p.exact[role][perm] {
		return true
	}
	for _, pre := range p.prefixes[role] {
		if strings.HasPrefix(perm, pre) {
			return true
		}
	}
	return false
}

func (p *Policy) AllowsAny(role string, perms ...string) bool {
	for _, perm := range perms {
		if p.Allows(role, perm) {
			return true
		}
	}
	return false
}

// Known reports whether role appears in the table.
func (p *Policy) Known(role string) bool {
	_, ok := p.exact[role]
	return ok
}

// Roles lists the roles in the table, sorted.
func (p *Policy) Roles() []string {
	out := make([]string, 0, len(p.exact))
	for r := range p.exact {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

type roleKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(roleKey{}).(string)
	return s
}
