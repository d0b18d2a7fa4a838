package rbac

import (
	"encoding/json"
	"net/http"
)

// Default is the policy enforced by Require and RequireAny.
var Default = NewPolicy(nil)

func forbidden(w http.ResponseWriter, perm string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": "forbidden", "message": "missing permission " + perm})
}

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Default.Allows(RoleFromContext(r.Context()), perm) {
				forbidden(w, perm)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny enforces that the role has at least one of perms.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Default.AllowsAny(RoleFromContext(r.Context()), perms...) {
				forbidden(w, perms[0])
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
