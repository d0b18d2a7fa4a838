package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/examprep/internal/rbac"
)

const issuer = "examprep"

type AuthService struct {
	hmac []byte
	ttl  time.Duration
	now  func() time.Time
}

func NewAuthService(secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &AuthService{hmac: []byte(secret), ttl: ttl, now: time.Now}
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"` // student|author|reviewer|admin
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(sub, role string) (string, error) {
	now := a.now()
	claims := &Claims{
		Sub:  sub,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

var errBadToken = errors.New("invalid token")

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Sub == "" || !rbac.Default.Known(c.Role) {
		return nil, errBadToken
	}
	return c, nil
}

// LocalLogin checks credentials for offline deployments. The admin account
// is verified against a bcrypt hash; when devLogins is set, "x:x" logs in
// as user x with any non-admin role.
type LocalLogin struct {
	AdminUser     string
	AdminPassHash string
	DevLogins     bool
}

var devRoles = map[string]bool{"student": true, "author": true, "reviewer": true}

func (l LocalLogin) check(username, password, role string) (string, bool) {
	if username == l.AdminUser && l.AdminPassHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(l.AdminPassHash), []byte(password)) == nil {
			return "admin", true
		}
		return "", false
	}
	if role == "" {
		role = "student"
	}
	if l.DevLogins && username != "" && username == password && devRoles[role] {
		return role, true
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "message": msg})
}

// POST /auth/login  { "username": "...", "password": "...", "role": "student|author|reviewer" }
func LoginHandler(a *AuthService, l LocalLogin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "bad json")
			return
		}
		role, ok := l.check(strings.TrimSpace(req.Username), req.Password, strings.TrimSpace(req.Role))
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}
		tok, err := a.IssueJWT(req.Username, role)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "issue token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": tok, "role": role})
	}
}

func (a *AuthService) attach(w http.ResponseWriter, r *http.Request, next http.Handler, required bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		if required {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer")
			return
		}
		next.ServeHTTP(w, r)
		return
	}
	c, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "bad token")
		return
	}
	ctx := WithPrincipal(r.Context(), Principal{Sub: c.Sub, Role: c.Role})
	ctx = rbac.WithRole(ctx, c.Role)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// JWTMiddleware rejects requests without a valid bearer token.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.attach(w, r, next, true)
		})
	}
}

// OptionalJWT lets anonymous requests through as guests. A token that is
// present but invalid is still rejected.
func OptionalJWT(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.attach(w, r, next, false)
		})
	}
}
