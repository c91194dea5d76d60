// Package auth authenticates bearer tokens and enforces roles on routes.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/golang-jwt/jwt/v4"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// Actor is the authenticated caller of a request.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok && a.ID != ""
}

// Claims carried by access tokens. The role claim is only trusted when no
// user directory is configured.
type Claims struct {
	Name string `json:"name,omitempty"`
	Role Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Sign issues an HS256 token for u.
func Sign(secret string, u User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: u.Name,
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parse(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func bearer(r *http.Request) string {
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// Authenticator verifies tokens and resolves the caller against Users.
type Authenticator struct {
	Secret string
	Users  Users // optional; when nil the token claims are the identity
}

// Middleware rejects requests without a valid token. With no secret
// configured every request is rejected.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Secret == "" {
			deny(w, http.StatusUnauthorized, "authentication is not configured")
			return
		}
		raw := bearer(r)
		if raw == "" {
			deny(w, http.StatusUnauthorized, "please login to access this resource")
			return
		}
		claims, err := parse(a.Secret, raw)
		if err != nil {
			deny(w, http.StatusUnauthorized, "invalid token")
			return
		}
		actor := Actor{ID: claims.Subject, Name: claims.Name, Role: claims.Role}
		if a.Users != nil {
			u, err := a.Users.Lookup(r.Context(), claims.Subject)
			if errors.Is(err, apperr.ErrNotFound) {
				deny(w, http.StatusUnauthorized, "user no longer exists")
				return
			}
			if err != nil {
				deny(w, http.StatusInternalServerError, err.Error())
				return
			}
			actor = Actor{ID: u.ID, Name: u.Name, Role: u.Role}
		}
		if actor.Role == "" {
			actor.Role = RoleUser
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireRole lets through only actors holding one of roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := ActorFrom(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, "please login to access this resource")
				return
			}
			if !a.Is(roles...) {
				deny(w, http.StatusForbidden, fmt.Sprintf("role %s is not allowed to access this resource", a.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
