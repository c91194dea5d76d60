package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, _ := ActorFrom(r.Context())
		w.Header().Set("X-Actor", a.ID+"/"+string(a.Role))
		w.WriteHeader(http.StatusNoContent)
	})
}

func do(t *testing.T, h http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_MissingAndInvalidToken(t *testing.T) {
	a := &Authenticator{Secret: secret}
	h := a.Middleware(echoActor())

	assert.Equal(t, http.StatusUnauthorized, do(t, h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, "garbage").Code)

	other, err := Sign("other-secret", User{ID: "u1"}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, other).Code)

	expired, err := Sign(secret, User{ID: "u1"}, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, expired).Code)
}

func TestMiddleware_EmptySecretRejectsEverything(t *testing.T) {
	h := (&Authenticator{}).Middleware(echoActor())

	forged, err := Sign("", User{ID: "a1", Role: RoleAdmin}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, forged).Code)

	guessed, err := Sign("change-me", User{ID: "a1", Role: RoleAdmin}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, guessed).Code)
}

func TestMiddleware_RoleComesFromDirectory(t *testing.T) {
	users := NewMemoryUsers(User{ID: "u1", Name: "Ann", Role: RoleUser})
	a := &Authenticator{Secret: secret, Users: users}

	// a forged admin claim must not win over the directory
	tok, err := Sign(secret, User{ID: "u1", Role: RoleAdmin}, time.Minute)
	require.NoError(t, err)

	rec := do(t, a.Middleware(echoActor()), tok)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1/user", rec.Header().Get("X-Actor"))
}

func TestMiddleware_UnknownUser(t *testing.T) {
	a := &Authenticator{Secret: secret, Users: NewMemoryUsers()}
	tok, err := Sign(secret, User{ID: "ghost"}, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(t, a.Middleware(echoActor()), tok).Code)
}

func TestRequireRole(t *testing.T) {
	a := &Authenticator{Secret: secret}
	h := a.Middleware(RequireRole(RoleVendor, RoleAdmin)(echoActor()))

	buyer, _ := Sign(secret, User{ID: "b1", Role: RoleUser}, time.Minute)
	vendor, _ := Sign(secret, User{ID: "v1", Role: RoleVendor}, time.Minute)
	admin, _ := Sign(secret, User{ID: "a1", Role: RoleAdmin}, time.Minute)

	assert.Equal(t, http.StatusForbidden, do(t, h, buyer).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, vendor).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, admin).Code)
}

func TestActorIs(t *testing.T) {
	a := Actor{ID: "x", Role: RoleVendor}
	assert.True(t, a.Is(RoleAdmin, RoleVendor))
	assert.False(t, a.Is(RoleAdmin))
}
