package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	j := NewJWT("secret")

	tok, err := j.Sign(42, RoleAdmin)
	require.NoError(t, err)

	id, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 42, Role: RoleAdmin}, id)

	tok, err = j.Sign(7, "")
	require.NoError(t, err)
	id, err = j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, id.Role)
}

func TestVerify_Rejects(t *testing.T) {
	j := NewJWT("secret")

	other, err := NewJWT("other").Sign(1, RoleUser)
	require.NoError(t, err)
	_, err = j.Verify(other)
	assert.Error(t, err)

	expired := j.WithTTL(-time.Minute)
	tok, err := expired.Sign(1, RoleUser)
	require.NoError(t, err)
	_, err = j.Verify(tok)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": 1})
	s, err := none.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = j.Verify(s)
	assert.Error(t, err)

	_, err = j.Verify("garbage")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	j := NewJWT("secret")
	var seen Identity
	h := RequireAuth(j)(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer nope"))

	user, _ := j.Sign(5, RoleUser)
	assert.Equal(t, http.StatusForbidden, do("Bearer "+user))

	admin, _ := j.Sign(9, RoleAdmin)
	assert.Equal(t, http.StatusNoContent, do("Bearer "+admin))
	assert.EqualValues(t, 9, seen.UserID)
}
