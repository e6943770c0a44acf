package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoActor(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		require.True(t, ok)
		_ = json.NewEncoder(w).Encode(actor)
	})
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "cartable", time.Hour)
	token, err := tm.GenerateToken(models.Actor{ID: "alice", Roles: []models.Role{models.RoleSigner, models.RoleOperator}})
	require.NoError(t, err)

	actor, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", actor.ID)
	assert.Equal(t, []models.Role{models.RoleSigner, models.RoleOperator}, actor.Roles)
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", "cartable", time.Hour)

	other, err := NewTokenManager("other", "cartable", time.Hour).GenerateToken(models.Actor{ID: "alice"})
	require.NoError(t, err)
	_, err = tm.ParseToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewTokenManager("secret", "elsewhere", time.Hour).GenerateToken(models.Actor{ID: "alice"})
	require.NoError(t, err)
	_, err = tm.ParseToken(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "alice", "iss": "cartable"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.ParseToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "alice",
		"iss":     "cartable",
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	stale, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(stale)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": "cartable"})
	anonymous, err := noUser.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(anonymous)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", "cartable", time.Hour)
	token, err := tm.GenerateToken(models.Actor{ID: "bob", Roles: []models.Role{models.RoleSigner}})
	require.NoError(t, err)
	handler := AuthMiddleware(tm)(echoActor(t))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "unauthenticated", body["kind"])
				return
			}
			var actor models.Actor
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actor))
			assert.Equal(t, "bob", actor.ID)
		})
	}
}

func TestActorFromEmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := ActorFrom(req.Context())
	assert.False(t, ok)

	_, ok = ActorFrom(WithActor(req.Context(), models.Actor{}))
	assert.False(t, ok)
}
