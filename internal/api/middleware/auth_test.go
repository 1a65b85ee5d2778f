package middleware

import (
	"bytes"
	"collection-ledger/internal/config"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tokenString
}

func TestAuthMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	secret := "testsecret"
	cfg := config.AuthConfig{Enabled: true, JWTSecret: secret}

	var seenActor int64
	var seenOK bool
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenActor, seenOK = ActorIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("disabled auth takes the actor from the header", func(t *testing.T) {
		middleware := AuthMiddleware(config.AuthConfig{Enabled: false}, logger)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(ActorHeader, "17")
		rec := httptest.NewRecorder()

		middleware(nextHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, seenOK)
		assert.Equal(t, int64(17), seenActor)
	})

	t.Run("disabled auth without header has no actor", func(t *testing.T) {
		middleware := AuthMiddleware(config.AuthConfig{Enabled: false}, logger)
		rec := httptest.NewRecorder()

		middleware(nextHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, seenOK)
	})

	t.Run("missing Authorization header", func(t *testing.T) {
		rec := httptest.NewRecorder()

		AuthMiddleware(cfg, logger)(nextHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer invalidtoken")
		rec := httptest.NewRecorder()

		AuthMiddleware(cfg, logger)(nextHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token without actor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, secret, jwt.MapClaims{"sub": "1234567890"}))
		rec := httptest.NewRecorder()

		AuthMiddleware(cfg, logger)(nextHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := ActorClaims{ActorID: 5, RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, secret, claims))
		rec := httptest.NewRecorder()

		AuthMiddleware(cfg, logger)(nextHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token puts the actor in context", func(t *testing.T) {
		claims := ActorClaims{ActorID: 5, Username: "agent-5", RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, secret, claims))
		rec := httptest.NewRecorder()

		AuthMiddleware(cfg, logger)(nextHandler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, seenOK)
		assert.Equal(t, int64(5), seenActor)
	})
}
