// Package auth issues and validates admin API tokens. Credentials live in
// the storage backend; access tokens are signed JWTs good for 24 hours.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "crm-bridge/internal/common/errors"
	"crm-bridge/internal/storage"
)

const tokenLifetime = 24 * time.Hour

type contextKey int

const claimsContextKey contextKey = iota

// Claims carries the authenticated admin identity inside the JWT.
type Claims struct {
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	IsDefault bool   `json:"is_default"`
	jwt.RegisteredClaims
}

type Auth struct {
	store  storage.Store
	secret []byte
}

func New(store storage.Store, secret string) (*Auth, error) {
	if secret == "" {
		return nil, apperrors.ConfigError("JWT secret is required")
	}

	return &Auth{
		store:  store,
		secret: []byte(secret),
	}, nil
}

// Login validates a username/password pair and issues a signed token.
func (a *Auth) Login(ctx context.Context, username, password string) (string, *Claims, error) {
	user, err := a.store.ValidateUser(ctx, username, password)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	claims := &Claims{
		UserID:    user.ID,
		Username:  user.Username,
		IsDefault: user.IsDefault,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			Subject:   user.Username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", nil, apperrors.InternalError("failed to sign token", err)
	}

	return signed, claims, nil
}

// ValidateToken parses and verifies a signed token.
func (a *Auth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.AuthError("invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, apperrors.AuthError("invalid token claims")
	}

	return claims, nil
}

// RequireAuth guards admin endpoints with a bearer token check.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(w)
			return
		}

		claims, err := a.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the authenticated identity set by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
