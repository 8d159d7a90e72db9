// Package auth provides JWT issuing and the HTTP middleware that authenticates
// requests and enforces roles. The token is read from the Authorization header
// (with or without the "Bearer " prefix) or from the auth cookie.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/sitegate/internal/logger"
	"github.com/patric-chuzhbe/sitegate/internal/user"
)

// Auth issues and verifies JWTs.
type Auth struct {
	// cookieName is the name of the cookie used to store the JWT.
	cookieName string

	// signingKey is the key used to sign JWTs with HS256.
	signingKey []byte

	// tokenTTL is the lifetime of issued tokens.
	tokenTTL time.Duration
}

// Claims represents the JWT claims used by the system.
type Claims struct {
	jwt.RegisteredClaims
	UserID string    `json:"user_id"`
	Role   user.Role `json:"role"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

const (
	// UserIDKey holds the authenticated user's ID.
	UserIDKey ContextKey = "userID"

	// RoleKey holds the authenticated user's role.
	RoleKey ContextKey = "role"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// New creates an Auth with the cookie name, signing key and token lifetime.
func New(cookieName string, signingKey []byte, tokenTTL time.Duration) *Auth {
	return &Auth{
		cookieName: cookieName,
		signingKey: signingKey,
		tokenTTL:   tokenTTL,
	}
}

// CookieName returns the name of the cookie carrying the token.
func (a *Auth) CookieName() string {
	return a.cookieName
}

// TokenTTL returns the lifetime of issued tokens.
func (a *Auth) TokenTTL() time.Duration {
	return a.tokenTTL
}

// BuildJWTString signs a token for the given user.
func (a *Auth) BuildJWTString(userID string, role user.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
		UserID: userID,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(a.signingKey)
}

// ParseJWTString verifies the token and returns its claims.
func (a *Auth) ParseJWTString(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingKey, nil
		},
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// AuthenticateUser is an HTTP middleware that rejects requests without a
// valid token with 401 and stores the user ID and role in the request context.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		claims, err := a.ParseJWTString(a.getTokenStringFromAuthorizationHeaderOrCookie(request))
		if err != nil {
			logger.Log.Debugw("request rejected", "uri", request.RequestURI, "error", err)
			response.WriteHeader(http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(request.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, RoleKey, claims.Role)

		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// RequireRole returns a middleware answering 403 unless the authenticated
// role is one of roles. It must run after AuthenticateUser.
func (a *Auth) RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		middleware := func(response http.ResponseWriter, request *http.Request) {
			role, ok := RoleFromContext(request.Context())
			if !ok {
				response.WriteHeader(http.StatusUnauthorized)
				return
			}
			if !funk.Contains(roles, role) {
				response.WriteHeader(http.StatusForbidden)
				return
			}

			h.ServeHTTP(response, request)
		}

		return http.HandlerFunc(middleware)
	}
}

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// RoleFromContext returns the authenticated role, if any.
func RoleFromContext(ctx context.Context) (user.Role, bool) {
	role, ok := ctx.Value(RoleKey).(user.Role)
	return role, ok
}

func (a *Auth) getTokenStringFromAuthorizationHeaderOrCookie(request *http.Request) string {
	tokenString := request.Header.Get("Authorization")
	if tokenString != "" {
		return strings.TrimPrefix(tokenString, "Bearer ")
	}
	cookie, err := request.Cookie(a.cookieName)
	if err == nil {
		tokenString = cookie.Value
	}

	return tokenString
}
