package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/carelane/hospital-scheduling/internal/identity"
)

// Claims is the token payload the auth middleware expects: the subject
// holds the actor ID, role the actor's role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewToken signs a bearer token for an actor. Used by the seed and
// simulate commands and by tests; real deployments issue tokens from the
// identity service.
func NewToken(secret string, actorID uuid.UUID, role identity.Role, ttl time.Duration) (string, error) {
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// AuthMiddleware validates the bearer token and stores the resulting
// caller in the request context. Every appointment route sits behind it.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "missing_token", "Authorization header required")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, "invalid_token", "expected Bearer token")
				return
			}

			caller, err := parseToken(secret, parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseToken(secret, raw string) (identity.Caller, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return identity.Caller{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return identity.Caller{}, fmt.Errorf("invalid token claims")
	}

	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return identity.Caller{}, fmt.Errorf("token subject is not an actor id")
	}

	role := identity.Role(claims.Role)
	if !role.Valid() {
		return identity.Caller{}, fmt.Errorf("unknown role %q", claims.Role)
	}

	return identity.Caller{ID: actorID, Role: role}, nil
}

// CallerFromContext retrieves the authenticated caller set by
// AuthMiddleware.
func CallerFromContext(ctx context.Context) (identity.Caller, bool) {
	c, ok := ctx.Value(callerKey).(identity.Caller)
	return c, ok
}
