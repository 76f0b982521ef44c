// Package middleware provides the request pipeline pieces shared by all routes:
// authentication, logging, rate limiting, tracing and metrics.
package middleware

import (
	"context"
	"strings"

	"postapp/internal/auth"
	"postapp/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Fiber locals written by the guard.
const (
	LocalUserID   = "userID"
	LocalUsername = "username"
)

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// AuthGuard authenticates requests with an injected verifier.
type AuthGuard struct {
	verifier TokenVerifier
}

// NewAuthGuard returns a guard backed by verifier.
func NewAuthGuard(verifier TokenVerifier) *AuthGuard {
	return &AuthGuard{verifier: verifier}
}

// RequireAuth rejects the request with 401 unless it carries a valid bearer
// token.
func (g *AuthGuard) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return models.RespondWithError(c, models.NewUnauthorizedError(err.Error()), false)
		}

		id, err := g.verifier.Verify(token)
		if err != nil {
			return models.RespondWithError(c, models.NewUnauthorizedError("Invalid or expired token"), false)
		}

		setIdentity(c, id)
		return c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present. Missing
// and invalid tokens both leave the request anonymous.
func (g *AuthGuard) OptionalAuth() fiber.Handler {
	return g.optional(false)
}

// OptionalAuthWithQuery is OptionalAuth that also reads a `token` query
// parameter, for WebSocket clients that cannot set headers.
func (g *AuthGuard) OptionalAuthWithQuery() fiber.Handler {
	return g.optional(true)
}

func (g *AuthGuard) optional(allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil && allowQuery {
			token, err = c.Query("token"), nil
		}
		if err != nil || token == "" {
			return c.Next()
		}

		id, err := g.verifier.Verify(token)
		if err != nil {
			Logger.DebugContext(c.UserContext(), "ignoring invalid optional token", "error", err)
			return c.Next()
		}

		setIdentity(c, id)
		return c.Next()
	}
}

type headerError string

func (e headerError) Error() string { return string(e) }

const (
	errHeaderMissing = headerError("Authorization header required")
	errHeaderFormat  = headerError("Invalid authorization header format")
)

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errHeaderMissing
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errHeaderFormat
	}
	return parts[1], nil
}

func setIdentity(c *fiber.Ctx, id auth.Identity) {
	c.Locals(LocalUserID, id.UserID)
	c.Locals(LocalUsername, id.Username)

	ctx := context.WithValue(c.UserContext(), UserIDKey, id.UserID)
	c.SetUserContext(ctx)
}

// UserID returns the authenticated caller, if any.
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(LocalUserID).(uint)
	return id, ok && id != 0
}
