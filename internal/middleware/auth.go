package middleware

import (
	"strings"

	"github.com/dimitrije/shipyard/internal/authz"
	"github.com/dimitrije/shipyard/internal/services"
	"github.com/m1z23r/drift/pkg/drift"
)

const AuthzContextKey = "authz_context"

type TokenVerifier interface {
	Verify(token string) (*services.CrossServiceClaims, bool)
}

// CrossServiceAuth admits requests carrying a valid cross-service bearer
// token and exposes the caller as an authz.Context. Anything else is
// unauthenticated.
func CrossServiceAuth(tokens TokenVerifier) drift.HandlerFunc {
	return func(c *drift.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Unauthorized("missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.Unauthorized("invalid authorization header format")
			return
		}

		claims, ok := tokens.Verify(parts[1])
		if !ok {
			c.Unauthorized("invalid or expired token")
			return
		}

		c.Set(AuthzContextKey, claims.AuthzContext())

		c.Next()
	}
}

func GetAuthzContext(c *drift.Context) *authz.Context {
	if v, ok := c.Get(AuthzContextKey); ok {
		if ac, ok := v.(*authz.Context); ok {
			return ac
		}
	}
	return nil
}
