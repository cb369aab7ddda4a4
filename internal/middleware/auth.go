package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"delivery/internal/auth"
	"delivery/internal/domain"
)

// identityKey is the gin context key the resolved identity is stored
// under.
const identityKey = "identity"

// AuthMiddleware resolves the bearer token into an identity and stores
// it in the request context. A missing or invalid token resolves to
// Anonymous; the services reject unauthorized actions themselves, so
// the middleware never aborts.
func AuthMiddleware(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := domain.Anonymous()
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			id = tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// IdentityFrom returns the identity resolved by AuthMiddleware, or
// Anonymous when the middleware did not run.
func IdentityFrom(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(domain.Identity); ok {
			return id
		}
	}
	return domain.Anonymous()
}
