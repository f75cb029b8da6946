package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/gatherly/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
// Moderation endpoints use this so callers present proof of capability,
// not merely proof of identity.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
