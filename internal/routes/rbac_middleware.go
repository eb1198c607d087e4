package routes

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"lototrak/internal/access"
)

// RequirePermission creates middleware that checks the authenticated user's
// role for a specific capability. Runs after AuthMiddleware.
func RequirePermission(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetUser(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		rbac := c.MustGet("RBAC").(*access.RBAC)
		if !rbac.Can(string(user.Role), resource, action) {
			slog.Warn("Permission denied",
				"userID", user.ID,
				"role", user.Role,
				"resource", resource,
				"action", action)

			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "permission denied",
				"details": map[string]string{
					"resource": resource,
					"action":   action,
				},
			})
			return
		}

		slog.Debug("Permission granted",
			"userID", user.ID,
			"resource", resource,
			"action", action)

		c.Next()
	}
}
