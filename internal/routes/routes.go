package routes

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the full API surface on the engine.
func RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")

	Health(api)

	AuthRoutes(api.Group("/auth"))
	LockRoutes(api.Group("/locks"))
	AdminLockRoutes(api.Group("/admin/locks"))
	UserRoutes(api.Group("/users"))
	EventRoutes(api.Group("/admin/events"))
}
