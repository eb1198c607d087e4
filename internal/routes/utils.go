package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lototrak/internal/locks"
)

func newID() string {
	return uuid.NewString()
}

func getManager(c *gin.Context) *locks.Manager {
	return c.MustGet("Locks").(*locks.Manager)
}
