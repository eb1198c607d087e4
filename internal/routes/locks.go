package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lototrak/internal/storage"
)

// lockResponse is the wire shape of a lock record.
type lockResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Location         string    `json:"location"`
	Status           string    `json:"status"`
	AccessCode       string    `json:"accessCode"`
	SafetyProcedures []string  `json:"safetyProcedures"`
	AssignedUserID   *string   `json:"userId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toLockResponse(lock *storage.Lock) lockResponse {
	procedures := lock.SafetyProcedures
	if procedures == nil {
		// Always an array on the wire
		procedures = []string{}
	}
	return lockResponse{
		ID:               lock.ID,
		Name:             lock.Name,
		Location:         lock.Location,
		Status:           string(lock.Status),
		AccessCode:       lock.AccessCode,
		SafetyProcedures: procedures,
		AssignedUserID:   lock.AssignedUserID,
		CreatedAt:        lock.CreatedAt,
		UpdatedAt:        lock.UpdatedAt,
	}
}

func toLockResponses(list []storage.Lock) []lockResponse {
	out := make([]lockResponse, 0, len(list))
	for i := range list {
		out = append(out, toLockResponse(&list[i]))
	}
	return out
}

type assignRequest struct {
	SafetyChecks []string `json:"safetyChecks"`
}

// LockRoutes mounts the field-worker lock API: resolution by id or scanned
// access code, checklist-gated assignment, and release.
func LockRoutes(r *gin.RouterGroup) {
	r.Use(AuthMiddleware())

	// Locks currently held by the requesting user
	r.GET("/assigned", RequirePermission("locks", "view"), func(c *gin.Context) {
		user, err := GetUser(c)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		assigned, err := getManager(c).ListAssigned(c.Request.Context(), user)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toLockResponses(assigned))
	})

	// Lookup by id, falling back to access code for scanned input
	r.GET("/:lockId", RequirePermission("locks", "view"), func(c *gin.Context) {
		lock, err := getManager(c).Resolve(c.Request.Context(), c.Param("lockId"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toLockResponse(lock))
	})

	r.POST("/:lockId/assign", RequirePermission("locks", "assign"), func(c *gin.Context) {
		user, err := GetUser(c)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		var req assignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		if req.SafetyChecks == nil {
			AbortWithHTTPError(c, http.StatusBadRequest, ErrInvalidRequest, "Safety checks must be an array", "INVALID_REQUEST")
			return
		}

		lock, err := getManager(c).Assign(c.Request.Context(), c.Param("lockId"), user, req.SafetyChecks)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toLockResponse(lock))
	})

	r.POST("/:lockId/release", RequirePermission("locks", "release"), func(c *gin.Context) {
		user, err := GetUser(c)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		lock, err := getManager(c).Release(c.Request.Context(), c.Param("lockId"), user)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toLockResponse(lock))
	})
}
