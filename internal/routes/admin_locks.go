package routes

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"lototrak/internal/config"
	"lototrak/internal/locks"
	"lototrak/internal/storage"
)

type createLockRequest struct {
	Name             string   `json:"name" binding:"required"`
	Location         string   `json:"location" binding:"required"`
	AccessCode       string   `json:"accessCode"`
	SafetyProcedures []string `json:"safetyProcedures"`
}

type updateLockRequest struct {
	ID               string   `json:"id" binding:"required"`
	Name             string   `json:"name" binding:"required"`
	Location         string   `json:"location" binding:"required"`
	AccessCode       string   `json:"accessCode"`
	SafetyProcedures []string `json:"safetyProcedures"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AdminLockRoutes mounts the inventory management API. All routes require
// the locks manage capability (ADMIN and SUPERVISOR by default policy).
func AdminLockRoutes(r *gin.RouterGroup) {
	r.Use(AuthMiddleware(), RequirePermission("locks", "manage"))

	r.GET("", func(c *gin.Context) {
		list, err := getManager(c).List(c.Request.Context())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toLockResponses(list))
	})

	r.POST("", func(c *gin.Context) {
		user, err := GetUser(c)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		var req createLockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		if req.SafetyProcedures == nil {
			AbortWithHTTPError(c, http.StatusBadRequest, ErrInvalidRequest, "Safety procedures must be an array", "INVALID_REQUEST")
			return
		}

		lock, err := getManager(c).Create(c.Request.Context(), locks.CreateInput{
			Name:             req.Name,
			Location:         req.Location,
			Code:             req.AccessCode,
			SafetyProcedures: req.SafetyProcedures,
		}, user)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toLockResponse(lock))
	})

	r.PUT("", func(c *gin.Context) {
		user, err := GetUser(c)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		var req updateLockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		if req.SafetyProcedures == nil {
			AbortWithHTTPError(c, http.StatusBadRequest, ErrInvalidRequest, "Safety procedures must be an array", "INVALID_REQUEST")
			return
		}

		lock, err := getManager(c).Update(c.Request.Context(), req.ID, locks.UpdateInput{
			Name:             req.Name,
			Location:         req.Location,
			Code:             req.AccessCode,
			SafetyProcedures: req.SafetyProcedures,
		}, user)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toLockResponse(lock))
	})

	r.DELETE("/:lockId", func(c *gin.Context) {
		user, err := GetUser(c)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if err := getManager(c).SoftDelete(c.Request.Context(), c.Param("lockId"), user); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.PUT("/:lockId/status", func(c *gin.Context) {
		user, err := GetUser(c)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		lock, event, err := getManager(c).ChangeStatus(c.Request.Context(), c.Param("lockId"), storage.LockStatus(req.Status), user)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"lock": toLockResponse(lock),
			"event": gin.H{
				"id":      event.ID,
				"type":    event.Type,
				"details": event.Details,
			},
		})
	})

	// Printable QR image of a lock's access code
	r.GET("/:lockId/qr.png", func(c *gin.Context) {
		lock, err := getManager(c).Resolve(c.Request.Context(), c.Param("lockId"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		// Highest error correction: printed labels get dirty in the field
		png, err := qrcode.Encode(lock.AccessCode, qrcode.Highest, config.QR_IMAGE_SIZE)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", "lock-"+lock.ID+"-qr.png"))
		c.Data(http.StatusOK, "image/png", png)
	})
}
