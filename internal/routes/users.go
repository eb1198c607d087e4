package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lototrak/internal/email"
	"lototrak/internal/storage"
)

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toUserResponse(u *storage.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UserRoutes mounts user administration: listing accounts and promoting
// roles. Requires the users manage capability.
func UserRoutes(r *gin.RouterGroup) {
	r.Use(AuthMiddleware(), RequirePermission("users", "manage"))

	r.GET("", func(c *gin.Context) {
		users, err := getStorage(c).ListUsers(c.Request.Context())
		if err != nil {
			AbortWithError(c, err)
			return
		}

		out := make([]userResponse, 0, len(users))
		for i := range users {
			out = append(out, toUserResponse(&users[i]))
		}
		c.JSON(http.StatusOK, gin.H{"users": out})
	})

	r.PATCH("/:userId", func(c *gin.Context) {
		var req setRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		role := storage.Role(req.Role)
		if !storage.ValidRole(role) {
			AbortWithHTTPError(c, http.StatusBadRequest, ErrInvalidParameter, "Invalid role", "ROLE_INVALID")
			return
		}

		store := getStorage(c)
		ctx := c.Request.Context()

		target, err := store.GetUser(ctx, c.Param("userId"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				AbortWithError(c, ErrUserNotFound)
				return
			}
			AbortWithError(c, err)
			return
		}

		if err := store.UpdateUserRole(ctx, target.ID, role); err != nil {
			AbortWithError(c, err)
			return
		}

		// A pending account getting a working role counts as approval
		if target.Role == storage.RolePending && role != storage.RolePending {
			notifyApproval(c, target)
		}

		updated, err := store.GetUser(ctx, target.ID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": toUserResponse(updated)})
	})
}

// notifyApproval sends the account-approved email. Failures are logged, not
// surfaced: the role change already committed.
func notifyApproval(c *gin.Context, user *storage.User) {
	clientIface, exists := c.Get("Email")
	if !exists {
		return
	}
	client, ok := clientIface.(*email.Client)
	if !ok || client == nil {
		return
	}

	msg := &email.Message{
		To:      []string{user.Email},
		Subject: "Your LotoTrak account has been approved",
		HTML: fmt.Sprintf(
			"<p>Hello,</p><p>Your account <b>%s</b> has been approved. You can now sign in and start working with locks.</p>",
			user.Email),
	}
	if err := client.Send(msg); err != nil {
		slog.Warn("Failed to send approval email", "userID", user.ID, "error", err)
	}
}
