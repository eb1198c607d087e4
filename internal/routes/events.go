package routes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lototrak/internal/storage"
)

type eventResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Details      string    `json:"details"`
	Location     *string   `json:"location"`
	SafetyChecks []string  `json:"safetyChecks"`
	LockID       *string   `json:"lockId"`
	UserID       string    `json:"userId"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toEventResponse(e *storage.Event) eventResponse {
	checks := e.SafetyChecks
	if checks == nil {
		checks = storage.StringList{}
	}
	return eventResponse{
		ID:           e.ID,
		Type:         string(e.Type),
		Details:      e.Details,
		Location:     e.Location,
		SafetyChecks: checks,
		LockID:       e.LockID,
		UserID:       e.UserID,
		CreatedAt:    e.CreatedAt,
	}
}

// EventRoutes exposes the audit log, newest first. Filters are query
// parameters; unknown values simply match nothing.
func EventRoutes(r *gin.RouterGroup) {
	r.Use(AuthMiddleware(), RequirePermission("events", "view"))

	r.GET("", func(c *gin.Context) {
		filter := storage.EventFilter{
			LockID: c.Query("lockId"),
			UserID: c.Query("userId"),
			Type:   storage.EventType(c.Query("type")),
		}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 1 {
				AbortWithError(c, ErrInvalidParameter)
				return
			}
			filter.Limit = limit
		}

		events, err := getManager(c).Events(c.Request.Context(), filter)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		out := make([]eventResponse, 0, len(events))
		for i := range events {
			out = append(out, toEventResponse(&events[i]))
		}
		c.JSON(http.StatusOK, gin.H{"events": out})
	})
}
