// Authentication middleware and routes.
// A valid auth token in the cookie (or bearer header) resolves to a user
// record loaded fresh from storage, so role changes take effect immediately.
package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"lototrak/internal/config"
	"lototrak/internal/jwt"
	"lototrak/internal/nonce"
	"lototrak/internal/storage"
)

const AUTH_COOKIE_NAME = "auth_token"

const AUTH_FAIL_STATUS = http.StatusUnauthorized // HTTP status code for authentication failure

const bcryptCost = 10

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrNoUserInContext = errors.New("user not found in context")
)

// Get authentication TTL in seconds
func authTTL() uint {
	// Convert days to seconds
	return config.Cfg.UserAuthTTL * 24 * 60 * 60 // in seconds
}

// Set authentication cookie
// The cookie is set to expire when the token expires
func setAuthCookie(c *gin.Context, token string) {

	ttl := authTTL()
	secure := c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"

	c.SetCookie(
		AUTH_COOKIE_NAME,
		token,
		int(ttl),
		"/",
		"",
		secure, // Secure
		true,
	)
}

// GetUser returns the authenticated user set by AuthMiddleware.
func GetUser(c *gin.Context) (*storage.User, error) {
	u, exists := c.Get("user")
	if !exists {
		return nil, ErrNoUserInContext
	}
	user, ok := u.(*storage.User)
	if !ok {
		slog.Warn("GetUser: user in context has unexpected type")
		return nil, ErrNoUserInContext
	}
	return user, nil
}

func getStorage(c *gin.Context) storage.Provider {
	return c.MustGet("Storage").(storage.Provider)
}

// NewAuth issues a fresh auth token and sets the cookie.
func NewAuth(c *gin.Context, userID string) (string, error) {
	claim := jwt.NewAuthClaims(userID)
	token, err := jwt.GenerateJWT(claim)
	if err != nil {
		return "", err
	}
	setAuthCookie(c, token)
	return token, nil
}

// authToken extracts the raw token from the cookie or Authorization header.
func authToken(c *gin.Context) (string, error) {
	if token, err := c.Cookie(AUTH_COOKIE_NAME); err == nil && token != "" {
		return token, nil
	}
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok && after != "" {
		return after, nil
	}
	return "", ErrUnauthorized
}

func verifyAuth(c *gin.Context) (string, error) {
	token, err := authToken(c)
	if err != nil {
		return "", err
	}
	claims, err := jwt.DecodeAuthJWT(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// renewAuth reissues the token when it is past half its lifetime, consuming
// the old jti nonce so the replaced token stops validating.
func renewAuth(c *gin.Context, userID string, forceRenew bool) error {

	oldToken, err := authToken(c)
	if err == nil {
		oldClaims, err := jwt.DecodeAuthJWT(oldToken)
		if err == nil {
			nonceValue := oldClaims.ID
			expiration := oldClaims.ExpiresAt.Time

			// Log odd behavior, where the user ID in the token does not match the expected user ID
			if oldClaims.UserID != userID {
				slog.Warn("renewAuth: User ID mismatch in token", "tokenUserID", oldClaims.UserID, "expectedUserID", userID)
				return nil
			}

			if oldClaims.MustRenew {
				slog.Debug("renewAuth: Token marked for mandatory renewal", "userID", userID)
				forceRenew = true
			}

			renewAge := time.Duration(authTTL()/2) * time.Second
			if forceRenew || time.Until(expiration) < renewAge {
				slog.Debug("Renewing auth token for user", "userID", userID)

				// Invalidate old token by consuming its nonce
				nonce.Store.Consume(c.Request.Context(), nonceValue)

				forceRenew = true
			}
		}
	} else if !forceRenew {
		slog.Warn("renewAuth: No existing auth token found", "error", err)
		return err
	}

	if !forceRenew {
		// Early stop: No need to renew
		return nil
	}

	_, err = NewAuth(c, userID)
	return err
}

func AuthLogout(c *gin.Context) {

	// Consume the nonce to invalidate the token
	token, err := authToken(c)

	if err != nil {
		slog.Warn("AuthLogout: No auth token found to consume nonce", "error", err)
	} else {
		claims, err := jwt.DecodeAuthJWT(token)
		if err == nil {
			nonce.Store.Consume(c.Request.Context(), claims.ID)
		}
	}

	// Clear auth cookie by setting it to expire in the past
	c.SetCookie(
		AUTH_COOKIE_NAME,
		"",
		-1,
		"/",
		"",
		false,
		true,
	)
}

// AuthMiddleware validates the token and loads the user record into the
// context. Unauthenticated requests are rejected with 401.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := verifyAuth(c)
		if err != nil {
			slog.Warn("AuthMiddleware: Invalid or missing auth token", "error", err)
			c.AbortWithStatusJSON(AUTH_FAIL_STATUS, gin.H{
				"error": "unauthorized",
			})
			return
		}

		user, err := getStorage(c).GetUser(c.Request.Context(), uid)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Token refers to a deleted account
				c.AbortWithStatusJSON(AUTH_FAIL_STATUS, gin.H{"error": "unauthorized"})
				return
			}
			AbortWithError(c, err)
			return
		}

		c.Set("userID", user.ID)
		c.Set("user", user)
		c.Next()
	}
}

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	store := getStorage(c)
	ctx := c.Request.Context()

	if _, err := store.GetUserByEmail(ctx, req.Email); err == nil {
		AbortWithError(c, ErrEmailInUse)
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		AbortWithError(c, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := time.Now().UTC()
	user := storage.User{
		ID:           newID(),
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         storage.RolePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Name != "" {
		user.Name = &req.Name
	}

	if err := store.CreateUser(ctx, user); err != nil {
		AbortWithError(c, err)
		return
	}

	slog.Info("User registered", "userID", user.ID, "email", user.Email)

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully. Your account is pending approval.",
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

func login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	store := getStorage(c)
	user, err := store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			AbortWithError(c, ErrInvalidCredentials)
			return
		}
		AbortWithError(c, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		AbortWithError(c, ErrInvalidCredentials)
		return
	}

	token, err := NewAuth(c, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	slog.Debug("User logged in", "userID", user.ID)

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

func AuthRoutes(r *gin.RouterGroup) {
	r.POST("/signup", signup)
	r.POST("/login", login)

	r.POST("/logout", AuthMiddleware(), func(c *gin.Context) {
		AuthLogout(c)
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
	})

	// Route to renew authentication token
	r.GET("/renew", AuthMiddleware(), func(c *gin.Context) {
		user, err := GetUser(c)
		if err != nil {
			c.AbortWithStatus(AUTH_FAIL_STATUS)
			return
		}

		if err := renewAuth(c, user.ID, true); err != nil {
			slog.Error("AuthRoutes: Failed to renew auth token", "error", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	// Route to check authentication status
	r.GET("/status", AuthMiddleware(), func(c *gin.Context) {
		user, err := GetUser(c)
		if err != nil {
			c.AbortWithStatus(AUTH_FAIL_STATUS)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "authenticated",
			"userID": user.ID,
			"role":   user.Role,
		})
	})
}
