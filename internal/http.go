package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"lototrak/internal/access"
	"lototrak/internal/config"
	"lototrak/internal/email"
	"lototrak/internal/locks"
	"lototrak/internal/nonce"
	"lototrak/internal/routes"
	"lototrak/internal/storage"
)

func securityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("X-XSS-Protection", "1; mode=block")

	// Disable caching
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Next()
}

func HTTPServer() *gin.Engine {
	r := gin.Default()

	r.Use(securityHeaders)
	r.Use(routes.ErrorHandler())

	r.GET("/ping", func(c *gin.Context) {
		msg := c.Query("ping")
		if msg == "" {
			msg = "pong"
		}

		authenticated := false
		if c.GetString("userID") != "" {
			authenticated = true
		}
		c.JSON(http.StatusOK, gin.H{
			"message":       msg,
			"authenticated": authenticated,
		})
	})

	r.GET("/config.json", func(c *gin.Context) {
		// Provide a initial config
		var clientCfg = gin.H{
			"UserAuthTTL": config.Cfg.UserAuthTTL,
			"BaseURL":     config.Cfg.BaseURL,
		}

		c.JSON(http.StatusOK, clientCfg)
	})

	return r
}

// LoadRBAC returns the capability policy, applying the override file from
// config when one is set.
func LoadRBAC(cfg *config.Config) *access.RBAC {
	rbac := access.GetRBAC()
	if cfg.RBAC.PolicyFile != "" {
		if err := rbac.LoadPolicy(cfg.RBAC.PolicyFile); err != nil {
			slog.Error("Failed to load RBAC policy", "error", err, "file", cfg.RBAC.PolicyFile)
			os.Exit(1)
		}
	}
	return rbac
}

func ServerMain(ctx context.Context, storageProvider storage.Provider) {

	if config.Cfg == nil {
		panic("Config not initialized.")
	}

	// Use the provider passed from cobra command (already initialized)
	if storageProvider == nil {
		slog.Error("Storage provider is nil")
		os.Exit(1)
	}

	if err := nonce.InitNonceStore(config.Cfg, storageProvider); err != nil {
		slog.Error("Failed to initialize nonce store", "error", err)
		os.Exit(1)
	}

	manager := locks.NewManager(storageProvider)
	rbac := LoadRBAC(config.Cfg)

	var mailer *email.Client
	if config.Cfg.Email.Host != "" {
		mailer = email.NewClient(config.Cfg.Email)
	}

	// Initialize HTTP server
	server := HTTPServer()

	// Middleware to inject dependencies into context
	server.Use(func(c *gin.Context) {
		c.Set("Storage", storageProvider)
		c.Set("RBAC", rbac)
		c.Set("Locks", manager)
		if mailer != nil {
			c.Set("Email", mailer)
		}
		c.Next()
	})

	routes.RegisterRoutes(server)

	server.Run()
}
