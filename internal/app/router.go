// internal/app/router.go
package app

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	authHandler "gestia-service/internal/handlers/auth"
	wsHandler "gestia-service/internal/handlers/websocket"
	"gestia-service/internal/metrics"
	"gestia-service/internal/middleware"
	"gestia-service/internal/pkg/response"
)

type Handlers struct {
	AuthHandler *authHandler.AuthHandler
	WSHandler   *wsHandler.Handler
	Guard       *middleware.Guard
	Registry    *prometheus.Registry
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Metrics ====================
	r.GET("/metrics", metrics.Handler(h.Registry))

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.Connect)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/register", h.AuthHandler.Register)
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/login/oauth", h.AuthHandler.LoginOAuth)
		authPublic.POST("/reset-password", h.AuthHandler.ResetPassword)
		authPublic.GET("/session", h.AuthHandler.GetSession)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.Guard.RequireSession())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.POST("/activity", h.AuthHandler.Activity)
	}

	// ==================== Protected API ====================
	protected := api.Group("")
	protected.Use(h.Guard.RequireSession())
	{
		protected.GET("/dashboard", func(c *gin.Context) {
			response.Success(c, 200, "dashboard", gin.H{
				"user_id": middleware.MustGetUID(c),
			})
		})
	}

	// ==================== Pages ====================
	r.GET("/login", func(c *gin.Context) {
		c.JSON(200, gin.H{"page": "login"})
	})

	pages := r.Group("/app")
	pages.Use(h.Guard.Pages())
	{
		pages.GET("/*path", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"page":    c.Param("path"),
				"user_id": middleware.MustGetUID(c),
			})
		})
	}
}
