// Package router wires the gin engine: middleware, auth, and the REST
// routes of the interview backend.
package router

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"prepmate/internal/auth"
	"prepmate/internal/handlers"
	"prepmate/internal/store"
)

// Setup builds the engine with recovery, request logging, and all routes.
func Setup(logger *slog.Logger, s store.Store, tokens *auth.Tokens) *gin.Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(logger))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	users := handlers.NewUsers(s, tokens, logger)
	interviews := handlers.NewInterviews(s, logger)

	api := engine.Group("/api")
	{
		api.POST("/users", users.Register)
		api.POST("/users/login", users.Login)
		api.GET("/users/profile", AuthRequired(tokens), users.Profile)

		authed := api.Group("/interviews", AuthRequired(tokens))
		{
			authed.POST("", interviews.Create)
			authed.GET("", interviews.List)
			authed.GET("/:id", interviews.Get)
			authed.PUT("/:id", interviews.Update)
			authed.DELETE("/:id", interviews.Delete)
		}
	}

	return engine
}

// RequestLogger logs each request with method, path, status, and latency.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}

		switch {
		case status >= 500:
			logger.Error("request failed", attrs...)
		case status >= 400:
			logger.Warn("request rejected", attrs...)
		default:
			logger.Debug("request processed", attrs...)
		}
	}
}

// AuthRequired verifies the bearer token and stores the caller's user id in
// the context for handlers.
func AuthRequired(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token"})
			return
		}

		userID, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, token failed"})
			return
		}

		c.Set(handlers.ContextUserID, userID)
		c.Next()
	}
}
