package middleware

import (
	"net/http"
	"strings"

	"stagecast/internal/core/services"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		token := parts[1]
		claims, err := authService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		// Store user info in context
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("performer", claims.Performer)
		c.Next()
	}
}

// OptionalAuthMiddleware lets anonymous callers through with no identity in
// context, used by the public-chat join path.
func OptionalAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			token := parts[1]
			if claims, err := authService.ValidateToken(token); err == nil {
				c.Set("user_id", claims.UserID)
				c.Set("username", claims.Username)
				c.Set("performer", claims.Performer)
			}
		}

		c.Next()
	}
}

// PerformerOnlyMiddleware gates broadcaster-side operations.
func PerformerOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		performer, exists := c.Get("performer")
		if !exists || performer != true {
			c.JSON(http.StatusForbidden, gin.H{"error": "performer account required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
