package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bookxchange/bookxchange/internal/auth"
)

const contextUserIDKey = "userID"

// AuthMiddleware validates JWT bearer tokens and sets the caller's
// user id in the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		userID, err := auth.UserIDFromClaims(claims)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID in token"})
			c.Abort()
			return
		}

		c.Set(contextUserIDKey, userID)
		c.Set("username", claims.Username)

		c.Next()
	}
}

// currentUserID pulls the authenticated user id from the context. The
// bool result is false when the middleware did not run.
func currentUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(contextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
