package utils

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware verifies the management JWT and stores the creator
// reference on the context. This is the authorization gate for the
// management and creation endpoints.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"status": 403,
				"code":   "sharelink.forbidden",
				"title":  "Forbidden",
				"detail": "You are not authorized to manage this link.",
			})
			c.Abort()
			return
		}
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{
				"status": 403,
				"code":   "sharelink.forbidden",
				"title":  "Forbidden",
				"detail": "You are not authorized to manage this link.",
			})
			c.Abort()
			return
		}
		claims, err := VerifyJWT(tokenParts[1])
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{
				"status": 403,
				"code":   "sharelink.forbidden",
				"title":  "Forbidden",
				"detail": "You are not authorized to manage this link.",
			})
			c.Abort()
			return
		}
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}
