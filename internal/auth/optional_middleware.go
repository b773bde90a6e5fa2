package auth

import (
	"shelfmate/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// OptionalAuthMiddleware inspects for a token and sets the userID if present and valid,
// but does not fail if the token is missing or invalid.
func OptionalAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := Token(c); tokenString != "" {
			if userID, err := jwt.ParseToken(tokenString, secret); err == nil {
				c.Set(ctxUserID, userID)
			}
		}
		c.Next()
	}
}
