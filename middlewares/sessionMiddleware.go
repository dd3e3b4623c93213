package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/utils"
)

func RevokedTokenKey(token string) string {
	return "Revoked:" + token
}

// SessionMiddleware rejects tokens revoked by /logout. Runs after AuthMiddleware.
// Redis answers first when connected; ctlrvk is the record of truth.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		token, ok := utils.GetTokenFromContext(ctx)
		if !ok || token == "" {
			c.Next()
			return
		}
		_, revoked, err := config.GetRedisValue(RevokedTokenKey(token))
		if err != nil {
			config.LogError(config.GetLogger(), "sessionMiddleware.go", "SessionMiddleware", "GetRedisValue", nil, err)
		}
		if !revoked {
			if db := config.GetDB(); db != nil {
				revoked, err = models.IsTokenRevoked(ctx, db, token)
				if err != nil {
					config.LogError(config.GetLogger(), "sessionMiddleware.go", "SessionMiddleware", "IsTokenRevoked", nil, err)
					c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not check session"})
					c.Abort()
					return
				}
			}
		}
		if revoked {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
