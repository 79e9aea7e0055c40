package middleware

import (
	"net/http"

	"asset-tracker/internal/models"
	"asset-tracker/internal/response"

	"github.com/gin-gonic/gin"
)

// RequireAuth rejects requests without a live session user. It relies on
// InjectUser having run first.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", "login required")
			return
		}
		c.Next()
	}
}

func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	roleSet := map[models.UserRole]struct{}{}
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", "login required")
			return
		}
		if _, ok := roleSet[user.Role]; !ok {
			response.AbortError(c, http.StatusForbidden, "forbidden", "access denied")
			return
		}
		c.Next()
	}
}
