package middleware

import (
	"asset-tracker/internal/models"
	"asset-tracker/internal/store"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	SessionUserKey = "user_id"
	currentUserKey = "CurrentUser"
)

// InjectUser resolves the session user. Deleted users drop out here, which
// logs them out on their next request.
func InjectUser(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		if uidRaw := sess.Get(SessionUserKey); uidRaw != nil {
			if uid, ok := uidRaw.(uint); ok && uid > 0 {
				if user, err := s.UserByID(c.Request.Context(), uid); err == nil {
					c.Set(currentUserKey, user)
				}
			}
		}

		c.Next()
	}
}

func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
