package middleware

import (
	"context"
	"net/http"

	"trade-closeout/internal/database"
	"trade-closeout/internal/logger"
	"trade-closeout/internal/models"

	"github.com/gin-gonic/gin"
)

// InjectUser подгружает пользователя после RequireAuth. Удалённый пользователь — 401.
func InjectUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := CurrentUserID(c)
		if uid == 0 {
			c.Next()
			return
		}

		var user models.User
		if err := database.DB.First(&user, uid).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}
		c.Set("CurrentUser", user)
		// роль берём из БД: токен мог быть выпущен до смены роли
		c.Set(ctxRole, user.Role)

		ctx := context.WithValue(c.Request.Context(), logger.UserKey, user.Username)
		ctx = context.WithValue(ctx, logger.RoleKey, string(user.Role))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	if v, ok := c.Get("CurrentUser"); ok {
		u, ok := v.(models.User)
		return u, ok
	}
	return models.User{}, false
}
