package handlers

import (
	"net/http"
	"strings"
	"time"

	"trade-closeout/internal/database"
	"trade-closeout/internal/logger"
	"trade-closeout/internal/middleware"
	"trade-closeout/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthHandler(jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// Login принимает JSON или форму, выдаёт токен и заодно открывает сессию браузера.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "username and password are required")
		return
	}

	var user models.User
	if err := database.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		logger.Warn(c.Request.Context(), "login failed", "username", maskEmail(req.Username))
		respondError(c, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		logger.Warn(c.Request.Context(), "login failed", "username", maskEmail(req.Username))
		respondError(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, expiresAt, err := middleware.GenerateToken(user, h.jwtSecret, h.tokenTTL)
	if err != nil {
		respondInternal(c, "failed to generate token", err)
		return
	}

	sess := sessions.Default(c)
	sess.Set("user_id", user.ID)
	sess.Set("role", string(user.Role))
	if err := sess.Save(); err != nil {
		logger.Warn(c.Request.Context(), "failed to save session", "error", err)
	}

	logger.Info(c.Request.Context(), "user logged in", "username", maskEmail(user.Username), "role", user.Role)
	c.JSON(http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

// Me — текущий пользователь.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}
	c.JSON(http.StatusOK, user)
}

// maskEmail прячет локальную часть логина в логах: cl***@trade.local.
func maskEmail(email string) string {
	runes := []rune(email)
	atIdx := -1
	for i, r := range runes {
		if r == '@' {
			atIdx = i
			break
		}
	}
	if atIdx <= 0 {
		return "***"
	}
	prefix := string(runes[:atIdx])
	domain := string(runes[atIdx:])
	if len(prefix) <= 2 {
		return prefix + "***" + domain
	}
	return string(runes[0:2]) + "***" + domain
}
