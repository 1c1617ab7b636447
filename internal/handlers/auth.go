package handlers

import (
	"net/http"

	"kanban-board/internal/middleware"
	"kanban-board/internal/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db          *gorm.DB
	authService services.AuthService
	onLogin     func(userID uint)
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

func NewAuthHandler(db *gorm.DB, authService services.AuthService) *AuthHandler {
	return &AuthHandler{db: db, authService: authService}
}

// OnLogin registers fn to run after every successful login. fn must not block.
func (h *AuthHandler) OnLogin(fn func(userID uint)) *AuthHandler {
	h.onLogin = fn
	return h
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	user, err := h.authService.Login(h.db, req.Email, req.Password)
	if err != nil {
		c.Error(err)
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		c.Error(err)
		return
	}

	log.WithField("user_id", user.ID).Info("user logged in")
	if h.onLogin != nil {
		h.onLogin(user.ID)
	}
	c.JSON(http.StatusOK, TokenResponse{AccessToken: token})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	user, err := h.authService.Register(h.db, req)
	if err != nil {
		c.Error(err)
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		c.Error(err)
		return
	}

	log.WithField("user_id", user.ID).Info("user registered")
	c.JSON(http.StatusCreated, TokenResponse{AccessToken: token})
}

// Logout revokes the presented access token. Other sessions stay valid.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		c.Error(services.ErrInvalidToken)
		return
	}

	if err := h.authService.RevokeToken(c.Request.Context(), claims); err != nil {
		c.Error(err)
		return
	}

	log.WithFields(log.Fields{"user": claims.Subject, "jti": claims.ID}).Info("token revoked")
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
