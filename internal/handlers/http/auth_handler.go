package http

import (
	"net/http"
	"strings"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService services.AuthService
	tokenTTL    time.Duration
}

func NewAuthHandler(authService services.AuthService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokenTTL:    tokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/login", h.Login)
	}
}

type LoginRequest struct {
	Username  string `json:"username" binding:"required,max=50"`
	Password  string `json:"password" binding:"required,min=6,max=128"`
	Performer bool   `json:"performer"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	// TODO: validate credentials against the platform account service once
	// its client lands; until then every login mints a fresh identity.
	userID := domain.UserID(uuid.New().String())

	accessToken, err := h.authService.GenerateToken(userID, req.Username, req.Performer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"username":     req.Username,
		"access_token": accessToken,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}
