package http

import (
	"net/http"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
	apperrors "stagecast/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler is the REST surface over the session lifecycle service.
// The gateway owns the room protocol; everything request/response-shaped
// lands here.
type SessionHandler struct {
	sessions ports.SessionService
	peekins  ports.PeekInService
	balances ports.BalanceProvider
	logger   *zap.SugaredLogger
}

func NewSessionHandler(
	sessions ports.SessionService,
	peekins ports.PeekInService,
	balances ports.BalanceProvider,
	logger *zap.SugaredLogger,
) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		peekins:  peekins,
		balances: balances,
		logger:   logger,
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine, auth, optionalAuth, performerOnly gin.HandlerFunc) {
	api := router.Group("/api/v1")
	{
		api.POST("/sessions/:performerId/:type", optionalAuth, h.GetOrCreateSessionID)
		api.GET("/broadcasts/:performerId/:type/status", optionalAuth, h.GetBroadcastStatus)
		api.GET("/streams/public/:performerId", optionalAuth, h.GetPublicStream)
		api.POST("/chats/public/:performerId/join", optionalAuth, h.JoinPublicChat)

		authed := api.Group("", auth)
		{
			authed.POST("/chats/private/:performerId/request", h.RequestPrivateChat)
			authed.POST("/chats/group/:performerId/join", h.JoinGroupChat)
			authed.POST("/streams/:id/token", h.GetOneTimeToken)
			authed.POST("/peek-in/:performerId", h.CreatePeekIn)

			performer := authed.Group("", performerOnly)
			{
				performer.POST("/broadcasts/go-live", h.GoLive)
				performer.POST("/chats/private/accept", h.AcceptPrivateChat)
				performer.POST("/chats/group/start", h.StartGroupChat)
			}
		}
	}
}

func (h *SessionHandler) GetOrCreateSessionID(c *gin.Context) {
	performerID := domain.PerformerID(c.Param("performerId"))
	streamType := domain.StreamType(c.Param("type"))

	sessionID, err := h.sessions.GetOrCreateSessionID(c.Request.Context(), performerID, streamType)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
	})
}

func (h *SessionHandler) GoLive(c *gin.Context) {
	performerID := h.performerID(c)

	result, err := h.sessions.GoLive(c.Request.Context(), performerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *SessionHandler) RequestPrivateChat(c *gin.Context) {
	performerID := domain.PerformerID(c.Param("performerId"))

	user, err := h.currentUser(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.sessions.RequestPrivateChat(c.Request.Context(), user, performerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *SessionHandler) AcceptPrivateChat(c *gin.Context) {
	var req struct {
		ConversationID domain.ConversationID `json:"conversation_id" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.sessions.AcceptPrivateChat(c.Request.Context(), req.ConversationID, h.performerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *SessionHandler) StartGroupChat(c *gin.Context) {
	result, err := h.sessions.StartGroupChat(c.Request.Context(), h.performerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *SessionHandler) JoinGroupChat(c *gin.Context) {
	performerID := domain.PerformerID(c.Param("performerId"))

	user, err := h.currentUser(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.sessions.JoinGroupChat(c.Request.Context(), performerID, user)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// JoinPublicChat tolerates anonymous callers; the tier gate inside the
// service decides whether they get in.
func (h *SessionHandler) JoinPublicChat(c *gin.Context) {
	performerID := domain.PerformerID(c.Param("performerId"))

	var user *domain.User
	if _, authed := c.Get("user_id"); authed {
		u, err := h.currentUser(c)
		if err != nil {
			h.respondError(c, err)
			return
		}
		user = u
	}

	sessionID, err := h.sessions.JoinPublicChat(c.Request.Context(), performerID, user)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
	})
}

func (h *SessionHandler) GetOneTimeToken(c *gin.Context) {
	streamID := domain.StreamID(c.Param("id"))

	var req struct {
		Publish bool `json:"publish"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("user_id")
	token, err := h.sessions.GetOneTimeToken(c.Request.Context(), streamID, req.Publish, userID.(domain.UserID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
	})
}

func (h *SessionHandler) GetBroadcastStatus(c *gin.Context) {
	performerID := domain.PerformerID(c.Param("performerId"))
	streamType := domain.StreamType(c.Param("type"))
	if !streamType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stream type"})
		return
	}

	info, err := h.sessions.GetBroadcastStatus(c.Request.Context(), performerID, streamType)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"broadcast": info,
	})
}

func (h *SessionHandler) GetPublicStream(c *gin.Context) {
	performerID := domain.PerformerID(c.Param("performerId"))

	stream, err := h.sessions.GetPublicStream(c.Request.Context(), performerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stream": stream,
	})
}

func (h *SessionHandler) CreatePeekIn(c *gin.Context) {
	performerID := domain.PerformerID(c.Param("performerId"))
	userID, _ := c.Get("user_id")

	req, err := h.peekins.CreateRequest(c.Request.Context(), performerID, userID.(domain.UserID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"peek_in": req,
	})
}

func (h *SessionHandler) currentUser(c *gin.Context) (*domain.User, error) {
	userID, _ := c.Get("user_id")
	return h.balances.GetUser(c.Request.Context(), userID.(domain.UserID))
}

// performerID treats the authenticated performer account's user id as its
// performer id; the two identity spaces share values.
func (h *SessionHandler) performerID(c *gin.Context) domain.PerformerID {
	userID, _ := c.Get("user_id")
	return domain.PerformerID(userID.(domain.UserID))
}

func (h *SessionHandler) respondError(c *gin.Context, err error) {
	appErr := apperrors.FromDomain(err)

	h.logger.Infow("request failed",
		"path", c.Request.URL.Path,
		"code", appErr.Code,
		"error", err,
	)

	c.JSON(appErr.HTTPStatus, gin.H{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}
