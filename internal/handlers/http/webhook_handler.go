package http

import (
	"net/http"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	webhookPublishStarted  = "publishStarted"
	webhookPublishFinished = "publishFinished"
)

// WebhookHandler receives the media server's asynchronous callbacks. The
// registered webhook URL carries performer_id, stream_id and conversation_id
// as query parameters; the body names the sub-stream and what happened to it.
type WebhookHandler struct {
	streams  ports.StreamRepository
	sessions ports.SessionService
	logger   *zap.SugaredLogger
}

func NewWebhookHandler(streams ports.StreamRepository, sessions ports.SessionService, logger *zap.SugaredLogger) *WebhookHandler {
	return &WebhookHandler{
		streams:  streams,
		sessions: sessions,
		logger:   logger,
	}
}

func (h *WebhookHandler) SetupRoutes(router *gin.Engine) {
	router.POST("/api/v1/broadcast/webhook", h.HandleCallback)
}

func (h *WebhookHandler) HandleCallback(c *gin.Context) {
	streamID := domain.StreamID(c.Query("stream_id"))
	performerID := domain.PerformerID(c.Query("performer_id"))
	if streamID == "" || performerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stream_id and performer_id are required"})
		return
	}

	var req struct {
		Action      string `json:"action" binding:"required"`
		SubStreamID string `json:"streamId" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream, err := h.streams.GetByID(c.Request.Context(), streamID)
	if err != nil {
		h.logger.Warnw("webhook for unknown stream",
			"stream_id", streamID, "action", req.Action)
		c.JSON(http.StatusNotFound, gin.H{"error": "stream not found"})
		return
	}

	switch req.Action {
	case webhookPublishStarted:
		stream.AddStreamID(req.SubStreamID)
		if err := h.streams.Update(c.Request.Context(), stream); err != nil {
			h.logger.Errorw("failed to record sub-stream", "stream_id", streamID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record sub-stream"})
			return
		}
		// The performer's own publish is what makes the session live.
		if domain.ContainsPerformer(req.SubStreamID, performerID) {
			if err := h.sessions.MarkStreaming(c.Request.Context(), streamID, true); err != nil {
				h.logger.Warnw("failed to flip streaming on publish", "stream_id", streamID, "error", err)
			}
		}

	case webhookPublishFinished:
		stream.RemoveStreamID(req.SubStreamID)
		if err := h.streams.Update(c.Request.Context(), stream); err != nil {
			h.logger.Errorw("failed to drop sub-stream", "stream_id", streamID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to drop sub-stream"})
			return
		}
		if domain.ContainsPerformer(req.SubStreamID, performerID) {
			if err := h.sessions.MarkStreaming(c.Request.Context(), streamID, false); err != nil {
				h.logger.Warnw("failed to stop streaming on publish end", "stream_id", streamID, "error", err)
			}
		}

	default:
		h.logger.Debugw("ignoring webhook action",
			"action", req.Action, "stream_id", streamID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
