package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
	"stagecast/internal/core/services"
	presencememory "stagecast/internal/infrastructure/presence/memory"
	"stagecast/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type noopProvisioner struct{}

func (noopProvisioner) Create(ctx context.Context, desc ports.SessionDescriptor) error { return nil }
func (noopProvisioner) Describe(ctx context.Context, streamID string) (*domain.BroadcastInfo, error) {
	return &domain.BroadcastInfo{StreamID: streamID, Status: domain.BroadcastStatusBroadcasting}, nil
}
func (noopProvisioner) IssuePlaybackToken(ctx context.Context, streamID string) (string, error) {
	return "play", nil
}
func (noopProvisioner) IssuePublishToken(ctx context.Context, streamID string) (string, error) {
	return "publish", nil
}

func newWebhookRouter(t *testing.T) (*gin.Engine, ports.StreamRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop().Sugar()
	streams := memory.NewMemoryStreamRepository()
	sessions := services.NewSessionService(
		streams,
		presencememory.NewDirectory(),
		memory.NewMemoryConversationBridge(),
		memory.NewMemoryPerformerProvider(),
		noopProvisioner{},
		services.NewAuthorizationGate(memory.NewMemoryBlockListProvider()),
		"http://localhost:8080",
		0,
		log,
	)

	router := gin.New()
	NewWebhookHandler(streams, sessions, log).SetupRoutes(router)
	return router, streams
}

func seedStream(t *testing.T, streams ports.StreamRepository, id string, streaming bool) {
	t.Helper()
	_, err := streams.ReplaceCurrent(context.Background(), &domain.Stream{
		ID:          domain.StreamID(id),
		PerformerID: "alice",
		Type:        domain.StreamTypeGroup,
		SessionID:   "sess-1",
		IsStreaming: streaming,
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)
}

func postWebhook(t *testing.T, router *gin.Engine, query url.Values, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/broadcast/webhook?"+query.Encode(), bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhook_MissingQueryParams(t *testing.T) {
	router, _ := newWebhookRouter(t)

	w := postWebhook(t, router, url.Values{}, map[string]string{
		"action":   "publishStarted",
		"streamId": "group-s1-alice-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_UnknownStream(t *testing.T) {
	router, _ := newWebhookRouter(t)

	q := url.Values{"stream_id": {"ghost"}, "performer_id": {"alice"}}
	w := postWebhook(t, router, q, map[string]string{
		"action":   "publishStarted",
		"streamId": "group-ghost-alice-1",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhook_PublishStartedByPerformerGoesLive(t *testing.T) {
	router, streams := newWebhookRouter(t)
	seedStream(t, streams, "s1", false)

	q := url.Values{"stream_id": {"s1"}, "performer_id": {"alice"}}
	w := postWebhook(t, router, q, map[string]string{
		"action":   "publishStarted",
		"streamId": "group-s1-alice-1712",
	})
	require.Equal(t, http.StatusOK, w.Code)

	stream, err := streams.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, stream.IsStreaming)
	assert.Contains(t, stream.StreamIDs, "group-s1-alice-1712")
}

func TestWebhook_ViewerPublishDoesNotGoLive(t *testing.T) {
	router, streams := newWebhookRouter(t)
	seedStream(t, streams, "s1", false)

	q := url.Values{"stream_id": {"s1"}, "performer_id": {"alice"}}
	w := postWebhook(t, router, q, map[string]string{
		"action":   "publishStarted",
		"streamId": "group-s1-bob-1712",
	})
	require.Equal(t, http.StatusOK, w.Code)

	stream, err := streams.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, stream.IsStreaming, "a viewer's cam feed must not mark the session live")
	assert.Contains(t, stream.StreamIDs, "group-s1-bob-1712")
}

func TestWebhook_PublishFinishedByPerformerEndsSession(t *testing.T) {
	router, streams := newWebhookRouter(t)
	seedStream(t, streams, "s1", true)

	q := url.Values{"stream_id": {"s1"}, "performer_id": {"alice"}}
	start := postWebhook(t, router, q, map[string]string{
		"action":   "publishStarted",
		"streamId": "group-s1-alice-1712",
	})
	require.Equal(t, http.StatusOK, start.Code)

	w := postWebhook(t, router, q, map[string]string{
		"action":   "publishFinished",
		"streamId": "group-s1-alice-1712",
	})
	require.Equal(t, http.StatusOK, w.Code)

	stream, err := streams.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, stream.IsStreaming)
	assert.NotContains(t, stream.StreamIDs, "group-s1-alice-1712")
	assert.False(t, stream.LastStreamingTime.IsZero())
}

func TestWebhook_UnknownActionIgnored(t *testing.T) {
	router, streams := newWebhookRouter(t)
	seedStream(t, streams, "s1", true)

	q := url.Values{"stream_id": {"s1"}, "performer_id": {"alice"}}
	w := postWebhook(t, router, q, map[string]string{
		"action":   "vodReady",
		"streamId": "group-s1-alice-1712",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	stream, err := streams.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, stream.IsStreaming)
	assert.Empty(t, stream.StreamIDs)
}

func TestWebhook_MalformedBody(t *testing.T) {
	router, streams := newWebhookRouter(t)
	seedStream(t, streams, "s1", false)

	q := url.Values{"stream_id": {"s1"}, "performer_id": {"alice"}}
	w := postWebhook(t, router, q, map[string]string{"action": "publishStarted"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
