package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
	"stagecast/pkg/retry"

	"go.uber.org/zap"
)

// Client talks to the external media server's management API. It only
// registers broadcasts and mints tokens; media itself never flows through
// this process.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryCfg   retry.Config
	observe    func(operation string, duration time.Duration)
	logger     *zap.SugaredLogger
}

var _ ports.BroadcastProvisioner = (*Client)(nil)

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	retryCfg := retry.DefaultConfig()
	retryCfg.NonRetryableErrors = []error{domain.ErrStreamNotFound, domain.ErrBadRequest}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryCfg: retryCfg,
		logger:   logger,
	}
}

// OnCall registers an observer invoked with the total duration of every
// management call, retries included.
func (c *Client) OnCall(fn func(operation string, duration time.Duration)) {
	c.observe = fn
}

func (c *Client) timed(operation string) func() {
	if c.observe == nil {
		return func() {}
	}
	start := time.Now()
	return func() { c.observe(operation, time.Since(start)) }
}

type createBroadcastRequest struct {
	SessionID      string `json:"sessionId"`
	StreamID       string `json:"streamId"`
	PerformerID    string `json:"performerId"`
	ConversationID string `json:"conversationId"`
	ListenerHook   string `json:"listenerHookURL"`
}

type broadcastResponse struct {
	StreamID  string `json:"streamId"`
	Status    string `json:"status"`
	StartTime int64  `json:"startTime"`
}

type tokenResponse struct {
	TokenID string `json:"tokenId"`
}

// Create registers a broadcast so the media server starts accepting the
// publisher and firing webhook callbacks for it.
func (c *Client) Create(ctx context.Context, desc ports.SessionDescriptor) error {
	defer c.timed("create")()

	body := createBroadcastRequest{
		SessionID:      string(desc.SessionID),
		StreamID:       string(desc.StreamID),
		PerformerID:    string(desc.PerformerID),
		ConversationID: string(desc.ConversationID),
		ListenerHook:   desc.WebhookURL,
	}

	err := retry.Do(ctx, c.retryCfg, func() error {
		return c.post(ctx, "/rest/v2/broadcasts/create", body, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to create broadcast: %w", err)
	}

	c.logger.Infow("broadcast registered",
		"stream_id", desc.StreamID,
		"session_id", desc.SessionID,
	)
	return nil
}

// Describe fetches the media server's live view of a broadcast.
func (c *Client) Describe(ctx context.Context, streamID string) (*domain.BroadcastInfo, error) {
	defer c.timed("describe")()

	path := "/rest/v2/broadcasts/" + url.PathEscape(streamID)

	resp, err := retry.DoWithResult(ctx, c.retryCfg, func() (*broadcastResponse, error) {
		var out broadcastResponse
		if err := c.get(ctx, path, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe broadcast %s: %w", streamID, err)
	}

	return &domain.BroadcastInfo{
		StreamID:  resp.StreamID,
		Status:    domain.BroadcastStatus(resp.Status),
		StartTime: time.UnixMilli(resp.StartTime),
	}, nil
}

// IssuePlaybackToken mints a one-time play token bound to the given stream.
func (c *Client) IssuePlaybackToken(ctx context.Context, streamID string) (string, error) {
	return c.issueToken(ctx, streamID, "play")
}

// IssuePublishToken mints a one-time publish token bound to the given stream.
func (c *Client) IssuePublishToken(ctx context.Context, streamID string) (string, error) {
	return c.issueToken(ctx, streamID, "publish")
}

func (c *Client) issueToken(ctx context.Context, streamID, tokenType string) (string, error) {
	defer c.timed("token")()

	path := fmt.Sprintf("/rest/v2/broadcasts/%s/token?type=%s", url.PathEscape(streamID), tokenType)

	resp, err := retry.DoWithResult(ctx, c.retryCfg, func() (*tokenResponse, error) {
		var out tokenResponse
		if err := c.get(ctx, path, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to issue %s token for %s: %w", tokenType, streamID, err)
	}
	if resp.TokenID == "" {
		return "", fmt.Errorf("media server returned empty %s token for %s", tokenType, streamID)
	}
	return resp.TokenID, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("media server request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read media server response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrStreamNotFound, req.URL.Path)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: media server rejected %s: %s", domain.ErrBadRequest, req.URL.Path, string(payload))
	case resp.StatusCode >= 500:
		return fmt.Errorf("media server error %d on %s", resp.StatusCode, req.URL.Path)
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("failed to decode media server response: %w", err)
		}
	}
	return nil
}
