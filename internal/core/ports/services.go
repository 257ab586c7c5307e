package ports

import (
	"context"

	"stagecast/internal/core/domain"
)

// SessionResult is the common response of session lifecycle operations.
type SessionResult struct {
	Conversation *domain.Conversation `json:"conversation,omitempty"`
	SessionID    domain.SessionID     `json:"session_id"`
}

// SessionService owns the Stream entity and its state transitions.
type SessionService interface {
	GetOrCreateSessionID(ctx context.Context, performerID domain.PerformerID, t domain.StreamType) (domain.SessionID, error)
	GoLive(ctx context.Context, performerID domain.PerformerID) (*SessionResult, error)
	RequestPrivateChat(ctx context.Context, user *domain.User, performerID domain.PerformerID) (*SessionResult, error)
	AcceptPrivateChat(ctx context.Context, conversationID domain.ConversationID, performerID domain.PerformerID) (*SessionResult, error)
	StartGroupChat(ctx context.Context, performerID domain.PerformerID) (*SessionResult, error)
	JoinGroupChat(ctx context.Context, performerID domain.PerformerID, user *domain.User) (*SessionResult, error)
	// JoinPublicChat accepts a nil user for anonymous callers.
	JoinPublicChat(ctx context.Context, performerID domain.PerformerID, user *domain.User) (domain.SessionID, error)
	// GetOneTimeToken issues a short-lived playback (or publish) token for a
	// caller currently present in the stream's room.
	GetOneTimeToken(ctx context.Context, streamID domain.StreamID, publish bool, userID domain.UserID) (string, error)
	GetBroadcastStatus(ctx context.Context, performerID domain.PerformerID, t domain.StreamType) (*domain.BroadcastInfo, error)
	GetPublicStream(ctx context.Context, performerID domain.PerformerID) (*domain.Stream, error)
	// ResolveRoom maps a conversation id to its conversation and bound Stream.
	ResolveRoom(ctx context.Context, conversationID domain.ConversationID) (*domain.Conversation, *domain.Stream, error)
	// MarkStreaming flips a stream's streaming flag, stamping
	// LastStreamingTime when stopping.
	MarkStreaming(ctx context.Context, streamID domain.StreamID, streaming bool) error
}

// PeekInService manages paid spectating grants into private sessions.
type PeekInService interface {
	CreateRequest(ctx context.Context, performerID domain.PerformerID, userID domain.UserID) (*domain.PeekInRequest, error)
	// StreamToSpy consumes a purchased grant and returns the performer's
	// sub-stream id. One-shot: the grant is deleted on success.
	StreamToSpy(ctx context.Context, requestID string, userID domain.UserID) (string, error)
}
