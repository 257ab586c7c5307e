package ports

import (
	"context"
	"time"

	"stagecast/internal/core/domain"
)

// The interfaces below are external-collaborator boundaries. The engine only
// consumes them; their persistence and schemas live elsewhere.

// BalanceProvider exposes the token-economy view of a user.
type BalanceProvider interface {
	GetUser(ctx context.Context, id domain.UserID) (*domain.User, error)
	Charge(ctx context.Context, userID domain.UserID, performerID domain.PerformerID, amount int64) error
}

// PerformerProvider resolves performer pricing and gating knobs.
type PerformerProvider interface {
	GetPerformer(ctx context.Context, id domain.PerformerID) (*domain.Performer, error)
}

// BlockListProvider answers performer-side block rules.
type BlockListProvider interface {
	IsBlocked(ctx context.Context, performerID domain.PerformerID, userID domain.UserID, ipCountry string) (bool, error)
}

// RankProvider resolves per-member ranks for roster broadcasts.
type RankProvider interface {
	RanksFor(ctx context.Context, performerID domain.PerformerID, users []domain.UserID) ([]domain.MemberRank, error)
}

// StatsCollector receives view-time deltas when a public room winds down.
// Spent-time accounting is delegated, not owned here.
type StatsCollector interface {
	RecordViewTime(ctx context.Context, performerID domain.PerformerID, viewer domain.UserID, spent time.Duration) error
}

// PurchaseVerifier confirms a prior peek-in purchase record.
type PurchaseVerifier interface {
	HasPurchased(ctx context.Context, userID domain.UserID, peekInID string) (bool, error)
}

// ConversationBridge creates and mutates the chat threads bound to streams.
type ConversationBridge interface {
	CreateConversation(ctx context.Context, streamID domain.StreamID, recipients []domain.UserID) (*domain.Conversation, error)
	GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error)
	// AddRecipient is idempotent: adding an existing recipient is a no-op.
	AddRecipient(ctx context.Context, id domain.ConversationID, user domain.UserID) error
	PostSystemLine(ctx context.Context, id domain.ConversationID, text string) error
}

// SessionDescriptor registers one broadcast attachment with the media server.
type SessionDescriptor struct {
	SessionID      domain.BroadcastSessionID `json:"session_id"`
	StreamID       domain.StreamID           `json:"stream_id"`
	PerformerID    domain.PerformerID        `json:"performer_id"`
	ConversationID domain.ConversationID     `json:"conversation_id"`
	WebhookURL     string                    `json:"webhook_url"`
}

// BroadcastProvisioner is the thin client to the external media server. All
// calls are synchronous; the media server additionally reports final stream
// metadata asynchronously through the provisioning webhook.
type BroadcastProvisioner interface {
	Create(ctx context.Context, desc SessionDescriptor) error
	Describe(ctx context.Context, streamID string) (*domain.BroadcastInfo, error)
	IssuePlaybackToken(ctx context.Context, streamID string) (string, error)
	IssuePublishToken(ctx context.Context, streamID string) (string, error)
}
