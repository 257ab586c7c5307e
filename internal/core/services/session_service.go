package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
	"stagecast/pkg/utils"

	"go.uber.org/zap"
)

type sessionService struct {
	streamRepo    ports.StreamRepository
	presence      ports.PresenceDirectory
	conversations ports.ConversationBridge
	performers    ports.PerformerProvider
	provisioner   ports.BroadcastProvisioner
	gate          *AuthorizationGate

	webhookBaseURL  string
	joinGraceWindow time.Duration

	logger *zap.SugaredLogger
}

// NewSessionService wires the session lifecycle orchestrator.
func NewSessionService(
	streamRepo ports.StreamRepository,
	presence ports.PresenceDirectory,
	conversations ports.ConversationBridge,
	performers ports.PerformerProvider,
	provisioner ports.BroadcastProvisioner,
	gate *AuthorizationGate,
	webhookBaseURL string,
	joinGraceWindow time.Duration,
	logger *zap.SugaredLogger,
) ports.SessionService {
	return &sessionService{
		streamRepo:      streamRepo,
		presence:        presence,
		conversations:   conversations,
		performers:      performers,
		provisioner:     provisioner,
		gate:            gate,
		webhookBaseURL:  webhookBaseURL,
		joinGraceWindow: joinGraceWindow,
		logger:          logger,
	}
}

func newStream(performerID domain.PerformerID, t domain.StreamType, streaming bool) *domain.Stream {
	return &domain.Stream{
		ID:          domain.StreamID(utils.GenerateStreamID()),
		PerformerID: performerID,
		Type:        t,
		SessionID:   domain.SessionID(utils.GenerateSessionID()),
		IsStreaming: streaming,
		CreatedAt:   time.Now(),
	}
}

func (s *sessionService) GetOrCreateSessionID(ctx context.Context, performerID domain.PerformerID, t domain.StreamType) (domain.SessionID, error) {
	if !t.Valid() {
		return "", domain.ErrBadRequest
	}

	stream, created, err := s.streamRepo.GetOrCreateCurrent(ctx, newStream(performerID, t, false))
	if err != nil {
		return "", fmt.Errorf("failed to get or create stream: %w", err)
	}
	if created {
		s.logger.Infow("created stream", "stream_id", stream.ID, "performer_id", performerID, "type", t)
	}
	return stream.SessionID, nil
}

func (s *sessionService) GoLive(ctx context.Context, performerID domain.PerformerID) (*ports.SessionResult, error) {
	stream, created, err := s.streamRepo.GetOrCreateCurrent(ctx, newStream(performerID, domain.StreamTypePublic, false))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create public stream: %w", err)
	}
	if created {
		s.logger.Infow("created public stream", "stream_id", stream.ID, "performer_id", performerID)
	}

	conv, err := s.ensureConversation(ctx, stream, []domain.UserID{domain.UserID(performerID)})
	if err != nil {
		return nil, err
	}

	desc := ports.SessionDescriptor{
		SessionID:      domain.NewBroadcastSessionID(domain.StreamTypePublic, stream.ID, performerID, false, time.Now()),
		StreamID:       stream.ID,
		PerformerID:    performerID,
		ConversationID: conv.ID,
		WebhookURL:     s.webhookURL(performerID, stream.ID, conv.ID),
	}
	if err := s.provisioner.Create(ctx, desc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStreamServer, err)
	}

	return &ports.SessionResult{Conversation: conv, SessionID: stream.SessionID}, nil
}

func (s *sessionService) RequestPrivateChat(ctx context.Context, user *domain.User, performerID domain.PerformerID) (*ports.SessionResult, error) {
	performer, err := s.performers.GetPerformer(ctx, performerID)
	if err != nil {
		return nil, err
	}

	blocked, err := s.gate.IsBlocked(ctx, performerID, user)
	if err != nil {
		return nil, fmt.Errorf("failed to check block list: %w", err)
	}
	if blocked {
		return nil, domain.ErrForbidden
	}
	if !HasSufficientBalance(user, performer.PrivateCallPrice) {
		return nil, domain.ErrTokenNotEnough
	}

	stream := newStream(performerID, domain.StreamTypePrivate, true)
	stream.UserIDs = []domain.UserID{user.ID}
	stream, err = s.streamRepo.ReplaceCurrent(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("failed to create private stream: %w", err)
	}

	conv, err := s.conversations.CreateConversation(ctx, stream.ID, []domain.UserID{user.ID, domain.UserID(performerID)})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	stream.ConversationID = conv.ID
	if err := s.streamRepo.Update(ctx, stream); err != nil {
		return nil, fmt.Errorf("failed to bind conversation: %w", err)
	}

	s.logger.Infow("private chat requested",
		"performer_id", performerID, "user_id", user.ID, "stream_id", stream.ID)

	return &ports.SessionResult{Conversation: conv, SessionID: stream.SessionID}, nil
}

func (s *sessionService) AcceptPrivateChat(ctx context.Context, conversationID domain.ConversationID, performerID domain.PerformerID) (*ports.SessionResult, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasRecipient(domain.UserID(performerID)) {
		return nil, domain.ErrForbidden
	}

	stream, err := s.streamRepo.GetByID(ctx, conv.StreamID)
	if err != nil {
		return nil, err
	}
	if !stream.IsStreaming {
		return nil, domain.ErrStreamOffline
	}

	return &ports.SessionResult{Conversation: conv, SessionID: stream.SessionID}, nil
}

func (s *sessionService) StartGroupChat(ctx context.Context, performerID domain.PerformerID) (*ports.SessionResult, error) {
	// ReplaceCurrent ends any previous streaming group session atomically,
	// so two racing starts can never leave two streaming rows behind.
	stream, err := s.streamRepo.ReplaceCurrent(ctx, newStream(performerID, domain.StreamTypeGroup, true))
	if err != nil {
		return nil, fmt.Errorf("failed to start group stream: %w", err)
	}

	conv, err := s.conversations.CreateConversation(ctx, stream.ID, []domain.UserID{domain.UserID(performerID)})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	stream.ConversationID = conv.ID
	if err := s.streamRepo.Update(ctx, stream); err != nil {
		return nil, fmt.Errorf("failed to bind conversation: %w", err)
	}

	s.logger.Infow("group chat started", "performer_id", performerID, "stream_id", stream.ID)

	return &ports.SessionResult{Conversation: conv, SessionID: stream.SessionID}, nil
}

func (s *sessionService) JoinGroupChat(ctx context.Context, performerID domain.PerformerID, user *domain.User) (*ports.SessionResult, error) {
	performer, err := s.performers.GetPerformer(ctx, performerID)
	if err != nil {
		return nil, err
	}

	blocked, err := s.gate.IsBlocked(ctx, performerID, user)
	if err != nil {
		return nil, fmt.Errorf("failed to check block list: %w", err)
	}
	if blocked {
		return nil, domain.ErrForbidden
	}
	if !HasSufficientBalance(user, performer.GroupCallPrice) {
		return nil, domain.ErrTokenNotEnough
	}

	stream, err := s.streamRepo.GetCurrent(ctx, performerID, domain.StreamTypeGroup)
	if err != nil {
		return nil, domain.ErrStreamOffline
	}
	if !stream.IsStreaming {
		return nil, domain.ErrStreamOffline
	}

	room := domain.RoomID(stream.ConversationID)

	members, err := s.presence.ListByRole(ctx, room, domain.RoleMember)
	if err != nil {
		return nil, fmt.Errorf("failed to list room members: %w", err)
	}
	if AtCapacity(len(members), performer) {
		return nil, domain.ErrParticipantJoinLimit
	}

	info, err := s.provisioner.Describe(ctx, string(stream.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStreamServer, err)
	}
	if info.Status != domain.BroadcastStatusBroadcasting {
		return nil, domain.ErrStreamOffline
	}
	// The media server may report BROADCASTING before the first frame has
	// actually arrived; a broadcast younger than the grace window is not yet
	// joinable.
	if time.Since(info.StartTime) < s.joinGraceWindow {
		return nil, domain.ErrStreamOffline
	}

	entry, err := s.presence.Get(ctx, room, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check presence: %w", err)
	}
	if entry != nil {
		return nil, fmt.Errorf("%w: already joined", domain.ErrBadRequest)
	}

	if err := s.conversations.AddRecipient(ctx, stream.ConversationID, user.ID); err != nil {
		return nil, fmt.Errorf("failed to add recipient: %w", err)
	}

	conv, err := s.conversations.GetConversation(ctx, stream.ConversationID)
	if err != nil {
		return nil, err
	}

	return &ports.SessionResult{Conversation: conv, SessionID: stream.SessionID}, nil
}

func (s *sessionService) JoinPublicChat(ctx context.Context, performerID domain.PerformerID, user *domain.User) (domain.SessionID, error) {
	performer, err := s.performers.GetPerformer(ctx, performerID)
	if err != nil {
		return "", err
	}

	if UnderTierThreshold(performer, user) {
		return "", domain.ErrNotEnoughTierLimit
	}

	blocked, err := s.gate.IsBlocked(ctx, performerID, user)
	if err != nil {
		return "", fmt.Errorf("failed to check block list: %w", err)
	}
	if blocked {
		return "", domain.ErrForbidden
	}

	stream, err := s.streamRepo.GetCurrent(ctx, performerID, domain.StreamTypePublic)
	if err != nil {
		return "", domain.ErrStreamOffline
	}
	if !stream.IsStreaming {
		return "", domain.ErrStreamOffline
	}

	return stream.SessionID, nil
}

func (s *sessionService) GetOneTimeToken(ctx context.Context, streamID domain.StreamID, publish bool, userID domain.UserID) (string, error) {
	stream, err := s.streamRepo.GetByID(ctx, streamID)
	if err != nil {
		return "", err
	}

	entry, err := s.presence.Get(ctx, domain.RoomID(stream.ConversationID), userID)
	if err != nil {
		return "", fmt.Errorf("failed to check presence: %w", err)
	}
	if entry == nil {
		return "", domain.ErrForbidden
	}

	var token string
	if publish {
		token, err = s.provisioner.IssuePublishToken(ctx, string(stream.ID))
	} else {
		token, err = s.provisioner.IssuePlaybackToken(ctx, string(stream.ID))
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStreamServer, err)
	}
	return token, nil
}

func (s *sessionService) GetBroadcastStatus(ctx context.Context, performerID domain.PerformerID, t domain.StreamType) (*domain.BroadcastInfo, error) {
	stream, err := s.streamRepo.GetCurrent(ctx, performerID, t)
	if err != nil {
		return nil, err
	}
	info, err := s.provisioner.Describe(ctx, string(stream.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStreamServer, err)
	}
	return info, nil
}

func (s *sessionService) GetPublicStream(ctx context.Context, performerID domain.PerformerID) (*domain.Stream, error) {
	return s.streamRepo.GetCurrent(ctx, performerID, domain.StreamTypePublic)
}

func (s *sessionService) ResolveRoom(ctx context.Context, conversationID domain.ConversationID) (*domain.Conversation, *domain.Stream, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	stream, err := s.streamRepo.GetByID(ctx, conv.StreamID)
	if err != nil {
		return nil, nil, err
	}
	return conv, stream, nil
}

func (s *sessionService) MarkStreaming(ctx context.Context, streamID domain.StreamID, streaming bool) error {
	return s.streamRepo.SetStreaming(ctx, streamID, streaming, time.Now())
}

func (s *sessionService) ensureConversation(ctx context.Context, stream *domain.Stream, recipients []domain.UserID) (*domain.Conversation, error) {
	if stream.ConversationID != "" {
		conv, err := s.conversations.GetConversation(ctx, stream.ConversationID)
		if err == nil {
			return conv, nil
		}
	}

	conv, err := s.conversations.CreateConversation(ctx, stream.ID, recipients)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	stream.ConversationID = conv.ID
	if err := s.streamRepo.Update(ctx, stream); err != nil {
		return nil, fmt.Errorf("failed to bind conversation: %w", err)
	}
	return conv, nil
}

func (s *sessionService) webhookURL(performerID domain.PerformerID, streamID domain.StreamID, conversationID domain.ConversationID) string {
	q := url.Values{}
	q.Set("performer_id", string(performerID))
	q.Set("stream_id", string(streamID))
	q.Set("conversation_id", string(conversationID))
	return fmt.Sprintf("%s/api/v1/broadcast/webhook?%s", s.webhookBaseURL, q.Encode())
}
