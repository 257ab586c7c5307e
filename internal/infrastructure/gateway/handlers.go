package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stagecast/internal/core/domain"
)

// handleJoin runs the paid-room join flow. rejoin tolerates an existing
// presence entry and skips the duplicate "joined" chat line.
func (s *Server) handleJoin(ctx context.Context, c *client, conversationID domain.ConversationID, rejoin bool) error {
	conv, stream, err := s.sessions.ResolveRoom(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasRecipient(c.user) {
		return fmt.Errorf("%w: not a recipient of %s", domain.ErrForbidden, conversationID)
	}

	room := domain.RoomID(conversationID)
	isModel := c.user == domain.UserID(stream.PerformerID)
	role := domain.RoleMember
	if isModel {
		role = domain.RoleModel
	}

	existing, err := s.presence.Get(ctx, room, c.user)
	if err != nil {
		return fmt.Errorf("failed to check presence: %w", err)
	}
	if existing != nil && !rejoin {
		return fmt.Errorf("%w: already present in %s", domain.ErrBadRequest, room)
	}

	if _, err := s.presence.Join(ctx, room, c.user, role); err != nil {
		return err
	}
	s.hub.Add(room, c)
	s.metrics.RecordJoin(room, role, s.hub.LocalCount(room))

	s.logger.Infow("room joined",
		"room", room, "user_id", c.user, "role", role, "rejoin", rejoin)

	if isModel {
		if err := s.sessions.MarkStreaming(ctx, stream.ID, true); err != nil {
			s.logger.Warnw("failed to flip streaming on model join",
				"stream_id", stream.ID, "error", err)
		}
		s.hub.Broadcast(ctx, room, EventModelJoinRoom, RoomPayload{ConversationID: conversationID}, c.id)
	} else {
		s.startBilling(ctx, room, stream, c.user)
	}

	// The second delivery path used by rejoin must not repeat the chat line.
	if existing == nil {
		line := fmt.Sprintf("%s joined", c.username)
		if err := s.postSystemLine(ctx, conversationID, line); err != nil {
			s.logger.Warnw("failed to post joined line", "room", room, "error", err)
		}
	}

	joined, err := s.joinedPayload(ctx, room, stream, !isModel)
	if err != nil {
		return err
	}
	return s.hub.SendTo(c, EventJoinedTheRoom, joined)
}

// handleLeave deregisters presence and, for the model, winds the session down.
func (s *Server) handleLeave(ctx context.Context, c *client, conversationID domain.ConversationID) error {
	room := domain.RoomID(conversationID)

	removed, err := s.presence.Leave(ctx, room, c.user)
	if err != nil {
		return err
	}
	s.hub.Remove(room, c)
	if removed == nil {
		return nil
	}
	s.metrics.RecordLeave(room, removed.Role, s.hub.LocalCount(room))

	line := fmt.Sprintf("%s left", c.username)
	if err := s.postSystemLine(ctx, conversationID, line); err != nil {
		s.logger.Warnw("failed to post left line", "room", room, "error", err)
	}

	if removed.Role == domain.RoleModel {
		if err := s.stopModelStream(ctx, conversationID); err != nil {
			s.logger.Warnw("failed to stop stream on model leave", "room", room, "error", err)
		}
		if s.billing != nil {
			s.billing.StopRoom(room)
		}
		s.hub.Broadcast(ctx, room, EventModelLeftRoom, RoomPayload{ConversationID: conversationID}, c.id)
	} else if s.billing != nil {
		s.billing.Stop(room, c.user)
	}

	s.logger.Infow("room left", "room", room, "user_id", c.user, "role", removed.Role)
	return nil
}

func (s *Server) handlePeekIn(ctx context.Context, c *client, msg Envelope) error {
	var payload PeekInPayload
	if err := unmarshalPayload(msg, &payload); err != nil {
		return err
	}
	if payload.ID == "" {
		return fmt.Errorf("peek-in id is required")
	}

	subStreamID, err := s.peekins.StreamToSpy(ctx, payload.ID, c.user)
	if err != nil {
		return err
	}
	return s.hub.SendTo(c, EventPeekInStream, PeekInStreamPayload{StreamID: subStreamID})
}

// handlePublicJoin mirrors handleJoin for the free public room and announces
// the roster change to everyone instead of a chat line.
func (s *Server) handlePublicJoin(ctx context.Context, c *client, conversationID domain.ConversationID, rejoin bool) error {
	_, stream, err := s.sessions.ResolveRoom(ctx, conversationID)
	if err != nil {
		return err
	}
	if stream.Type != domain.StreamTypePublic {
		return fmt.Errorf("%w: %s is not a public room", domain.ErrBadRequest, conversationID)
	}

	room := domain.RoomID(conversationID)
	isModel := c.user == domain.UserID(stream.PerformerID)
	role := domain.RoleMember
	if isModel {
		role = domain.RoleModel
	}

	existing, err := s.presence.Get(ctx, room, c.user)
	if err != nil {
		return fmt.Errorf("failed to check presence: %w", err)
	}
	if existing != nil && !rejoin {
		return fmt.Errorf("%w: already present in %s", domain.ErrBadRequest, room)
	}

	if _, err := s.presence.Join(ctx, room, c.user, role); err != nil {
		return err
	}
	s.hub.Add(room, c)
	s.metrics.RecordJoin(room, role, s.hub.LocalCount(room))

	if isModel {
		s.hub.Broadcast(ctx, room, EventModelJoinRoom, RoomPayload{ConversationID: conversationID}, c.id)
	}

	if existing == nil {
		if err := s.broadcastPublicRoster(ctx, room, stream, conversationID); err != nil {
			s.logger.Warnw("failed to broadcast roster", "room", room, "error", err)
		}
	}

	joined, err := s.joinedPayload(ctx, room, stream, !isModel)
	if err != nil {
		return err
	}
	return s.hub.SendTo(c, EventJoinedTheRoom, joined)
}

// handlePublicLeave removes a public-room participant. A leaving model ends
// the broadcast and hands the accumulated view time of every remaining
// member to the stats collaborator.
func (s *Server) handlePublicLeave(ctx context.Context, c *client, conversationID domain.ConversationID) error {
	_, stream, err := s.sessions.ResolveRoom(ctx, conversationID)
	if err != nil {
		return err
	}

	room := domain.RoomID(conversationID)
	now := time.Now()

	removed, err := s.presence.Leave(ctx, room, c.user)
	if err != nil {
		return err
	}
	s.hub.Remove(room, c)
	if removed == nil {
		return nil
	}
	s.metrics.RecordLeave(room, removed.Role, s.hub.LocalCount(room))

	if removed.Role == domain.RoleModel {
		entries, err := s.presence.List(ctx, room)
		if err != nil {
			s.logger.Warnw("failed to list room for view-time handoff", "room", room, "error", err)
			entries = nil
		}
		for _, entry := range entries {
			if entry.Role == domain.RoleModel {
				continue
			}
			if err := s.stats.RecordViewTime(ctx, stream.PerformerID, entry.Participant, entry.TimeInRoom(now)); err != nil {
				s.logger.Warnw("view-time handoff failed",
					"room", room, "viewer", entry.Participant, "error", err)
			}
		}

		if err := s.sessions.MarkStreaming(ctx, stream.ID, false); err != nil {
			s.logger.Warnw("failed to stop public stream", "stream_id", stream.ID, "error", err)
		}
		s.hub.Broadcast(ctx, room, EventModelLeft, PerformerPayload{PerformerID: stream.PerformerID}, c.id)
	} else {
		if err := s.stats.RecordViewTime(ctx, stream.PerformerID, removed.Participant, removed.TimeInRoom(now)); err != nil {
			s.logger.Warnw("view-time handoff failed",
				"room", room, "viewer", removed.Participant, "error", err)
		}
	}

	return s.broadcastPublicRoster(ctx, room, stream, conversationID)
}

// handlePublicLive flips the public stream live and tells every member to
// start subscribing. Only the room's performer may fire it.
func (s *Server) handlePublicLive(ctx context.Context, c *client, conversationID domain.ConversationID) error {
	_, stream, err := s.sessions.ResolveRoom(ctx, conversationID)
	if err != nil {
		return err
	}
	if c.user != domain.UserID(stream.PerformerID) {
		return fmt.Errorf("%w: only the broadcaster may go live", domain.ErrForbidden)
	}

	if err := s.sessions.MarkStreaming(ctx, stream.ID, true); err != nil {
		return err
	}

	room := domain.RoomID(conversationID)
	s.hub.Broadcast(ctx, room, EventJoinBroadcaster, PerformerPayload{PerformerID: stream.PerformerID}, "")
	s.logger.Infow("public stream live", "room", room, "stream_id", stream.ID)
	return nil
}

// joinedPayload assembles the roster answer delivered to the joining
// connection only.
func (s *Server) joinedPayload(ctx context.Context, room domain.RoomID, stream *domain.Stream, viewer bool) (*JoinedPayload, error) {
	members, err := s.presence.ListByRole(ctx, room, domain.RoleMember)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	total, err := s.presence.Count(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("failed to count room: %w", err)
	}

	ranked, err := s.ranks.RanksFor(ctx, stream.PerformerID, members)
	if err != nil {
		s.logger.Warnw("rank resolution failed", "room", room, "error", err)
		ranked = make([]domain.MemberRank, 0, len(members))
		for _, m := range members {
			ranked = append(ranked, domain.MemberRank{UserID: m})
		}
	}

	return &JoinedPayload{
		StreamID:           stream.ID,
		StreamList:         stream.StreamIDs,
		ConversationID:     stream.ConversationID,
		BroadcastSessionID: domain.NewBroadcastSessionID(stream.Type, stream.ID, stream.PerformerID, viewer, time.Now()),
		Total:              total,
		Members:            ranked,
	}, nil
}

func (s *Server) broadcastPublicRoster(ctx context.Context, room domain.RoomID, stream *domain.Stream, conversationID domain.ConversationID) error {
	members, err := s.presence.ListByRole(ctx, room, domain.RoleMember)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}
	total, err := s.presence.Count(ctx, room)
	if err != nil {
		return fmt.Errorf("failed to count room: %w", err)
	}

	ranked, err := s.ranks.RanksFor(ctx, stream.PerformerID, members)
	if err != nil {
		s.logger.Warnw("rank resolution failed", "room", room, "error", err)
		ranked = make([]domain.MemberRank, 0, len(members))
		for _, m := range members {
			ranked = append(ranked, domain.MemberRank{UserID: m})
		}
	}

	s.hub.Broadcast(ctx, room, EventPublicRoomChanged, RoomChangedPayload{
		ConversationID: conversationID,
		Total:          total,
		Members:        ranked,
	}, "")
	return nil
}

// startBilling spins up the per-interval charge meter for a paying member.
// Public rooms are free; group and private sessions bill by room price. The
// meter only runs against a live stream, so a member sitting in a room whose
// model never went live (or already left) is not charged.
func (s *Server) startBilling(ctx context.Context, room domain.RoomID, stream *domain.Stream, payer domain.UserID) {
	if s.billing == nil || stream.Type == domain.StreamTypePublic || !stream.IsStreaming {
		return
	}

	performer, err := s.performers.GetPerformer(ctx, stream.PerformerID)
	if err != nil {
		s.logger.Warnw("failed to resolve performer for billing",
			"room", room, "performer_id", stream.PerformerID, "error", err)
		return
	}

	price := performer.GroupCallPrice
	if stream.Type == domain.StreamTypePrivate {
		price = performer.PrivateCallPrice
	}
	if price <= 0 {
		return
	}
	s.billing.Start(room, payer, stream.PerformerID, price)
}

func (s *Server) postSystemLine(ctx context.Context, conversationID domain.ConversationID, text string) error {
	return s.conversations.PostSystemLine(ctx, conversationID, text)
}

func unmarshalPayload(msg Envelope, out interface{}) error {
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Event, err)
	}
	return nil
}

// stopModelStream resets streaming state after the performer leaves a paid
// room, stamping the last-streaming time.
func (s *Server) stopModelStream(ctx context.Context, conversationID domain.ConversationID) error {
	_, stream, err := s.sessions.ResolveRoom(ctx, conversationID)
	if err != nil {
		return err
	}
	if !stream.IsStreaming {
		return nil
	}
	return s.sessions.MarkStreaming(ctx, stream.ID, false)
}
