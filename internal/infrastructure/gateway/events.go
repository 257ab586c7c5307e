package gateway

import (
	"encoding/json"

	"stagecast/internal/core/domain"
)

// Client-to-server events.
const (
	EventJoinRoom  = "JOIN_ROOM"
	EventRejoin    = "REJOIN_ROOM"
	EventLeaveRoom = "LEAVE_ROOM"
	EventPeekIn    = "PEEK_IN"

	EventPublicJoin   = "public-stream/join"
	EventPublicRejoin = "public-stream/rejoin"
	EventPublicLeave  = "public-stream/leave"
	EventPublicLive   = "public-stream/live"
)

// Server-to-client events.
const (
	EventJoinedTheRoom     = "JOINED_THE_ROOM"
	EventModelJoinRoom     = "MODEL_JOIN_ROOM"
	EventModelLeftRoom     = "MODEL_LEFT_ROOM"
	EventPublicRoomChanged = "public-room-changed"
	EventJoinBroadcaster   = "join-broadcaster"
	EventModelLeft         = "model-left"
	EventPeekInStream      = "peek-in-stream"
)

// Envelope is the wire frame for every gateway message in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RoomPayload addresses an event to a room by its conversation id.
type RoomPayload struct {
	ConversationID domain.ConversationID `json:"conversationId"`
}

// PeekInPayload consumes a purchased peek-in grant.
type PeekInPayload struct {
	ID string `json:"id"`
}

// JoinedPayload is sent to the joining connection only. BroadcastSessionID is
// the media-server attachment id the client plays or publishes under.
type JoinedPayload struct {
	StreamID           domain.StreamID           `json:"streamId"`
	StreamList         []string                  `json:"streamList"`
	ConversationID     domain.ConversationID     `json:"conversationId"`
	BroadcastSessionID domain.BroadcastSessionID `json:"broadcastSessionId"`
	Total              int                       `json:"total"`
	Members            []domain.MemberRank       `json:"members"`
}

// RoomChangedPayload announces a roster change to a public room.
type RoomChangedPayload struct {
	ConversationID domain.ConversationID `json:"conversationId"`
	Total          int                   `json:"total"`
	Members        []domain.MemberRank   `json:"members"`
}

// PerformerPayload carries broadcaster lifecycle announcements.
type PerformerPayload struct {
	PerformerID domain.PerformerID `json:"performerId"`
}

// PeekInStreamPayload returns the performer's sub-stream id for spectating.
type PeekInStreamPayload struct {
	StreamID string `json:"streamId"`
}

func mustEnvelope(event string, payload interface{}) []byte {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	data, _ := json.Marshal(Envelope{Event: event, Payload: raw})
	return data
}
