package domain

import (
	"time"
)

type StreamID string
type PerformerID string
type UserID string
type ConversationID string
type SessionID string
type RoomID string

// StreamType selects the business rules that gate a broadcast.
type StreamType string

const (
	StreamTypePublic  StreamType = "public"
	StreamTypePrivate StreamType = "private"
	StreamTypeGroup   StreamType = "group"
)

func (t StreamType) Valid() bool {
	switch t {
	case StreamTypePublic, StreamTypePrivate, StreamTypeGroup:
		return true
	}
	return false
}

// Stream is one broadcast context for a performer. At most one Stream per
// (performer, type) may have IsStreaming=true at a time; starting a new group
// session forcibly ends the previous one. Streams are never hard-deleted,
// only marked not-streaming.
type Stream struct {
	ID                StreamID       `json:"id"`
	PerformerID       PerformerID    `json:"performer_id"`
	Type              StreamType     `json:"type"`
	SessionID         SessionID      `json:"session_id"`
	ConversationID    ConversationID `json:"conversation_id,omitempty"`
	IsStreaming       bool           `json:"is_streaming"`
	LastStreamingTime time.Time      `json:"last_streaming_time,omitempty"`
	StreamIDs         []string       `json:"stream_ids,omitempty"`
	UserIDs           []UserID       `json:"user_ids,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// HasUser reports whether the user was invited/admitted to this stream.
func (s *Stream) HasUser(id UserID) bool {
	for _, u := range s.UserIDs {
		if u == id {
			return true
		}
	}
	return false
}

// AddStreamID records a sub-stream identifier, preserving order and uniqueness.
func (s *Stream) AddStreamID(id string) {
	for _, existing := range s.StreamIDs {
		if existing == id {
			return
		}
	}
	s.StreamIDs = append(s.StreamIDs, id)
}

// RemoveStreamID drops a sub-stream identifier if present.
func (s *Stream) RemoveStreamID(id string) {
	for i, existing := range s.StreamIDs {
		if existing == id {
			s.StreamIDs = append(s.StreamIDs[:i], s.StreamIDs[i+1:]...)
			return
		}
	}
}

// BroadcastStatus is the media server's view of a registered broadcast.
type BroadcastStatus string

const (
	BroadcastStatusCreated      BroadcastStatus = "created"
	BroadcastStatusBroadcasting BroadcastStatus = "broadcasting"
	BroadcastStatusFinished     BroadcastStatus = "finished"
)

// BroadcastInfo is the result of a Describe call against the media server.
type BroadcastInfo struct {
	StreamID  string          `json:"stream_id"`
	Status    BroadcastStatus `json:"status"`
	StartTime time.Time       `json:"start_time"`
}
