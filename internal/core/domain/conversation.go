package domain

import "time"

// Conversation binds a Stream to a chat thread and its recipient list.
// The schema is owned by an external collaborator; this is the projection
// the orchestrator and gateway work against.
type Conversation struct {
	ID         ConversationID `json:"id"`
	StreamID   StreamID       `json:"stream_id"`
	Recipients []UserID       `json:"recipients"`
	CreatedAt  time.Time      `json:"created_at"`
}

// HasRecipient reports whether the user is on the recipient list.
func (c *Conversation) HasRecipient(id UserID) bool {
	for _, r := range c.Recipients {
		if r == id {
			return true
		}
	}
	return false
}

// MemberRank is a viewer's rank as resolved by the external rank collaborator,
// attached to roster broadcasts.
type MemberRank struct {
	UserID   UserID `json:"user_id"`
	Username string `json:"username"`
	Rank     int    `json:"rank"`
}
