package domain

import "time"

// PeekInRequest is a paid, time-limited grant to spectate a performer's
// private feed without joining the paying room. Created only while the
// performer has peek-in enabled and an active private Stream; consumed by
// a one-shot lookup gated by a purchase record.
type PeekInRequest struct {
	ID               string      `json:"id"`
	PerformerID      PerformerID `json:"performer_id"`
	UserID           UserID      `json:"user_id"`
	StreamID         StreamID    `json:"stream_id"`
	StreamType       StreamType  `json:"stream_type"`
	PriceToken       int64       `json:"price_token"`
	TimeLimitSeconds int         `json:"time_limit_seconds"`
	CreatedAt        time.Time   `json:"created_at"`
}
