package domain

import "time"

// User is the caller-side projection needed for authorization gating.
// Profile persistence lives in an external collaborator; only the fields
// the gates consult are carried here.
type User struct {
	ID           UserID    `json:"id"`
	Username     string    `json:"username"`
	Balance      int64     `json:"balance"`
	LifetimeSpend int64    `json:"lifetime_spend"`
	IPCountry    string    `json:"ip_country,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Performer carries the broadcaster-side pricing and gating knobs.
type Performer struct {
	ID                     PerformerID `json:"id"`
	Username               string      `json:"username"`
	PrivateCallPrice       int64       `json:"private_call_price"`
	GroupCallPrice         int64       `json:"group_call_price"`
	MaxParticipantsAllowed int         `json:"max_participants_allowed"`
	BadgingTierToken       int64       `json:"badging_tier_token"`
	EnablePeekIn           bool        `json:"enable_peek_in"`
	PeekInPrice            int64       `json:"peek_in_price"`
}
