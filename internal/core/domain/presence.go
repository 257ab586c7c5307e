package domain

import "time"

// Role is the participant class inside a room. It is a closed set carried as
// a structured field, never encoded into connection metadata strings.
type Role string

const (
	RoleGuest  Role = "guest"
	RoleMember Role = "member"
	RoleModel  Role = "model"
)

func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleMember, RoleModel:
		return true
	}
	return false
}

// PresenceEntry is one (room, participant) membership record. A participant
// appears at most once per room; the model role is unique per room and only
// assignable to the performer who owns the underlying Stream.
type PresenceEntry struct {
	Room        RoomID    `json:"room"`
	Participant UserID    `json:"participant"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// TimeInRoom returns how long the participant has been present, used for
// the view-time handoff to the stats collaborator on leave.
func (e *PresenceEntry) TimeInRoom(now time.Time) time.Duration {
	if now.Before(e.JoinedAt) {
		return 0
	}
	return now.Sub(e.JoinedAt)
}
