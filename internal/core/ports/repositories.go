package ports

import (
	"context"
	"time"

	"stagecast/internal/core/domain"
)

// StreamRepository persists Stream rows. The current stream for a
// (performer, type) pair is tracked with a uniqueness constraint so that
// concurrent creators converge on a single row.
type StreamRepository interface {
	GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error)
	GetCurrent(ctx context.Context, performerID domain.PerformerID, t domain.StreamType) (*domain.Stream, error)

	// GetOrCreateCurrent atomically installs candidate as the current stream
	// for its (performer, type) pair if none exists, otherwise returns the
	// existing one. The bool reports whether candidate was installed.
	GetOrCreateCurrent(ctx context.Context, candidate *domain.Stream) (*domain.Stream, bool, error)

	// ReplaceCurrent atomically ends the previous current stream for the
	// candidate's (performer, type) pair (clearing its streaming flag and
	// stamping LastStreamingTime) and installs candidate in its place.
	ReplaceCurrent(ctx context.Context, candidate *domain.Stream) (*domain.Stream, error)

	Update(ctx context.Context, stream *domain.Stream) error

	// SetStreaming flips the streaming flag as a single conditional update.
	// Stopping stamps LastStreamingTime with at.
	SetStreaming(ctx context.Context, id domain.StreamID, streaming bool, at time.Time) error
}

// PresenceDirectory is the authoritative room membership map. All mutating
// operations on the same room appear atomic to concurrent callers.
type PresenceDirectory interface {
	// Join inserts a presence entry, or refreshes an existing one with the
	// same role (rejoin). Joining with a different role than the existing
	// entry, or as a second model in the room, fails with ErrRoleConflict.
	Join(ctx context.Context, room domain.RoomID, participant domain.UserID, role domain.Role) (*domain.PresenceEntry, error)

	// Leave removes a participant. Returns the removed entry, or nil if the
	// participant was not present; never an error for a missing entry.
	Leave(ctx context.Context, room domain.RoomID, participant domain.UserID) (*domain.PresenceEntry, error)

	// Get returns the entry for (room, participant), or nil if absent.
	Get(ctx context.Context, room domain.RoomID, participant domain.UserID) (*domain.PresenceEntry, error)

	List(ctx context.Context, room domain.RoomID) ([]*domain.PresenceEntry, error)
	ListByRole(ctx context.Context, room domain.RoomID, role domain.Role) ([]domain.UserID, error)
	Count(ctx context.Context, room domain.RoomID) (int, error)
}

// PeekInRepository stores peek-in grants until their one-shot consumption.
type PeekInRepository interface {
	Create(ctx context.Context, req *domain.PeekInRequest) error
	GetByID(ctx context.Context, id string) (*domain.PeekInRequest, error)
	Delete(ctx context.Context, id string) error
}
