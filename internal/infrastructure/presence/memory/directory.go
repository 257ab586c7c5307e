package memory

import (
	"context"
	"sync"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
)

// Directory is the process-local presence map. Each room carries its own
// mutex so mutations within a room are linearized while distinct rooms never
// contend.
type Directory struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*room
}

type room struct {
	mu      sync.Mutex
	evicted bool
	entries map[domain.UserID]*domain.PresenceEntry
}

func NewDirectory() ports.PresenceDirectory {
	return &Directory{
		rooms: make(map[domain.RoomID]*room),
	}
}

func (d *Directory) getOrCreateRoom(id domain.RoomID) *room {
	d.mu.RLock()
	r, ok := d.rooms[id]
	d.mu.RUnlock()
	if ok {
		return r
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok = d.rooms[id]; ok {
		return r
	}
	r = &room{entries: make(map[domain.UserID]*domain.PresenceEntry)}
	d.rooms[id] = r
	return r
}

// lockLiveRoom returns the room for id with its mutex held. If the room
// object was evicted between lookup and lock, the stale pointer is dropped
// and the lookup retried, so a join can never land in a room the map no
// longer references.
func (d *Directory) lockLiveRoom(id domain.RoomID) *room {
	for {
		r := d.getOrCreateRoom(id)
		r.mu.Lock()
		if !r.evicted {
			return r
		}
		r.mu.Unlock()
	}
}

func (d *Directory) getRoom(id domain.RoomID) *room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rooms[id]
}

func (d *Directory) Join(ctx context.Context, roomID domain.RoomID, participant domain.UserID, role domain.Role) (*domain.PresenceEntry, error) {
	if !role.Valid() {
		return nil, domain.ErrBadRequest
	}

	r := d.lockLiveRoom(roomID)
	defer r.mu.Unlock()

	if existing, ok := r.entries[participant]; ok {
		if existing.Role != role {
			return nil, domain.ErrRoleConflict
		}
		// Rejoin: keep the original JoinedAt so time-in-room survives
		// reconnects.
		copied := *existing
		return &copied, nil
	}

	if role == domain.RoleModel {
		for _, e := range r.entries {
			if e.Role == domain.RoleModel {
				return nil, domain.ErrRoleConflict
			}
		}
	}

	entry := &domain.PresenceEntry{
		Room:        roomID,
		Participant: participant,
		Role:        role,
		JoinedAt:    time.Now(),
	}
	r.entries[participant] = entry

	copied := *entry
	return &copied, nil
}

func (d *Directory) Leave(ctx context.Context, roomID domain.RoomID, participant domain.UserID) (*domain.PresenceEntry, error) {
	r := d.getRoom(roomID)
	if r == nil {
		return nil, nil
	}

	r.mu.Lock()
	entry, ok := r.entries[participant]
	if ok {
		delete(r.entries, participant)
	}
	empty := len(r.entries) == 0
	r.mu.Unlock()

	if empty {
		d.mu.Lock()
		// Re-check under the outer lock: a concurrent join may have revived
		// the room, or replaced the object in the map with a fresh one.
		r.mu.Lock()
		if d.rooms[roomID] == r && len(r.entries) == 0 {
			r.evicted = true
			delete(d.rooms, roomID)
		}
		r.mu.Unlock()
		d.mu.Unlock()
	}

	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (d *Directory) Get(ctx context.Context, roomID domain.RoomID, participant domain.UserID) (*domain.PresenceEntry, error) {
	r := d.getRoom(roomID)
	if r == nil {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[participant]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (d *Directory) List(ctx context.Context, roomID domain.RoomID) ([]*domain.PresenceEntry, error) {
	r := d.getRoom(roomID)
	if r == nil {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]*domain.PresenceEntry, 0, len(r.entries))
	for _, e := range r.entries {
		copied := *e
		entries = append(entries, &copied)
	}
	return entries, nil
}

func (d *Directory) ListByRole(ctx context.Context, roomID domain.RoomID, role domain.Role) ([]domain.UserID, error) {
	r := d.getRoom(roomID)
	if r == nil {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []domain.UserID
	for _, e := range r.entries {
		if e.Role == role {
			ids = append(ids, e.Participant)
		}
	}
	return ids, nil
}

func (d *Directory) Count(ctx context.Context, roomID domain.RoomID) (int, error) {
	r := d.getRoom(roomID)
	if r == nil {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries), nil
}
