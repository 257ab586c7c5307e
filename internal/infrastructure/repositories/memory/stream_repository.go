package memory

import (
	"context"
	"sync"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
)

type currentKey struct {
	performer domain.PerformerID
	t         domain.StreamType
}

// MemoryStreamRepository keeps all stream rows plus a (performer, type) index
// pointing at the current one. A single mutex stands in for the unique index
// a SQL store would use, so find-or-insert and replace are atomic.
type MemoryStreamRepository struct {
	mu      sync.Mutex
	byID    map[domain.StreamID]*domain.Stream
	current map[currentKey]domain.StreamID
}

func NewMemoryStreamRepository() ports.StreamRepository {
	return &MemoryStreamRepository{
		byID:    make(map[domain.StreamID]*domain.Stream),
		current: make(map[currentKey]domain.StreamID),
	}
}

func copyStream(s *domain.Stream) *domain.Stream {
	copied := *s
	copied.StreamIDs = append([]string(nil), s.StreamIDs...)
	copied.UserIDs = append([]domain.UserID(nil), s.UserIDs...)
	return &copied
}

func (r *MemoryStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	return copyStream(stream), nil
}

func (r *MemoryStreamRepository) GetCurrent(ctx context.Context, performerID domain.PerformerID, t domain.StreamType) (*domain.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.current[currentKey{performer: performerID, t: t}]
	if !ok {
		return nil, domain.ErrStreamNotFound
	}
	return copyStream(r.byID[id]), nil
}

func (r *MemoryStreamRepository) GetOrCreateCurrent(ctx context.Context, candidate *domain.Stream) (*domain.Stream, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := currentKey{performer: candidate.PerformerID, t: candidate.Type}
	if id, ok := r.current[key]; ok {
		return copyStream(r.byID[id]), false, nil
	}

	stored := copyStream(candidate)
	r.byID[stored.ID] = stored
	r.current[key] = stored.ID
	return copyStream(stored), true, nil
}

func (r *MemoryStreamRepository) ReplaceCurrent(ctx context.Context, candidate *domain.Stream) (*domain.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := currentKey{performer: candidate.PerformerID, t: candidate.Type}
	if id, ok := r.current[key]; ok {
		prev := r.byID[id]
		if prev.IsStreaming {
			prev.IsStreaming = false
			prev.LastStreamingTime = time.Now()
		}
		// prev stays in byID: streams are never hard-deleted.
	}

	stored := copyStream(candidate)
	r.byID[stored.ID] = stored
	r.current[key] = stored.ID
	return copyStream(stored), nil
}

func (r *MemoryStreamRepository) Update(ctx context.Context, stream *domain.Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[stream.ID]; !ok {
		return domain.ErrStreamNotFound
	}
	r.byID[stream.ID] = copyStream(stream)
	return nil
}

func (r *MemoryStreamRepository) SetStreaming(ctx context.Context, id domain.StreamID, streaming bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream, ok := r.byID[id]
	if !ok {
		return domain.ErrStreamNotFound
	}
	if stream.IsStreaming == streaming {
		return nil
	}
	stream.IsStreaming = streaming
	if !streaming {
		stream.LastStreamingTime = at
	}
	return nil
}
