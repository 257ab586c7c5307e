package memory

import (
	"context"
	"sync"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
)

type MemoryPeekInRepository struct {
	mu       sync.RWMutex
	requests map[string]*domain.PeekInRequest
}

func NewMemoryPeekInRepository() ports.PeekInRepository {
	return &MemoryPeekInRepository{
		requests: make(map[string]*domain.PeekInRequest),
	}
}

func (r *MemoryPeekInRepository) Create(ctx context.Context, req *domain.PeekInRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *req
	r.requests[req.ID] = &copied
	return nil
}

func (r *MemoryPeekInRepository) GetByID(ctx context.Context, id string) (*domain.PeekInRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, domain.ErrPeekInNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *MemoryPeekInRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.requests, id)
	return nil
}
