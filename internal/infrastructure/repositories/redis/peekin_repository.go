package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// peekInTTL bounds how long an unconsumed peek-in request survives.
const peekInTTL = 10 * time.Minute

type RedisPeekInRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisPeekInRepository(client *redis.Client) ports.PeekInRepository {
	return &RedisPeekInRepository{
		client: client,
		prefix: "stagecast:peekin:",
	}
}

func (r *RedisPeekInRepository) key(id string) string {
	return r.prefix + id
}

func (r *RedisPeekInRepository) Create(ctx context.Context, req *domain.PeekInRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal peek-in request: %w", err)
	}
	if err := r.client.Set(ctx, r.key(req.ID), data, peekInTTL).Err(); err != nil {
		return fmt.Errorf("failed to store peek-in request in Redis: %w", err)
	}
	return nil
}

func (r *RedisPeekInRepository) GetByID(ctx context.Context, id string) (*domain.PeekInRequest, error) {
	data, err := r.client.Get(ctx, r.key(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrPeekInNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get peek-in request from Redis: %w", err)
	}
	var req domain.PeekInRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal peek-in request: %w", err)
	}
	return &req, nil
}

func (r *RedisPeekInRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete peek-in request from Redis: %w", err)
	}
	return nil
}
