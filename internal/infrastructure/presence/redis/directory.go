package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// Directory is the shared presence map for multi-node gateway deployments.
// Each room is one hash keyed by participant; join/leave run as Lua scripts
// so room mutations stay atomic without a distributed lock.
type Directory struct {
	client *redis.Client
	prefix string
}

func NewDirectory(client *redis.Client) ports.PresenceDirectory {
	return &Directory{
		client: client,
		prefix: "stagecast:presence:",
	}
}

func (d *Directory) roomKey(room domain.RoomID) string {
	return d.prefix + string(room)
}

// joinScript inserts a presence entry unless the participant already holds a
// different role or a second model would appear.
var joinScript = redis.NewScript(`
local existing = redis.call('HGET', KEYS[1], ARGV[1])
if existing then
  local decoded = cjson.decode(existing)
  if decoded.role ~= ARGV[2] then
    return redis.error_reply('role conflict')
  end
  return existing
end
if ARGV[2] == 'model' then
  local all = redis.call('HVALS', KEYS[1])
  for _, v in ipairs(all) do
    if cjson.decode(v).role == 'model' then
      return redis.error_reply('role conflict')
    end
  end
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
return ARGV[3]
`)

var leaveScript = redis.NewScript(`
local existing = redis.call('HGET', KEYS[1], ARGV[1])
if existing then
  redis.call('HDEL', KEYS[1], ARGV[1])
end
return existing
`)

func (d *Directory) Join(ctx context.Context, room domain.RoomID, participant domain.UserID, role domain.Role) (*domain.PresenceEntry, error) {
	if !role.Valid() {
		return nil, domain.ErrBadRequest
	}

	entry := &domain.PresenceEntry{
		Room:        room,
		Participant: participant,
		Role:        role,
		JoinedAt:    time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal presence entry: %w", err)
	}

	result, err := joinScript.Run(ctx, d.client,
		[]string{d.roomKey(room)},
		string(participant), string(role), string(data),
	).Text()
	if err != nil {
		if strings.Contains(err.Error(), "role conflict") {
			return nil, domain.ErrRoleConflict
		}
		return nil, fmt.Errorf("failed to join room in Redis: %w", err)
	}

	var stored domain.PresenceEntry
	if err := json.Unmarshal([]byte(result), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence entry: %w", err)
	}
	return &stored, nil
}

func (d *Directory) Leave(ctx context.Context, room domain.RoomID, participant domain.UserID) (*domain.PresenceEntry, error) {
	result, err := leaveScript.Run(ctx, d.client,
		[]string{d.roomKey(room)},
		string(participant),
	).Text()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to leave room in Redis: %w", err)
	}

	var stored domain.PresenceEntry
	if err := json.Unmarshal([]byte(result), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence entry: %w", err)
	}
	return &stored, nil
}

func (d *Directory) Get(ctx context.Context, room domain.RoomID, participant domain.UserID) (*domain.PresenceEntry, error) {
	data, err := d.client.HGet(ctx, d.roomKey(room), string(participant)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence entry from Redis: %w", err)
	}

	var stored domain.PresenceEntry
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence entry: %w", err)
	}
	return &stored, nil
}

func (d *Directory) List(ctx context.Context, room domain.RoomID) ([]*domain.PresenceEntry, error) {
	values, err := d.client.HVals(ctx, d.roomKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list room from Redis: %w", err)
	}

	entries := make([]*domain.PresenceEntry, 0, len(values))
	for _, v := range values {
		var stored domain.PresenceEntry
		if err := json.Unmarshal([]byte(v), &stored); err != nil {
			continue
		}
		entries = append(entries, &stored)
	}
	return entries, nil
}

func (d *Directory) ListByRole(ctx context.Context, room domain.RoomID, role domain.Role) ([]domain.UserID, error) {
	entries, err := d.List(ctx, room)
	if err != nil {
		return nil, err
	}

	var ids []domain.UserID
	for _, e := range entries {
		if e.Role == role {
			ids = append(ids, e.Participant)
		}
	}
	return ids, nil
}

func (d *Directory) Count(ctx context.Context, room domain.RoomID) (int, error) {
	n, err := d.client.HLen(ctx, d.roomKey(room)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count room in Redis: %w", err)
	}
	return int(n), nil
}
