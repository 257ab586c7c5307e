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

// RedisStreamRepository stores every stream row under stagecast:stream:{id}
// and the current stream for each (performer, type) pair as a full JSON copy
// under stagecast:stream:current:{performer}:{type}. The current key plays
// the role of the unique index: all mutations that touch it run as Lua
// scripts so concurrent creators and replacers serialize on the server.
type RedisStreamRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisStreamRepository(client *redis.Client) ports.StreamRepository {
	return &RedisStreamRepository{
		client: client,
		prefix: "stagecast:stream:",
	}
}

func (r *RedisStreamRepository) streamKey(id domain.StreamID) string {
	return r.prefix + string(id)
}

func (r *RedisStreamRepository) currentKey(performerID domain.PerformerID, t domain.StreamType) string {
	return fmt.Sprintf("%scurrent:%s:%s", r.prefix, performerID, t)
}

// getOrCreateScript: KEYS[1]=current, KEYS[2]=candidate row, ARGV[1]=candidate JSON.
var getOrCreateScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  return {cur, 0}
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[1])
return {ARGV[1], 1}
`)

// replaceScript ends the previous current stream (clearing its streaming
// flag, stamping last_streaming_time) and installs the candidate.
// KEYS[1]=current, KEYS[2]=candidate row, ARGV[1]=candidate JSON,
// ARGV[2]=timestamp, ARGV[3]=row key prefix.
var replaceScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local prev = cjson.decode(cur)
  if prev.is_streaming then
    prev.is_streaming = false
    prev.last_streaming_time = ARGV[2]
    cur = cjson.encode(prev)
  end
  redis.call('SET', ARGV[3] .. prev.id, cur)
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[1])
return ARGV[1]
`)

// updateScript rewrites a row and refreshes the current copy when it points
// at the same stream. KEYS[1]=row, KEYS[2]=current, ARGV[1]=JSON, ARGV[2]=id.
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return redis.error_reply('stream not found')
end
redis.call('SET', KEYS[1], ARGV[1])
local cur = redis.call('GET', KEYS[2])
if cur and cjson.decode(cur).id == ARGV[2] then
  redis.call('SET', KEYS[2], ARGV[1])
end
return ARGV[1]
`)

// setStreamingScript mutates only the streaming flag and stop timestamp
// server-side, so a concurrent Update of other fields (sub-stream ids from a
// webhook, say) is never clobbered by a stale full-row write.
// KEYS[1]=row, ARGV[1]=flag ("1"/"0"), ARGV[2]=timestamp, ARGV[3]=key prefix.
var setStreamingScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return redis.error_reply('stream not found')
end
local row = cjson.decode(cur)
local want = ARGV[1] == '1'
local has = row.is_streaming and true or false
if has == want then
  return 0
end
row.is_streaming = want
if not want then
  row.last_streaming_time = ARGV[2]
end
local data = cjson.encode(row)
redis.call('SET', KEYS[1], data)
local curKey = ARGV[3] .. 'current:' .. row.performer_id .. ':' .. row.type
local currentVal = redis.call('GET', curKey)
if currentVal and cjson.decode(currentVal).id == row.id then
  redis.call('SET', curKey, data)
end
return 1
`)

func (r *RedisStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	data, err := r.client.Get(ctx, r.streamKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream from Redis: %w", err)
	}
	return unmarshalStream(data)
}

func (r *RedisStreamRepository) GetCurrent(ctx context.Context, performerID domain.PerformerID, t domain.StreamType) (*domain.Stream, error) {
	data, err := r.client.Get(ctx, r.currentKey(performerID, t)).Result()
	if err == redis.Nil {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current stream from Redis: %w", err)
	}
	return unmarshalStream(data)
}

func (r *RedisStreamRepository) GetOrCreateCurrent(ctx context.Context, candidate *domain.Stream) (*domain.Stream, bool, error) {
	data, err := json.Marshal(candidate)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal stream: %w", err)
	}

	result, err := getOrCreateScript.Run(ctx, r.client,
		[]string{r.currentKey(candidate.PerformerID, candidate.Type), r.streamKey(candidate.ID)},
		string(data),
	).Slice()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create stream in Redis: %w", err)
	}
	if len(result) != 2 {
		return nil, false, fmt.Errorf("unexpected script result length: %d", len(result))
	}

	stream, err := unmarshalStream(result[0].(string))
	if err != nil {
		return nil, false, err
	}
	created, _ := result[1].(int64)
	return stream, created == 1, nil
}

func (r *RedisStreamRepository) ReplaceCurrent(ctx context.Context, candidate *domain.Stream) (*domain.Stream, error) {
	data, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stream: %w", err)
	}

	result, err := replaceScript.Run(ctx, r.client,
		[]string{r.currentKey(candidate.PerformerID, candidate.Type), r.streamKey(candidate.ID)},
		string(data), time.Now().Format(time.RFC3339Nano), r.prefix,
	).Text()
	if err != nil {
		return nil, fmt.Errorf("failed to replace stream in Redis: %w", err)
	}
	return unmarshalStream(result)
}

func (r *RedisStreamRepository) Update(ctx context.Context, stream *domain.Stream) error {
	data, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}

	_, err = updateScript.Run(ctx, r.client,
		[]string{r.streamKey(stream.ID), r.currentKey(stream.PerformerID, stream.Type)},
		string(data), string(stream.ID),
	).Result()
	if err != nil {
		if err.Error() == "stream not found" {
			return domain.ErrStreamNotFound
		}
		return fmt.Errorf("failed to update stream in Redis: %w", err)
	}
	return nil
}

func (r *RedisStreamRepository) SetStreaming(ctx context.Context, id domain.StreamID, streaming bool, at time.Time) error {
	flag := "0"
	if streaming {
		flag = "1"
	}

	err := setStreamingScript.Run(ctx, r.client,
		[]string{r.streamKey(id)},
		flag, at.Format(time.RFC3339Nano), r.prefix,
	).Err()
	if err != nil {
		if err.Error() == "stream not found" {
			return domain.ErrStreamNotFound
		}
		return fmt.Errorf("failed to set streaming flag in Redis: %w", err)
	}
	return nil
}

func unmarshalStream(data string) (*domain.Stream, error) {
	var stream domain.Stream
	if err := json.Unmarshal([]byte(data), &stream); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stream: %w", err)
	}
	return &stream, nil
}
