package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"stagecast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSocket struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	err    error
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	frame := append([]byte(nil), data...)
	s.frames = append(s.frames, frame)
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

type recordingBus struct {
	mu     sync.Mutex
	rooms  []domain.RoomID
	frames [][]byte
}

func (b *recordingBus) Publish(ctx context.Context, room domain.RoomID, frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms = append(b.rooms, room)
	b.frames = append(b.frames, append([]byte(nil), frame...))
	return nil
}

func decodeEnvelope(t *testing.T, frame []byte) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

func TestHub_BroadcastReachesRoomMembers(t *testing.T) {
	hub := NewHub(nil, zap.NewNop().Sugar())

	sockA, sockB, sockC := &fakeSocket{}, &fakeSocket{}, &fakeSocket{}
	a := newClient("conn-a", "alice", "alice", sockA)
	b := newClient("conn-b", "bob", "bob", sockB)
	c := newClient("conn-c", "carol", "carol", sockC)

	hub.Add("room-1", a)
	hub.Add("room-1", b)
	hub.Add("room-2", c)

	hub.Broadcast(context.Background(), "room-1", EventModelJoinRoom, PerformerPayload{PerformerID: "alice"}, "")

	require.Len(t, sockA.received(), 1)
	require.Len(t, sockB.received(), 1)
	assert.Empty(t, sockC.received(), "other rooms must not see the frame")

	env := decodeEnvelope(t, sockA.received()[0])
	assert.Equal(t, EventModelJoinRoom, env.Event)
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	hub := NewHub(nil, zap.NewNop().Sugar())

	sockA, sockB := &fakeSocket{}, &fakeSocket{}
	a := newClient("conn-a", "alice", "alice", sockA)
	b := newClient("conn-b", "bob", "bob", sockB)
	hub.Add("room-1", a)
	hub.Add("room-1", b)

	hub.Broadcast(context.Background(), "room-1", EventPublicRoomChanged, nil, "conn-a")

	assert.Empty(t, sockA.received())
	assert.Len(t, sockB.received(), 1)
}

func TestHub_WriteFailureDoesNotAbortFanOut(t *testing.T) {
	hub := NewHub(nil, zap.NewNop().Sugar())

	broken := &fakeSocket{err: errors.New("connection reset")}
	healthy := &fakeSocket{}
	hub.Add("room-1", newClient("conn-a", "alice", "alice", broken))
	hub.Add("room-1", newClient("conn-b", "bob", "bob", healthy))

	hub.Broadcast(context.Background(), "room-1", EventPublicRoomChanged, nil, "")

	assert.Len(t, healthy.received(), 1)
}

func TestHub_RemoveAndCounts(t *testing.T) {
	hub := NewHub(nil, zap.NewNop().Sugar())

	a := newClient("conn-a", "alice", "alice", &fakeSocket{})
	b := newClient("conn-b", "bob", "bob", &fakeSocket{})
	hub.Add("room-1", a)
	hub.Add("room-1", b)

	assert.Equal(t, 2, hub.LocalCount("room-1"))
	assert.True(t, a.inRoom("room-1"))

	hub.Remove("room-1", a)
	assert.Equal(t, 1, hub.LocalCount("room-1"))
	assert.False(t, a.inRoom("room-1"))

	hub.Remove("room-1", b)
	assert.Zero(t, hub.LocalCount("room-1"))
}

func TestHub_ConnsForMatchesUserAcrossConnections(t *testing.T) {
	hub := NewHub(nil, zap.NewNop().Sugar())

	// The same user can hold two tabs in the same room.
	first := newClient("conn-a", "bob", "bob", &fakeSocket{})
	second := newClient("conn-b", "bob", "bob", &fakeSocket{})
	other := newClient("conn-c", "carol", "carol", &fakeSocket{})
	hub.Add("room-1", first)
	hub.Add("room-1", second)
	hub.Add("room-1", other)

	conns := hub.ConnsFor("room-1", "bob")
	assert.Len(t, conns, 2)
	assert.Empty(t, hub.ConnsFor("room-1", "mallory"))
}

func TestHub_BroadcastForwardsToBus(t *testing.T) {
	bus := &recordingBus{}
	hub := NewHub(bus, zap.NewNop().Sugar())

	sock := &fakeSocket{}
	hub.Add("room-1", newClient("conn-a", "alice", "alice", sock))

	hub.Broadcast(context.Background(), "room-1", EventJoinBroadcaster, nil, "")

	bus.mu.Lock()
	defer bus.mu.Unlock()
	require.Len(t, bus.frames, 1)
	assert.Equal(t, domain.RoomID("room-1"), bus.rooms[0])
	assert.Equal(t, sock.received()[0], bus.frames[0], "remote nodes must replay the exact local frame")
}

func TestHub_DeliverRemote(t *testing.T) {
	hub := NewHub(nil, zap.NewNop().Sugar())

	sock := &fakeSocket{}
	hub.Add("room-1", newClient("conn-a", "alice", "alice", sock))

	frame := mustEnvelope(EventModelLeftRoom, PerformerPayload{PerformerID: "alice"})
	hub.DeliverRemote("room-1", frame)

	require.Len(t, sock.received(), 1)
	assert.Equal(t, frame, sock.received()[0])
}

func TestHub_SendTo(t *testing.T) {
	hub := NewHub(nil, zap.NewNop().Sugar())

	sock := &fakeSocket{}
	c := newClient("conn-a", "bob", "bob", sock)

	require.NoError(t, hub.SendTo(c, EventJoinedTheRoom, JoinedPayload{Total: 3}))

	env := decodeEnvelope(t, sock.received()[0])
	assert.Equal(t, EventJoinedTheRoom, env.Event)

	var payload JoinedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, 3, payload.Total)
}
