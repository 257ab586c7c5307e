package services_test

import (
	"context"
	"testing"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
	"stagecast/internal/core/services"
	"stagecast/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type peekInFixture struct {
	service    ports.PeekInService
	streams    ports.StreamRepository
	performers *memory.MemoryPerformerProvider
	purchases  *memory.MemoryPurchaseVerifier
}

func newPeekInFixture(t *testing.T) *peekInFixture {
	t.Helper()

	streams := memory.NewMemoryStreamRepository()
	performers := memory.NewMemoryPerformerProvider()
	purchases := memory.NewMemoryPurchaseVerifier()

	return &peekInFixture{
		service:    services.NewPeekInService(memory.NewMemoryPeekInRepository(), streams, performers, purchases, zap.NewNop().Sugar()),
		streams:    streams,
		performers: performers,
		purchases:  purchases,
	}
}

func (f *peekInFixture) putPerformer(enablePeekIn bool) {
	f.performers.PutPerformer(&domain.Performer{
		ID:           "alice",
		Username:     "alice",
		EnablePeekIn: enablePeekIn,
		PeekInPrice:  15,
	})
}

func (f *peekInFixture) putLivePrivateStream(t *testing.T, subStreams ...string) *domain.Stream {
	t.Helper()
	stream := &domain.Stream{
		ID:          "stream-1",
		PerformerID: "alice",
		Type:        domain.StreamTypePrivate,
		SessionID:   "session-1",
		IsStreaming: true,
		StreamIDs:   subStreams,
		CreatedAt:   time.Now(),
	}
	_, err := f.streams.ReplaceCurrent(context.Background(), stream)
	require.NoError(t, err)
	return stream
}

func TestCreateRequest_PeekInDisabled(t *testing.T) {
	f := newPeekInFixture(t)
	f.putPerformer(false)
	f.putLivePrivateStream(t)

	_, err := f.service.CreateRequest(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCreateRequest_NoLivePrivateStream(t *testing.T) {
	f := newPeekInFixture(t)
	f.putPerformer(true)

	_, err := f.service.CreateRequest(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, domain.ErrStreamOffline)
}

func TestCreateRequest_CarriesPriceAndTimeLimit(t *testing.T) {
	f := newPeekInFixture(t)
	ctx := context.Background()
	f.putPerformer(true)
	stream := f.putLivePrivateStream(t)

	req, err := f.service.CreateRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, stream.ID, req.StreamID)
	assert.Equal(t, int64(15), req.PriceToken)
	assert.Equal(t, int(services.DefaultPeekInTimeLimit.Seconds()), req.TimeLimitSeconds)
}

func TestStreamToSpy_WrongUser(t *testing.T) {
	f := newPeekInFixture(t)
	ctx := context.Background()
	f.putPerformer(true)
	f.putLivePrivateStream(t, "sub-alice-1")

	req, err := f.service.CreateRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	f.purchases.RecordPurchase("mallory", req.ID)

	_, err = f.service.StreamToSpy(ctx, req.ID, "mallory")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestStreamToSpy_Unpurchased(t *testing.T) {
	f := newPeekInFixture(t)
	ctx := context.Background()
	f.putPerformer(true)
	f.putLivePrivateStream(t, "sub-alice-1")

	req, err := f.service.CreateRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = f.service.StreamToSpy(ctx, req.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestStreamToSpy_OneShotGrant(t *testing.T) {
	f := newPeekInFixture(t)
	ctx := context.Background()
	f.putPerformer(true)
	f.putLivePrivateStream(t, "sub-bob-cam", "sub-alice-cam")

	req, err := f.service.CreateRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	f.purchases.RecordPurchase("bob", req.ID)

	subStream, err := f.service.StreamToSpy(ctx, req.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "sub-alice-cam", subStream, "must hand out the performer's feed, not another publisher's")

	_, err = f.service.StreamToSpy(ctx, req.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrPeekInNotFound)
}

func TestStreamToSpy_StreamWentOffline(t *testing.T) {
	f := newPeekInFixture(t)
	ctx := context.Background()
	f.putPerformer(true)
	stream := f.putLivePrivateStream(t, "sub-alice-cam")

	req, err := f.service.CreateRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	f.purchases.RecordPurchase("bob", req.ID)

	require.NoError(t, f.streams.SetStreaming(ctx, stream.ID, false, time.Now()))

	_, err = f.service.StreamToSpy(ctx, req.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrStreamOffline)
}

func TestStreamToSpy_NoPerformerSubStream(t *testing.T) {
	f := newPeekInFixture(t)
	ctx := context.Background()
	f.putPerformer(true)
	f.putLivePrivateStream(t, "sub-bob-cam")

	req, err := f.service.CreateRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	f.purchases.RecordPurchase("bob", req.ID)

	_, err = f.service.StreamToSpy(ctx, req.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}
