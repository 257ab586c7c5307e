package services_test

import (
	"context"
	"testing"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/services"
	"stagecast/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasSufficientBalance(t *testing.T) {
	assert.False(t, services.HasSufficientBalance(nil, 10))
	assert.False(t, services.HasSufficientBalance(testUser("bob", 9), 10))
	assert.True(t, services.HasSufficientBalance(testUser("bob", 10), 10))
	assert.True(t, services.HasSufficientBalance(testUser("bob", 11), 10))
}

func TestUnderTierThreshold(t *testing.T) {
	open := &domain.Performer{ID: "alice"}
	gated := &domain.Performer{ID: "alice", BadgingTierToken: 100}

	assert.False(t, services.UnderTierThreshold(open, nil))
	assert.True(t, services.UnderTierThreshold(gated, nil))

	low := testUser("bob", 0)
	low.LifetimeSpend = 99
	assert.True(t, services.UnderTierThreshold(gated, low))

	exact := testUser("bob", 0)
	exact.LifetimeSpend = 100
	assert.False(t, services.UnderTierThreshold(gated, exact))
}

func TestAtCapacity(t *testing.T) {
	performer := &domain.Performer{ID: "alice", MaxParticipantsAllowed: 3}

	assert.False(t, services.AtCapacity(2, performer))
	assert.False(t, services.AtCapacity(3, performer))
	assert.True(t, services.AtCapacity(4, performer))
}

func TestAuthorizationGate_IsBlocked(t *testing.T) {
	blocks := memory.NewMemoryBlockListProvider()
	gate := services.NewAuthorizationGate(blocks)
	ctx := context.Background()

	blocked, err := gate.IsBlocked(ctx, "alice", nil)
	require.NoError(t, err)
	assert.False(t, blocked, "anonymous callers have nothing to match block rules against")

	blocked, err = gate.IsBlocked(ctx, "alice", testUser("bob", 0))
	require.NoError(t, err)
	assert.False(t, blocked)

	blocks.BlockUser("alice", "bob")
	blocked, err = gate.IsBlocked(ctx, "alice", testUser("bob", 0))
	require.NoError(t, err)
	assert.True(t, blocked)

	visitor := testUser("carol", 0)
	visitor.IPCountry = "XX"
	blocks.BlockCountry("alice", "XX")
	blocked, err = gate.IsBlocked(ctx, "alice", visitor)
	require.NoError(t, err)
	assert.True(t, blocked)
}
