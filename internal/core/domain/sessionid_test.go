package domain_test

import (
	"testing"
	"time"

	"stagecast/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestNewBroadcastSessionID_BroadcasterIDIsStable(t *testing.T) {
	first := domain.NewBroadcastSessionID(domain.StreamTypePublic, "stream-1", "alice", false, time.Now())
	second := domain.NewBroadcastSessionID(domain.StreamTypePublic, "stream-1", "alice", false, time.Now().Add(time.Hour))

	assert.Equal(t, first, second, "broadcaster ids must survive reconnects")
	assert.Equal(t, domain.BroadcastSessionID("public-stream-1-alice"), first)
}

func TestNewBroadcastSessionID_ViewerIDIsUnique(t *testing.T) {
	now := time.Now()
	first := domain.NewBroadcastSessionID(domain.StreamTypeGroup, "stream-1", "alice", true, now)
	second := domain.NewBroadcastSessionID(domain.StreamTypeGroup, "stream-1", "alice", true, now.Add(time.Millisecond))

	assert.NotEqual(t, first, second)
	assert.Contains(t, string(first), "group-stream-1-alice-")
}

func TestContainsPerformer(t *testing.T) {
	assert.True(t, domain.ContainsPerformer("group-stream-1-alice-17123", "alice"))
	assert.False(t, domain.ContainsPerformer("group-stream-1-bob-17123", "alice"))
}
