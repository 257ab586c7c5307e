package services

import (
	"context"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
)

// AuthorizationGate bundles the stateless admission predicates. Every check
// runs before any mutation so a failed operation is always a no-op.
type AuthorizationGate struct {
	blocks ports.BlockListProvider
}

func NewAuthorizationGate(blocks ports.BlockListProvider) *AuthorizationGate {
	return &AuthorizationGate{blocks: blocks}
}

// HasSufficientBalance reports whether the user can afford the given price.
// Balance exactly equal to the price is sufficient.
func HasSufficientBalance(user *domain.User, price int64) bool {
	if user == nil {
		return false
	}
	return user.Balance >= price
}

// UnderTierThreshold reports whether a public join must be rejected by the
// performer's spend tier gate. Anonymous callers (nil user) never pass a
// non-zero threshold.
func UnderTierThreshold(performer *domain.Performer, user *domain.User) bool {
	if performer.BadgingTierToken <= 0 {
		return false
	}
	if user == nil {
		return true
	}
	return user.LifetimeSpend < performer.BadgingTierToken
}

// AtCapacity reports whether admitting one more member would exceed the
// performer's participant limit. The boundary itself is still admissible.
func AtCapacity(members int, performer *domain.Performer) bool {
	return members > performer.MaxParticipantsAllowed
}

// IsBlocked consults the performer's block rules for the caller.
func (g *AuthorizationGate) IsBlocked(ctx context.Context, performerID domain.PerformerID, user *domain.User) (bool, error) {
	if user == nil {
		return false, nil
	}
	return g.blocks.IsBlocked(ctx, performerID, user.ID, user.IPCountry)
}
