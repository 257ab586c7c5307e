package memory

import (
	"context"
	"sync"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
)

// Reference implementations of the external-collaborator ports, used for
// single-node runs and tests. Production deployments point these ports at
// the real profile/ledger/stats services.

type MemoryBalanceProvider struct {
	mu    sync.Mutex
	users map[domain.UserID]*domain.User
}

func NewMemoryBalanceProvider() *MemoryBalanceProvider {
	return &MemoryBalanceProvider{users: make(map[domain.UserID]*domain.User)}
}

func (p *MemoryBalanceProvider) PutUser(user *domain.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *user
	p.users[user.ID] = &copied
}

func (p *MemoryBalanceProvider) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[id]
	if !ok {
		return nil, domain.ErrForbidden
	}
	copied := *user
	return &copied, nil
}

func (p *MemoryBalanceProvider) Charge(ctx context.Context, userID domain.UserID, performerID domain.PerformerID, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[userID]
	if !ok {
		return domain.ErrForbidden
	}
	if user.Balance < amount {
		return domain.ErrTokenNotEnough
	}
	user.Balance -= amount
	user.LifetimeSpend += amount
	return nil
}

var _ ports.BalanceProvider = (*MemoryBalanceProvider)(nil)

type MemoryPerformerProvider struct {
	mu         sync.RWMutex
	performers map[domain.PerformerID]*domain.Performer
}

func NewMemoryPerformerProvider() *MemoryPerformerProvider {
	return &MemoryPerformerProvider{performers: make(map[domain.PerformerID]*domain.Performer)}
}

func (p *MemoryPerformerProvider) PutPerformer(performer *domain.Performer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *performer
	p.performers[performer.ID] = &copied
}

func (p *MemoryPerformerProvider) GetPerformer(ctx context.Context, id domain.PerformerID) (*domain.Performer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	performer, ok := p.performers[id]
	if !ok {
		return nil, domain.ErrPerformerNotFound
	}
	copied := *performer
	return &copied, nil
}

var _ ports.PerformerProvider = (*MemoryPerformerProvider)(nil)

type blockKey struct {
	performer domain.PerformerID
	user      domain.UserID
}

type MemoryBlockListProvider struct {
	mu               sync.RWMutex
	blockedUsers     map[blockKey]bool
	blockedCountries map[domain.PerformerID]map[string]bool
}

func NewMemoryBlockListProvider() *MemoryBlockListProvider {
	return &MemoryBlockListProvider{
		blockedUsers:     make(map[blockKey]bool),
		blockedCountries: make(map[domain.PerformerID]map[string]bool),
	}
}

func (p *MemoryBlockListProvider) BlockUser(performerID domain.PerformerID, userID domain.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blockedUsers[blockKey{performer: performerID, user: userID}] = true
}

func (p *MemoryBlockListProvider) BlockCountry(performerID domain.PerformerID, country string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.blockedCountries[performerID] == nil {
		p.blockedCountries[performerID] = make(map[string]bool)
	}
	p.blockedCountries[performerID][country] = true
}

func (p *MemoryBlockListProvider) IsBlocked(ctx context.Context, performerID domain.PerformerID, userID domain.UserID, ipCountry string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.blockedUsers[blockKey{performer: performerID, user: userID}] {
		return true, nil
	}
	if ipCountry != "" && p.blockedCountries[performerID][ipCountry] {
		return true, nil
	}
	return false, nil
}

var _ ports.BlockListProvider = (*MemoryBlockListProvider)(nil)

type MemoryRankProvider struct {
	mu    sync.RWMutex
	ranks map[domain.UserID]int
}

func NewMemoryRankProvider() *MemoryRankProvider {
	return &MemoryRankProvider{ranks: make(map[domain.UserID]int)}
}

func (p *MemoryRankProvider) PutRank(userID domain.UserID, rank int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ranks[userID] = rank
}

func (p *MemoryRankProvider) RanksFor(ctx context.Context, performerID domain.PerformerID, users []domain.UserID) ([]domain.MemberRank, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ranks := make([]domain.MemberRank, 0, len(users))
	for _, u := range users {
		ranks = append(ranks, domain.MemberRank{
			UserID: u,
			Rank:   p.ranks[u],
		})
	}
	return ranks, nil
}

var _ ports.RankProvider = (*MemoryRankProvider)(nil)

type viewTimeRecord struct {
	Performer domain.PerformerID
	Viewer    domain.UserID
	Spent     time.Duration
}

type MemoryStatsCollector struct {
	mu      sync.Mutex
	records []viewTimeRecord
}

func NewMemoryStatsCollector() *MemoryStatsCollector {
	return &MemoryStatsCollector{}
}

func (c *MemoryStatsCollector) RecordViewTime(ctx context.Context, performerID domain.PerformerID, viewer domain.UserID, spent time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, viewTimeRecord{Performer: performerID, Viewer: viewer, Spent: spent})
	return nil
}

// RecordedCount reports how many view-time deltas were handed off, used by
// tests.
func (c *MemoryStatsCollector) RecordedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

var _ ports.StatsCollector = (*MemoryStatsCollector)(nil)

type MemoryPurchaseVerifier struct {
	mu        sync.RWMutex
	purchases map[string]domain.UserID
}

func NewMemoryPurchaseVerifier() *MemoryPurchaseVerifier {
	return &MemoryPurchaseVerifier{purchases: make(map[string]domain.UserID)}
}

func (v *MemoryPurchaseVerifier) RecordPurchase(userID domain.UserID, peekInID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.purchases[peekInID] = userID
}

func (v *MemoryPurchaseVerifier) HasPurchased(ctx context.Context, userID domain.UserID, peekInID string) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.purchases[peekInID] == userID, nil
}

var _ ports.PurchaseVerifier = (*MemoryPurchaseVerifier)(nil)
