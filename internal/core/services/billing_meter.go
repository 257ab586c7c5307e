package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"

	"go.uber.org/zap"
)

// BillingMeter is the server-authoritative per-minute charge loop. A meter is
// keyed to a room's presence lifetime: started when the paid session becomes
// active and stopped when either party leaves. The client never drives
// charging.
type BillingMeter struct {
	balances ports.BalanceProvider
	interval time.Duration
	logger   *zap.SugaredLogger

	// onInsufficient is invoked when a tick fails on balance; the gateway
	// registers an eviction here.
	onInsufficient func(room domain.RoomID, payer domain.UserID)

	// onCharge is invoked after every successful tick; the gateway counts
	// them.
	onCharge func()

	mu     sync.Mutex
	meters map[meterKey]chan struct{}
}

type meterKey struct {
	room  domain.RoomID
	payer domain.UserID
}

func NewBillingMeter(balances ports.BalanceProvider, interval time.Duration, logger *zap.SugaredLogger) *BillingMeter {
	return &BillingMeter{
		balances: balances,
		interval: interval,
		logger:   logger,
		meters:   make(map[meterKey]chan struct{}),
	}
}

// OnInsufficient registers the callback fired when a payer runs dry.
func (m *BillingMeter) OnInsufficient(fn func(room domain.RoomID, payer domain.UserID)) {
	m.onInsufficient = fn
}

// OnCharge registers the callback fired after each successful charge.
func (m *BillingMeter) OnCharge(fn func()) {
	m.onCharge = fn
}

// Start begins charging payer every interval. Starting an already-running
// meter is a no-op.
func (m *BillingMeter) Start(room domain.RoomID, payer domain.UserID, performerID domain.PerformerID, pricePerInterval int64) {
	key := meterKey{room: room, payer: payer}

	m.mu.Lock()
	if _, running := m.meters[key]; running {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.meters[key] = stop
	m.mu.Unlock()

	go m.run(key, performerID, pricePerInterval, stop)
}

// Stop cancels the meter for (room, payer). Idempotent.
func (m *BillingMeter) Stop(room domain.RoomID, payer domain.UserID) {
	key := meterKey{room: room, payer: payer}

	m.mu.Lock()
	stop, running := m.meters[key]
	if running {
		delete(m.meters, key)
	}
	m.mu.Unlock()

	if running {
		close(stop)
	}
}

// StopRoom cancels every meter attached to the room, used when the model
// leaves and the whole session winds down.
func (m *BillingMeter) StopRoom(room domain.RoomID) {
	m.mu.Lock()
	var stops []chan struct{}
	for key, stop := range m.meters {
		if key.room == room {
			stops = append(stops, stop)
			delete(m.meters, key)
		}
	}
	m.mu.Unlock()

	for _, stop := range stops {
		close(stop)
	}
}

// Active reports whether a meter is running for (room, payer).
func (m *BillingMeter) Active(room domain.RoomID, payer domain.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, running := m.meters[meterKey{room: room, payer: payer}]
	return running
}

func (m *BillingMeter) run(key meterKey, performerID domain.PerformerID, price int64, stop chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := m.balances.Charge(ctx, key.payer, performerID, price)
			cancel()

			if err == nil {
				if m.onCharge != nil {
					m.onCharge()
				}
				continue
			}

			if errors.Is(err, domain.ErrTokenNotEnough) {
				m.logger.Infow("payer balance exhausted, stopping meter",
					"room", key.room, "payer", key.payer)
				m.Stop(key.room, key.payer)
				if m.onInsufficient != nil {
					m.onInsufficient(key.room, key.payer)
				}
				return
			}

			// Transient charge failures are logged and retried on the next
			// tick rather than dropping the session.
			m.logger.Warnw("charge failed",
				"room", key.room, "payer", key.payer, "error", err)
		}
	}
}
