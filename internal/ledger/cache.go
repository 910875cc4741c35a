package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"casino_wallet/internal/clock"
	"casino_wallet/internal/metrics"
)

const DefaultCacheTTL = 30 * time.Second

// Snapshot is an available balance together with the ledger head version it
// was read at.
type Snapshot struct {
	Balance decimal.Decimal
	Version int64
}

type BalanceSource interface {
	Snapshot(ctx context.Context, userID string) (Snapshot, error)
}

type cacheEntry struct {
	Snapshot
	expiresAt time.Time
}

// BalanceCache memoizes available balances per user. It is never
// authoritative: every value comes from BalanceSource or from a committed
// delta applied on top of the version it directly follows.
type BalanceCache struct {
	source  BalanceSource
	ttl     time.Duration
	clock   clock.Clock
	metrics *metrics.Metrics

	mu      sync.Mutex
	entries map[string]cacheEntry
	// generations change on every invalidation so loads that started
	// earlier cannot store what they read.
	generations map[string]uint64

	loads singleflight.Group
}

func NewBalanceCache(source BalanceSource, ttl time.Duration, clk clock.Clock, m *metrics.Metrics) *BalanceCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &BalanceCache{
		source:      source,
		ttl:         ttl,
		clock:       clk,
		metrics:     m,
		entries:     make(map[string]cacheEntry),
		generations: make(map[string]uint64),
	}
}

func (c *BalanceCache) Get(ctx context.Context, userID string) (decimal.Decimal, error) {
	c.mu.Lock()
	if e, ok := c.entries[userID]; ok && c.clock.Now().Before(e.expiresAt) {
		c.mu.Unlock()
		c.metrics.CacheHit()
		return e.Balance, nil
	}
	gen := c.generations[userID]
	c.mu.Unlock()

	c.metrics.CacheMiss()
	key := userID + "#" + strconv.FormatUint(gen, 10)
	v, err, _ := c.loads.Do(key, func() (any, error) {
		return c.fetch(ctx, userID, gen)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(Snapshot).Balance, nil
}

// Update records a committed movement of amount that moved the ledger head
// to version. A fresh entry at the preceding version is adjusted in place; an
// entry that already includes the movement is kept; anything else is reloaded.
func (c *BalanceCache) Update(ctx context.Context, userID string, version int64, amount decimal.Decimal, tp Type) (decimal.Decimal, error) {
	c.mu.Lock()
	e, ok := c.entries[userID]
	now := c.clock.Now()
	if ok && now.Before(e.expiresAt) {
		switch {
		case e.Version >= version:
			c.mu.Unlock()
			return e.Balance, nil
		case e.Version == version-1:
			switch tp {
			case TypeDeposit:
				e.Balance = e.Balance.Add(amount)
			case TypeWithdrawal:
				e.Balance = e.Balance.Sub(amount)
			}
			e.Version = version
			e.expiresAt = now.Add(c.ttl)
			c.entries[userID] = e
			c.mu.Unlock()
			return e.Balance, nil
		}
	}
	delete(c.entries, userID)
	gen := c.generations[userID]
	c.mu.Unlock()

	// Not shared through singleflight: a load already in flight may predate
	// this commit.
	snap, err := c.fetch(ctx, userID, gen)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Balance, nil
}

func (c *BalanceCache) Invalidate(userIDs ...string) {
	c.mu.Lock()
	for _, id := range userIDs {
		delete(c.entries, id)
		c.generations[id]++
	}
	c.mu.Unlock()
	c.metrics.CacheInvalidated(len(userIDs))
}

func (c *BalanceCache) fetch(ctx context.Context, userID string, gen uint64) (Snapshot, error) {
	snap, err := c.source.Snapshot(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load balance for %s: %w", userID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[userID] != gen {
		return snap, nil
	}
	if e, ok := c.entries[userID]; ok && e.Version > snap.Version {
		return snap, nil
	}
	c.entries[userID] = cacheEntry{Snapshot: snap, expiresAt: c.clock.Now().Add(c.ttl)}
	return snap, nil
}
