package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Aggregate folds per-(status, type) sums into a balance. Pending movements
// only ever reach NetPending; Effective mirrors Available.
func Aggregate(groups []GroupTotal) DetailedBalance {
	available := decimal.Zero
	pending := decimal.Zero

	for _, g := range groups {
		switch g.Status {
		case StatusSuccess:
			switch g.Type {
			case TypeDeposit:
				available = available.Add(g.Total)
			case TypeWithdrawal:
				available = available.Sub(g.Total)
			}
		case StatusPending:
			switch g.Type {
			case TypeDeposit:
				pending = pending.Add(g.Total)
			case TypeWithdrawal:
				pending = pending.Sub(g.Total)
			}
		}
	}

	return DetailedBalance{
		Available:  available,
		NetPending: pending,
		Effective:  available,
	}
}

type Calculator struct {
	db   *gorm.DB
	repo *Repository
}

func NewCalculator(db *gorm.DB, repo *Repository) *Calculator {
	return &Calculator{db: db, repo: repo}
}

// Detailed derives the balance through handle, which may be an open
// transaction. A nil handle reads from the pool.
func (c *Calculator) Detailed(ctx context.Context, handle *gorm.DB, userID string) (DetailedBalance, error) {
	if handle == nil {
		handle = c.db
	}
	groups, err := c.repo.GroupTotals(ctx, handle, userID)
	if err != nil {
		return DetailedBalance{}, err
	}
	return Aggregate(groups), nil
}

// Snapshot reads the available balance and the ledger head version from one
// repeatable-read snapshot, so the version says exactly which writes the
// balance includes.
func (c *Calculator) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	var snap Snapshot
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acct Account
		if err := tx.Where("user_id = ?", userID).Limit(1).Find(&acct).Error; err != nil {
			return fmt.Errorf("failed to read ledger account: %w", err)
		}
		groups, err := c.repo.GroupTotals(ctx, tx, userID)
		if err != nil {
			return err
		}
		snap = Snapshot{Balance: Aggregate(groups).Available, Version: acct.Version}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	return snap, err
}
