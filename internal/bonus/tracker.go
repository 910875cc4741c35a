package bonus

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"casino_wallet/internal/clock"
	"casino_wallet/internal/metrics"
	"casino_wallet/internal/notify"
)

// WageringStore is the part of Repository the tracker writes through.
type WageringStore interface {
	LockWageringBonuses(ctx context.Context, tx *gorm.DB, userID string, now time.Time) ([]Bonus, error)
	UpdateWageringProgress(ctx context.Context, tx *gorm.DB, b *Bonus) error
}

// Tracker advances wagering progress for every stake a user places.
type Tracker struct {
	repo    WageringStore
	clock   clock.Clock
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewTracker(repo WageringStore, clk clock.Clock, m *metrics.Metrics, log *zap.Logger) *Tracker {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{repo: repo, clock: clk, metrics: m, log: log}
}

// Track runs under a savepoint of tx. A failure rolls back only the wagering
// writes and is logged; the caller's operation goes on.
func (t *Tracker) Track(ctx context.Context, tx *gorm.DB, userID string, stake decimal.Decimal) []WageringUpdate {
	if !stake.IsPositive() {
		return nil
	}

	now := t.clock.Now()
	var updates []WageringUpdate
	err := tx.Transaction(func(sp *gorm.DB) error {
		updates = nil
		bonuses, err := t.repo.LockWageringBonuses(ctx, sp, userID, now)
		if err != nil {
			return err
		}

		for i := range bonuses {
			next := Advance(bonuses[i], stake)
			if err := t.repo.UpdateWageringProgress(ctx, sp, &next); err != nil {
				return err
			}
			updates = append(updates, WageringUpdate{
				BonusID:           next.ID,
				UserID:            userID,
				CompletedWagering: next.CompletedWagering,
				RequiredWagering:  next.RequiredWagering(),
				Completed:         next.Status == StatusCompleted,
				Timestamp:         now,
			})
		}
		return nil
	})
	if err != nil {
		t.metrics.WageringFailed()
		t.log.Error("failed to update bonus wagering",
			zap.String("user_id", userID),
			zap.String("stake", stake.String()),
			zap.Error(err),
		)
		return nil
	}

	for _, u := range updates {
		if u.Completed {
			t.metrics.WageringCompleted()
			t.log.Info("bonus wagering completed",
				zap.String("bonus_id", u.BonusID),
				zap.String("user_id", userID),
			)
		}
	}
	return updates
}

func (u WageringUpdate) Event() notify.Event {
	completed, required := u.CompletedWagering, u.RequiredWagering
	return notify.Event{
		Type:      notify.EventWagering,
		UserID:    u.UserID,
		BonusID:   u.BonusID,
		Completed: &completed,
		Required:  &required,
		Done:      u.Completed,
		Timestamp: u.Timestamp,
	}
}

// Events converts updates for publishing after commit.
func Events(updates []WageringUpdate) []notify.Event {
	events := make([]notify.Event, 0, len(updates))
	for _, u := range updates {
		events = append(events, u.Event())
	}
	return events
}
