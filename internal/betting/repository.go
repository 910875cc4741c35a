package betting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateEvent(ctx context.Context, tx *gorm.DB, e *Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *Repository) CreateOutcome(ctx context.Context, tx *gorm.DB, o *Outcome) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Result == "" {
		o.Result = ResultPending
	}
	if err := tx.WithContext(ctx).Omit("Event").Create(o).Error; err != nil {
		return fmt.Errorf("failed to create outcome: %w", err)
	}
	return nil
}

// GetOutcome loads an outcome with its event.
func (r *Repository) GetOutcome(ctx context.Context, tx *gorm.DB, id string) (*Outcome, error) {
	var o Outcome
	err := tx.WithContext(ctx).Preload("Event").Where("id = ?", id).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOutcomeNotFound
		}
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	return &o, nil
}

// AddStake moves the outcome's aggregate stake by delta as long as the
// outcome is still open. The row lock it takes orders bets against settlement.
func (r *Repository) AddStake(ctx context.Context, tx *gorm.DB, outcomeID string, delta decimal.Decimal) error {
	result := tx.WithContext(ctx).
		Model(&Outcome{}).
		Where("id = ? AND result = ?", outcomeID, ResultPending).
		Update("stake", gorm.Expr("stake + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to update outcome stake: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOutcomeClosed
	}
	return nil
}

// CloseOutcome records result on an open outcome.
func (r *Repository) CloseOutcome(ctx context.Context, tx *gorm.DB, outcomeID string, result Result) error {
	res := tx.WithContext(ctx).
		Model(&Outcome{}).
		Where("id = ? AND result = ?", outcomeID, ResultPending).
		Update("result", result)
	if res.Error != nil {
		return fmt.Errorf("failed to close outcome: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetOutcome(ctx, tx, outcomeID); err != nil {
			return err
		}
		return ErrOutcomeSettled
	}
	return nil
}

func (r *Repository) CreateBet(ctx context.Context, tx *gorm.DB, b *Bet) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("failed to create bet: %w", err)
	}
	return nil
}

func (r *Repository) GetBetForUpdate(ctx context.Context, tx *gorm.DB, userID, betID string) (*Bet, error) {
	var b Bet
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", betID, userID).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBetNotFound
		}
		return nil, fmt.Errorf("failed to lock bet: %w", err)
	}
	return &b, nil
}

func (r *Repository) LockPendingBets(ctx context.Context, tx *gorm.DB, outcomeID string) ([]Bet, error) {
	var bets []Bet
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("outcome_id = ? AND status = ?", outcomeID, BetPending).
		Order("created_at, id").
		Find(&bets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock pending bets: %w", err)
	}
	return bets, nil
}

func (r *Repository) SettleBet(ctx context.Context, tx *gorm.DB, betID string, status BetStatus, at time.Time) error {
	err := tx.WithContext(ctx).
		Model(&Bet{}).
		Where("id = ? AND status = ?", betID, BetPending).
		Updates(map[string]interface{}{
			"status":     status,
			"settled_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to settle bet: %w", err)
	}
	return nil
}

func (r *Repository) DeleteBet(ctx context.Context, tx *gorm.DB, betID string) error {
	if err := tx.WithContext(ctx).Where("id = ?", betID).Delete(&Bet{}).Error; err != nil {
		return fmt.Errorf("failed to delete bet: %w", err)
	}
	return nil
}

func (r *Repository) ListBets(ctx context.Context, userID string, limit int) ([]Bet, error) {
	var bets []Bet
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id").
		Limit(limit).
		Find(&bets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	return bets, nil
}
