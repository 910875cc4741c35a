package bonus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"casino_wallet/internal/commission"
	"casino_wallet/internal/storage"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetBonus(ctx context.Context, userID, bonusID string) (*Bonus, error) {
	var bonus Bonus
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", bonusID, userID).
		First(&bonus).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBonusNotFound
		}
		return nil, fmt.Errorf("failed to get bonus: %w", err)
	}

	return &bonus, nil
}

func (r *Repository) ListBonuses(ctx context.Context, userID string) ([]Bonus, error) {
	var bonuses []Bonus
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&bonuses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bonuses: %w", err)
	}
	return bonuses, nil
}

func (r *Repository) GetBonusForUpdate(ctx context.Context, tx *gorm.DB, userID, bonusID string) (*Bonus, error) {
	var bonus Bonus

	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", bonusID, userID).
		First(&bonus).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBonusNotFound
		}
		return nil, fmt.Errorf("failed to lock bonus: %w", err)
	}

	return &bonus, nil
}

// LockWageringBonuses locks the user's unexpired bonuses that still take
// wagering progress.
func (r *Repository) LockWageringBonuses(ctx context.Context, tx *gorm.DB, userID string, now time.Time) ([]Bonus, error) {
	var bonuses []Bonus
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status = ?", userID, StatusPendingWagering).
		Where("remaining_amount > 0 OR free_spins_winnings > 0").
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("created_at, id").
		Find(&bonuses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock wagering bonuses: %w", err)
	}
	return bonuses, nil
}

func (r *Repository) LockPendingActivation(ctx context.Context, tx *gorm.DB, userID string) ([]Bonus, error) {
	var bonuses []Bonus
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status = ?", userID, StatusPendingActivation).
		Order("created_at, id").
		Find(&bonuses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock pending bonuses: %w", err)
	}
	return bonuses, nil
}

// UpdateWageringProgress writes the counters and the status in one UPDATE so
// no reader sees a met requirement on a bonus that is still wagering.
func (r *Repository) UpdateWageringProgress(ctx context.Context, tx *gorm.DB, b *Bonus) error {
	result := tx.WithContext(ctx).
		Model(&Bonus{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"completed_wagering": b.CompletedWagering,
			"total_wagered":      b.TotalWagered,
			"status":             b.Status,
			"is_withdrawable":    b.IsWithdrawable,
			"updated_at":         gorm.Expr("NOW()"),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update wagering progress: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrBonusNotFound
	}

	return nil
}

func (r *Repository) Activate(ctx context.Context, tx *gorm.DB, b *Bonus) error {
	result := tx.WithContext(ctx).
		Model(&Bonus{}).
		Where("id = ? AND status = ?", b.ID, StatusPendingActivation).
		Updates(map[string]interface{}{
			"amount":           b.Amount,
			"bonus_amount":     b.BonusAmount,
			"remaining_amount": b.RemainingAmount,
			"status":           StatusPendingWagering,
			"expires_at":       b.ExpiresAt,
			"updated_at":       gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to activate bonus: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBonusNotFound
	}
	b.Status = StatusPendingWagering
	return nil
}

func (r *Repository) Withdraw(ctx context.Context, tx *gorm.DB, bonusID string, amount decimal.Decimal) error {
	result := tx.WithContext(ctx).
		Model(&Bonus{}).
		Where("id = ? AND remaining_amount >= ?", bonusID, amount).
		Updates(map[string]interface{}{
			"remaining_amount": gorm.Expr("remaining_amount - ?", amount),
			"withdrawn_amount": gorm.Expr("withdrawn_amount + ?", amount),
			"updated_at":       gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to withdraw from bonus: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrExceedsBonusBalance
	}
	return nil
}

func (r *Repository) CreateBonus(ctx context.Context, tx *gorm.DB, b *Bonus) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("failed to create bonus: %w", err)
	}
	return nil
}

func (r *Repository) GetPromo(ctx context.Context, tx *gorm.DB, id string) (*PromoCode, error) {
	var promo PromoCode
	err := tx.WithContext(ctx).Where("id = ?", id).First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromoNotFound
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	return &promo, nil
}

// GetPromoByCode looks a code up case-insensitively. With lock set the row is
// held until tx ends so usage counters cannot race.
func (r *Repository) GetPromoByCode(ctx context.Context, tx *gorm.DB, code string, lock bool) (*PromoCode, error) {
	q := tx.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var promo PromoCode
	err := q.Where("UPPER(code) = UPPER(?)", code).First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromoNotFound
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	return &promo, nil
}

func (r *Repository) CreatePromo(ctx context.Context, tx *gorm.DB, p *PromoCode) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create promo code: %w", err)
	}
	return nil
}

func (r *Repository) IncrementUses(ctx context.Context, tx *gorm.DB, promoID string) error {
	err := tx.WithContext(ctx).
		Model(&PromoCode{}).
		Where("id = ?", promoID).
		Update("current_uses", gorm.Expr("current_uses + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to count promo code use: %w", err)
	}
	return nil
}

func (r *Repository) HasRedeemed(ctx context.Context, tx *gorm.DB, userID string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&UserPromoCode{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check promo redemption: %w", err)
	}
	return count > 0, nil
}

func (r *Repository) Redeem(ctx context.Context, tx *gorm.DB, userID, promoID string) error {
	link := &UserPromoCode{
		ID:          uuid.New().String(),
		UserID:      userID,
		PromoCodeID: promoID,
		CreatedAt:   time.Now(),
	}
	if err := tx.WithContext(ctx).Create(link).Error; err != nil {
		if storage.IsUniqueViolation(err) {
			return ErrPromoAlreadyRedeemed
		}
		return fmt.Errorf("failed to redeem promo code: %w", err)
	}
	return nil
}

// ReferralsForUser implements commission.ReferralSource.
func (r *Repository) ReferralsForUser(ctx context.Context, tx *gorm.DB, userID string) ([]commission.Referral, error) {
	var refs []commission.Referral
	err := tx.WithContext(ctx).
		Table("user_promo_codes AS upc").
		Select("pc.id AS promo_code_id, pc.assigned_user_id AS influencer_id, pc.commission_percentage AS percentage").
		Joins("JOIN promo_codes pc ON pc.id = upc.promo_code_id").
		Where("upc.user_id = ?", userID).
		Where("pc.assigned_user_id IS NOT NULL AND pc.assigned_user_id <> ''").
		Where("pc.commission_percentage > 0").
		Scan(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load referrals: %w", err)
	}
	return refs, nil
}
