package bonus

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPendingActivation Status = "PENDING_ACTIVATION"
	StatusPendingWagering   Status = "PENDING_WAGERING"
	StatusCompleted         Status = "COMPLETED"
)

type PromoCode struct {
	ID                   string          `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	Code                 string          `gorm:"column:code;type:varchar(64);not null;unique" json:"code"`
	Percentage           decimal.Decimal `gorm:"column:percentage;type:numeric(7,2);not null;default:0" json:"percentage"`
	MaxBonus             decimal.Decimal `gorm:"column:max_bonus;type:numeric(20,2);not null;default:0" json:"maxBonus"`
	MinDeposit           decimal.Decimal `gorm:"column:min_deposit;type:numeric(20,2);not null;default:0" json:"minDeposit"`
	FixedAmount          decimal.Decimal `gorm:"column:fixed_amount;type:numeric(20,2);not null;default:0" json:"fixedAmount"`
	WageringRequirement  decimal.Decimal `gorm:"column:wagering_requirement;type:numeric(10,2);not null;default:0" json:"wageringRequirement"`
	ValidDays            int             `gorm:"column:valid_days;not null;default:0" json:"validDays"`
	AssignedUserID       *string         `gorm:"column:assigned_user_id;type:varchar(64)" json:"-"`
	CommissionPercentage decimal.Decimal `gorm:"column:commission_percentage;type:numeric(7,2);not null;default:0" json:"-"`
	MaxUses              int             `gorm:"column:max_uses;not null;default:0" json:"maxUses"`
	CurrentUses          int             `gorm:"column:current_uses;not null;default:0" json:"currentUses"`
	IsActive             bool            `gorm:"column:is_active;not null;default:true" json:"isActive"`
	ExpiresAt            *time.Time      `gorm:"column:expires_at" json:"expiresAt,omitempty"`
	CreatedAt            time.Time       `gorm:"column:created_at;not null;default:now()" json:"createdAt"`
}

func (PromoCode) TableName() string { return "promo_codes" }

func (p PromoCode) HasDepositMatch() bool { return p.Percentage.IsPositive() }

func (p PromoCode) HasFixedAmount() bool { return p.FixedAmount.IsPositive() }

// UserPromoCode records the single promo code a user redeemed.
type UserPromoCode struct {
	ID          string    `gorm:"column:id;primaryKey;type:uuid"`
	UserID      string    `gorm:"column:user_id;type:varchar(64);not null;unique"`
	PromoCodeID string    `gorm:"column:promo_code_id;type:uuid;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;default:now()"`
}

func (UserPromoCode) TableName() string { return "user_promo_codes" }

type Bonus struct {
	ID                  string          `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	UserID              string          `gorm:"column:user_id;type:varchar(64);not null" json:"userId"`
	PromoCodeID         string          `gorm:"column:promo_code_id;type:uuid;not null" json:"promoCodeId"`
	Amount              decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null;default:0" json:"amount"`
	BonusAmount         decimal.Decimal `gorm:"column:bonus_amount;type:numeric(20,2);not null;default:0" json:"bonusAmount"`
	RemainingAmount     decimal.Decimal `gorm:"column:remaining_amount;type:numeric(20,2);not null;default:0" json:"remainingAmount"`
	WageringRequirement decimal.Decimal `gorm:"column:wagering_requirement;type:numeric(10,2);not null;default:0" json:"wageringRequirement"`
	TotalWagered        decimal.Decimal `gorm:"column:total_wagered;type:numeric(20,2);not null;default:0" json:"totalWagered"`
	CompletedWagering   decimal.Decimal `gorm:"column:completed_wagering;type:numeric(20,2);not null;default:0" json:"completedWagering"`
	WithdrawnAmount     decimal.Decimal `gorm:"column:withdrawn_amount;type:numeric(20,2);not null;default:0" json:"withdrawnAmount"`
	FreeSpinsWinnings   decimal.Decimal `gorm:"column:free_spins_winnings;type:numeric(20,2);not null;default:0" json:"freeSpinsWinnings"`
	Status              Status          `gorm:"column:status;type:varchar(32);not null" json:"status"`
	IsWithdrawable      bool            `gorm:"column:is_withdrawable;not null;default:false" json:"isWithdrawable"`
	ExpiresAt           *time.Time      `gorm:"column:expires_at" json:"expiresAt,omitempty"`
	CreatedAt           time.Time       `gorm:"column:created_at;not null;default:now()" json:"createdAt"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;not null;default:now()" json:"updatedAt"`
}

func (Bonus) TableName() string { return "bonuses" }

// RequiredWagering is the total stake needed before the bonus completes.
func (b Bonus) RequiredWagering() decimal.Decimal {
	return b.BonusAmount.Mul(b.WageringRequirement)
}

type WageringProgress struct {
	BonusID            string          `json:"bonusId"`
	RequiredWagering   decimal.Decimal `json:"requiredWagering"`
	CompletedWagering  decimal.Decimal `json:"completedWagering"`
	TotalWagered       decimal.Decimal `json:"totalWagered"`
	PercentageComplete float64         `json:"percentageComplete"`
	Completed          bool            `json:"completed"`
}

type WageringUpdate struct {
	BonusID           string          `json:"bonusId"`
	UserID            string          `json:"userId"`
	CompletedWagering decimal.Decimal `json:"completedWagering"`
	RequiredWagering  decimal.Decimal `json:"requiredWagering"`
	Completed         bool            `json:"completed"`
	Timestamp         time.Time       `json:"timestamp"`
}

// PromoSummary is what a user sees before redeeming a code.
type PromoSummary struct {
	Code                string          `json:"code"`
	Percentage          decimal.Decimal `json:"percentage"`
	MaxBonus            decimal.Decimal `json:"maxBonus"`
	MinDeposit          decimal.Decimal `json:"minDeposit"`
	FixedAmount         decimal.Decimal `json:"fixedAmount"`
	WageringRequirement decimal.Decimal `json:"wageringRequirement"`
	ValidDays           int             `json:"validDays"`
	ExpiresAt           *time.Time      `json:"expiresAt,omitempty"`
}

type ApplyResult struct {
	Promo   PromoSummary     `json:"promo"`
	Bonuses []Bonus          `json:"bonuses"`
	Balance *decimal.Decimal `json:"balance,omitempty"`
}

type WithdrawalResult struct {
	TransactionID string           `json:"transactionId"`
	Amount        decimal.Decimal  `json:"amount"`
	Remaining     decimal.Decimal  `json:"remainingAmount"`
	Balance       *decimal.Decimal `json:"balance,omitempty"`
}
