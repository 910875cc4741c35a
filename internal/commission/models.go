package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

type EarningType string

const (
	EarningGameplay   EarningType = "gameplay"
	EarningWithdrawal EarningType = "withdrawal"
)

// InfluencerEarning is the append-only audit row written for every payout.
// WithdrawalID is the source transaction that triggered it.
type InfluencerEarning struct {
	ID                      string          `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	Amount                  decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Type                    EarningType     `gorm:"column:type;type:varchar(20);not null" json:"type"`
	InfluencerID            string          `gorm:"column:influencer_id;type:varchar(64);not null" json:"influencerId"`
	SourceUserID            string          `gorm:"column:source_user_id;type:varchar(64);not null" json:"sourceUserId"`
	WithdrawalID            string          `gorm:"column:withdrawal_id;type:uuid;not null" json:"withdrawalId"`
	PromoCodeID             string          `gorm:"column:promo_code_id;type:uuid;not null" json:"promoCodeId"`
	CommissionTransactionID string          `gorm:"column:commission_transaction_id;type:uuid;not null" json:"commissionTransactionId"`
	CreatedAt               time.Time       `gorm:"column:created_at;not null;default:now()" json:"createdAt"`
}

func (InfluencerEarning) TableName() string { return "influencer_earnings" }

// Referral links a user to the influencer behind a promo code they redeemed.
type Referral struct {
	PromoCodeID  string
	InfluencerID string
	Percentage   decimal.Decimal
}

// Payout describes one commission credited while processing a transaction.
type Payout struct {
	InfluencerID  string
	Amount        decimal.Decimal
	EarningID     string
	TransactionID string
}
