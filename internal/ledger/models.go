package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
)

type Status string

const (
	StatusSuccess   Status = "success"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

const (
	CategoryTransaction  = "transaction"
	CategoryBettingStake = "betting-stake"
	CategoryBettingWin   = "betting-win"
	CategorySlots        = "slots"
	CategoryBonus        = "bonus"
	CategoryCommission   = "commission"
)

// Account is the per-user ledger head. It carries no balance; it exists so
// balance-reducing writes for one user can be serialized with a row lock.
type Account struct {
	UserID    string    `gorm:"column:user_id;primaryKey;type:varchar(64)"`
	Version   int64     `gorm:"column:version;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now()"`
}

func (Account) TableName() string { return "ledger_accounts" }

type Transaction struct {
	ID          string          `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	UserID      string          `gorm:"column:user_id;type:varchar(64);not null" json:"userId"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Type        Type            `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Status      Status          `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Category    string          `gorm:"column:category;type:varchar(32);not null" json:"category"`
	Description string          `gorm:"column:description;type:text;not null" json:"description"`
	ReferenceID *string         `gorm:"column:reference_id;type:varchar(128)" json:"referenceId,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null;default:now()" json:"createdAt"`
}

func (Transaction) TableName() string { return "transactions" }

// Matches reports whether t records the same movement as the arguments.
func (t Transaction) Matches(tp Type, category string, amount decimal.Decimal) bool {
	return t.Type == tp && t.Category == category && t.Amount.Equal(amount)
}

type DetailedBalance struct {
	Available  decimal.Decimal `json:"available"`
	NetPending decimal.Decimal `json:"netPending"`
	Effective  decimal.Decimal `json:"effective"`
}

// GroupTotal is the sum of one (status, type) bucket of a user's history.
type GroupTotal struct {
	Status Status          `gorm:"column:status"`
	Type   Type            `gorm:"column:type"`
	Total  decimal.Decimal `gorm:"column:total"`
}

type Page struct {
	Transactions []Transaction   `json:"transactions"`
	Page         int             `json:"page"`
	PageSize     int             `json:"pageSize"`
	Total        int64           `json:"total"`
	Balance      DetailedBalance `json:"balance"`
}
