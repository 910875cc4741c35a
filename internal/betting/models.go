package betting

import (
	"time"

	"github.com/shopspring/decimal"
)

type Result string

const (
	ResultPending Result = "PENDING"
	ResultWon     Result = "WON"
	ResultLost    Result = "LOST"
	ResultVoid    Result = "VOID"
)

type BetStatus string

const (
	BetPending   BetStatus = "PENDING"
	BetWon       BetStatus = "WON"
	BetLost      BetStatus = "LOST"
	BetCancelled BetStatus = "CANCELLED"
)

type Event struct {
	ID        string    `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	Name      string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	StartsAt  time.Time `gorm:"column:starts_at;not null" json:"startsAt"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()" json:"createdAt"`
}

func (Event) TableName() string { return "events" }

type Outcome struct {
	ID      string          `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	EventID string          `gorm:"column:event_id;type:uuid;not null" json:"eventId"`
	Name    string          `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Odds    decimal.Decimal `gorm:"column:odds;type:numeric(10,2);not null" json:"odds"`
	Result  Result          `gorm:"column:result;type:varchar(20);not null;default:'PENDING'" json:"result"`
	Stake   decimal.Decimal `gorm:"column:stake;type:numeric(20,2);not null;default:0" json:"stake"`
	Event   *Event          `gorm:"foreignKey:EventID" json:"event,omitempty"`
}

func (Outcome) TableName() string { return "outcomes" }

type Bet struct {
	ID                 string          `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	UserID             string          `gorm:"column:user_id;type:varchar(64);not null" json:"userId"`
	OutcomeID          string          `gorm:"column:outcome_id;type:uuid;not null" json:"outcomeId"`
	Amount             decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Odds               decimal.Decimal `gorm:"column:odds;type:numeric(10,2);not null" json:"odds"`
	PotentialWin       decimal.Decimal `gorm:"column:potential_win;type:numeric(20,2);not null" json:"potentialWin"`
	Status             BetStatus       `gorm:"column:status;type:varchar(20);not null" json:"status"`
	StakeTransactionID *string         `gorm:"column:stake_transaction_id;type:uuid" json:"stakeTransactionId,omitempty"`
	WinTransactionID   *string         `gorm:"column:win_transaction_id;type:uuid" json:"winTransactionId,omitempty"`
	CreatedAt          time.Time       `gorm:"column:created_at;not null;default:now()" json:"createdAt"`
	SettledAt          *time.Time      `gorm:"column:settled_at" json:"settledAt,omitempty"`
}

func (Bet) TableName() string { return "bets" }

type PlaceBetRequest struct {
	OutcomeID string          `json:"outcomeId"`
	Amount    decimal.Decimal `json:"amount"`
	Odds      decimal.Decimal `json:"odds"`
}

type PlaceBetResponse struct {
	Bet     Bet              `json:"bet"`
	Balance *decimal.Decimal `json:"balance,omitempty"`
}

type CancelBetResponse struct {
	BetID   string           `json:"betId"`
	Refund  decimal.Decimal  `json:"refund"`
	Balance *decimal.Decimal `json:"balance,omitempty"`
}

type Settlement struct {
	OutcomeID string `json:"outcomeId"`
	Result    Result `json:"result"`
	Settled   int    `json:"settled"`
}
