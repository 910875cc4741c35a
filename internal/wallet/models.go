package wallet

import (
	"github.com/shopspring/decimal"

	"casino_wallet/internal/ledger"
)

// ReferenceID is optional; a repeated request with the same id returns the
// first result instead of writing again.
type TransactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Type        ledger.Type     `json:"type"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ReferenceID string          `json:"referenceId"`
}

type WithdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ReferenceID string          `json:"referenceId"`
}

type TransactionResponse struct {
	Transaction   ledger.Transaction `json:"transaction"`
	Balance       *decimal.Decimal   `json:"balance,omitempty"`
	BonusCredited decimal.Decimal    `json:"bonusCredited"`
	Replayed      bool               `json:"replayed,omitempty"`
}

// userCategories are the categories a client may post directly; the others
// are only written by the operations that own them.
var userCategories = map[string]bool{
	ledger.CategoryTransaction: true,
	ledger.CategorySlots:       true,
}
