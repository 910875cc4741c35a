package handlers

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"casino_wallet/internal/betting"
	"casino_wallet/internal/bonus"
	"casino_wallet/internal/ledger"
	"casino_wallet/internal/slots"
	"casino_wallet/internal/wallet"
)

type walletMock struct{ mock.Mock }

func (m *walletMock) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *walletMock) ListTransactions(ctx context.Context, userID string, page, pageSize int) (*ledger.Page, error) {
	args := m.Called(ctx, userID, page, pageSize)
	res, _ := args.Get(0).(*ledger.Page)
	return res, args.Error(1)
}

func (m *walletMock) CreateTransaction(ctx context.Context, userID string, req wallet.TransactionRequest) (*wallet.TransactionResponse, error) {
	args := m.Called(ctx, userID, req)
	res, _ := args.Get(0).(*wallet.TransactionResponse)
	return res, args.Error(1)
}

func (m *walletMock) CreateSlotTransaction(ctx context.Context, userID string, req wallet.TransactionRequest) (*wallet.TransactionResponse, error) {
	args := m.Called(ctx, userID, req)
	res, _ := args.Get(0).(*wallet.TransactionResponse)
	return res, args.Error(1)
}

func (m *walletMock) RequestWithdrawal(ctx context.Context, userID string, req wallet.WithdrawalRequest) (*wallet.TransactionResponse, error) {
	args := m.Called(ctx, userID, req)
	res, _ := args.Get(0).(*wallet.TransactionResponse)
	return res, args.Error(1)
}

type slotsMock struct{ mock.Mock }

func (m *slotsMock) Spin(ctx context.Context, userID string, req slots.SpinRequest) (*slots.SpinResult, error) {
	args := m.Called(ctx, userID, req)
	res, _ := args.Get(0).(*slots.SpinResult)
	return res, args.Error(1)
}

type bettingMock struct{ mock.Mock }

func (m *bettingMock) PlaceBet(ctx context.Context, userID string, req betting.PlaceBetRequest) (*betting.PlaceBetResponse, error) {
	args := m.Called(ctx, userID, req)
	res, _ := args.Get(0).(*betting.PlaceBetResponse)
	return res, args.Error(1)
}

func (m *bettingMock) CancelBet(ctx context.Context, userID, betID string) (*betting.CancelBetResponse, error) {
	args := m.Called(ctx, userID, betID)
	res, _ := args.Get(0).(*betting.CancelBetResponse)
	return res, args.Error(1)
}

func (m *bettingMock) SettleOutcome(ctx context.Context, outcomeID string, result betting.Result) (*betting.Settlement, error) {
	args := m.Called(ctx, outcomeID, result)
	res, _ := args.Get(0).(*betting.Settlement)
	return res, args.Error(1)
}

func (m *bettingMock) ListBets(ctx context.Context, userID string) ([]betting.Bet, error) {
	args := m.Called(ctx, userID)
	res, _ := args.Get(0).([]betting.Bet)
	return res, args.Error(1)
}

type bonusMock struct{ mock.Mock }

func (m *bonusMock) Validate(ctx context.Context, userID, code string) (*bonus.PromoSummary, error) {
	args := m.Called(ctx, userID, code)
	res, _ := args.Get(0).(*bonus.PromoSummary)
	return res, args.Error(1)
}

func (m *bonusMock) Apply(ctx context.Context, userID, code string) (*bonus.ApplyResult, error) {
	args := m.Called(ctx, userID, code)
	res, _ := args.Get(0).(*bonus.ApplyResult)
	return res, args.Error(1)
}

func (m *bonusMock) WithdrawBonus(ctx context.Context, userID, bonusID string, amount decimal.Decimal) (*bonus.WithdrawalResult, error) {
	args := m.Called(ctx, userID, bonusID, amount)
	res, _ := args.Get(0).(*bonus.WithdrawalResult)
	return res, args.Error(1)
}

func (m *bonusMock) ListBonuses(ctx context.Context, userID string) ([]bonus.Bonus, error) {
	args := m.Called(ctx, userID)
	res, _ := args.Get(0).([]bonus.Bonus)
	return res, args.Error(1)
}

func (m *bonusMock) WageringProgress(ctx context.Context, userID, bonusID string) (*bonus.WageringProgress, error) {
	args := m.Called(ctx, userID, bonusID)
	res, _ := args.Get(0).(*bonus.WageringProgress)
	return res, args.Error(1)
}
