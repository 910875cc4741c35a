package wallet

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino_wallet/internal/bonus"
	"casino_wallet/internal/clock"
	"casino_wallet/internal/commission"
	"casino_wallet/internal/ledger"
	"casino_wallet/internal/notify"
	"casino_wallet/internal/serviceerrs"
	"casino_wallet/internal/storage/storagetest"
)

func TestMain(m *testing.M) {
	code := m.Run()
	storagetest.Teardown()
	os.Exit(code)
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type env struct {
	ledger  *ledger.Ledger
	bonuses *bonus.Service
	repo    *bonus.Repository
	svc     *Service
	hub     *notify.Hub
}

func setUpWallet(t *testing.T) env {
	t.Helper()
	db := storagetest.DB(t)
	lrepo := ledger.NewRepository(db)
	calc := ledger.NewCalculator(db, lrepo)
	l := ledger.New(db, lrepo, calc, ledger.NewBalanceCache(calc, time.Minute, nil, nil))

	clk := clock.RealClock{}
	hub := notify.NewHub()
	repo := bonus.NewRepository(db)
	proc := commission.NewProcessor(l, repo, nil, nil)
	bonuses := bonus.NewService(l, repo, proc, hub, clk, nil, nil)
	tracker := bonus.NewTracker(repo, clk, nil, nil)
	return env{
		ledger:  l,
		bonuses: bonuses,
		repo:    repo,
		svc:     NewService(l, bonuses, tracker, proc, hub, clk, nil, nil),
		hub:     hub,
	}
}

func (e env) deposit(t *testing.T, userID, amount string) *TransactionResponse {
	t.Helper()
	res, err := e.svc.CreateTransaction(context.Background(), userID, TransactionRequest{
		Amount: d(amount), Type: ledger.TypeDeposit,
	})
	require.NoError(t, err)
	return res
}

func (e env) referredUser(t *testing.T, promo bonus.PromoCode) (userID, influencer string) {
	t.Helper()
	userID, influencer = uuid.NewString(), uuid.NewString()
	promo.Code = "REF" + strings.ToUpper(uuid.NewString()[:8])
	promo.AssignedUserID = &influencer
	promo.IsActive = true
	require.NoError(t, e.repo.CreatePromo(context.Background(), e.ledger.DB(), &promo))
	_, err := e.bonuses.Apply(context.Background(), userID, promo.Code)
	require.NoError(t, err)
	return userID, influencer
}

func (e env) available(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	b, err := e.ledger.Detailed(context.Background(), userID)
	require.NoError(t, err)
	return b.Available
}

func TestService_DepositAndWithdraw(t *testing.T) {
	e := setUpWallet(t)
	ctx := context.Background()
	userID := uuid.NewString()

	res := e.deposit(t, userID, "100")
	assert.True(t, res.Balance.Equal(d("100")))
	assert.Equal(t, ledger.CategoryTransaction, res.Transaction.Category)
	assert.Equal(t, "Deposit", res.Transaction.Description)

	res, err := e.svc.CreateTransaction(ctx, userID, TransactionRequest{
		Amount: d("40"), Type: ledger.TypeWithdrawal, Description: "atm",
	})
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(d("60")))

	balance, err := e.svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("60")))

	_, err = e.svc.CreateTransaction(ctx, userID, TransactionRequest{
		Amount: d("60.01"), Type: ledger.TypeWithdrawal,
	})
	assert.ErrorIs(t, err, serviceerrs.ErrInsufficientFunds)

	page, err := e.svc.ListTransactions(ctx, userID, 1, 0)
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 2)
	assert.Equal(t, DefaultPageSize, page.PageSize)
	assert.True(t, page.Balance.Available.Equal(d("60")))
}

func TestService_CreateTransactionValidation(t *testing.T) {
	e := setUpWallet(t)
	ctx := context.Background()
	userID := uuid.NewString()

	tests := []struct {
		name string
		req  TransactionRequest
	}{
		{name: "zero amount", req: TransactionRequest{Amount: decimal.Zero, Type: ledger.TypeDeposit}},
		{name: "negative amount", req: TransactionRequest{Amount: d("-5"), Type: ledger.TypeDeposit}},
		{name: "sub-cent amount", req: TransactionRequest{Amount: d("1.001"), Type: ledger.TypeDeposit}},
		{name: "unknown type", req: TransactionRequest{Amount: d("5"), Type: "transfer"}},
		{name: "reserved category", req: TransactionRequest{Amount: d("5"), Type: ledger.TypeDeposit, Category: ledger.CategoryCommission}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.CreateTransaction(ctx, userID, tt.req)
			require.Error(t, err)
			assert.True(t, serviceerrs.IsValidation(err), "got %v", err)
		})
	}
	assert.True(t, e.available(t, userID).IsZero())
}

func TestService_DepositActivatesBonus(t *testing.T) {
	e := setUpWallet(t)
	userID, _ := e.referredUser(t, bonus.PromoCode{
		Percentage: d("50"), MaxBonus: d("500"), MinDeposit: d("200"), WageringRequirement: d("3"),
	})

	res := e.deposit(t, userID, "1000")
	assert.True(t, res.BonusCredited.Equal(d("500")))
	assert.True(t, res.Balance.Equal(d("1500")))
	assert.True(t, e.available(t, userID).Equal(d("1500")))
}

func TestService_RequestWithdrawalPaysCommission(t *testing.T) {
	e := setUpWallet(t)
	ctx := context.Background()
	userID, influencer := e.referredUser(t, bonus.PromoCode{
		Percentage: d("10"), MinDeposit: d("5000"), CommissionPercentage: d("10"),
	})
	e.deposit(t, userID, "1000")

	res, err := e.svc.RequestWithdrawal(ctx, userID, WithdrawalRequest{Amount: d("1000")})
	require.NoError(t, err)
	assert.True(t, res.Transaction.Amount.Equal(d("1000")))
	assert.Equal(t, ledger.TypeWithdrawal, res.Transaction.Type)
	assert.Equal(t, ledger.StatusSuccess, res.Transaction.Status)
	assert.True(t, res.Balance.IsZero())

	assert.True(t, e.available(t, influencer).Equal(d("100")))
	var earnings []commission.InfluencerEarning
	require.NoError(t, e.ledger.DB().Where("withdrawal_id = ?", res.Transaction.ID).Find(&earnings).Error)
	require.Len(t, earnings, 1)
	assert.Equal(t, commission.EarningWithdrawal, earnings[0].Type)

	_, err = e.svc.RequestWithdrawal(ctx, userID, WithdrawalRequest{Amount: d("1")})
	assert.ErrorIs(t, err, serviceerrs.ErrInsufficientFunds)
}

func TestService_SlotTransactionPaysCommissionAndTracksWagering(t *testing.T) {
	e := setUpWallet(t)
	ctx := context.Background()
	userID, influencer := e.referredUser(t, bonus.PromoCode{
		FixedAmount: d("100"), WageringRequirement: d("2"), CommissionPercentage: d("5"),
	})

	events, unsub := e.hub.Subscribe(userID)
	defer unsub()

	res, err := e.svc.CreateSlotTransaction(ctx, userID, TransactionRequest{
		Amount: d("40"), Type: ledger.TypeWithdrawal,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.CategorySlots, res.Transaction.Category)
	assert.True(t, res.Balance.Equal(d("60")))
	assert.True(t, e.available(t, influencer).Equal(d("2")))

	bonuses, err := e.bonuses.ListBonuses(ctx, userID)
	require.NoError(t, err)
	require.Len(t, bonuses, 1)
	assert.True(t, bonuses[0].CompletedWagering.Equal(d("40")))

	var types []string
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
	assert.Equal(t, []string{notify.EventBalance, notify.EventWagering}, types)
}

func TestService_ConcurrentWithdrawals(t *testing.T) {
	e := setUpWallet(t)
	ctx := context.Background()
	userID := uuid.NewString()
	e.deposit(t, userID, "50")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount, failCount := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.RequestWithdrawal(ctx, userID, WithdrawalRequest{Amount: d("10")})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, serviceerrs.ErrInsufficientFunds)
				failCount++
				return
			}
			successCount++
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, successCount)
	assert.Equal(t, 5, failCount)
	assert.True(t, e.available(t, userID).IsZero())

	balance, err := e.svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "cached balance drifted to %s", balance)
}

func TestService_ReferenceIDReplaysFirstResult(t *testing.T) {
	e := setUpWallet(t)
	ctx := context.Background()
	userID := uuid.NewString()
	e.deposit(t, userID, "100")

	req := TransactionRequest{Amount: d("30"), Type: ledger.TypeWithdrawal, ReferenceID: "atm-7"}
	first, err := e.svc.CreateTransaction(ctx, userID, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.True(t, first.Balance.Equal(d("70")))

	again, err := e.svc.CreateTransaction(ctx, userID, req)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Transaction.ID, again.Transaction.ID)
	assert.True(t, again.Balance.Equal(d("70")))
	assert.True(t, e.available(t, userID).Equal(d("70")))

	// the same id on another user is independent
	other := uuid.NewString()
	e.deposit(t, other, "50")
	res, err := e.svc.CreateTransaction(ctx, other, req)
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	req.Amount = d("31")
	_, err = e.svc.CreateTransaction(ctx, userID, req)
	assert.ErrorIs(t, err, ledger.ErrReferenceReused)
	assert.ErrorIs(t, err, serviceerrs.ErrConflict)

	_, err = e.svc.RequestWithdrawal(ctx, userID, WithdrawalRequest{Amount: d("30"), ReferenceID: "atm-7"})
	require.NoError(t, err, "same movement under the same id")

	_, err = e.svc.CreateTransaction(ctx, userID, TransactionRequest{
		Amount: d("1"), Type: ledger.TypeDeposit, ReferenceID: strings.Repeat("x", ledger.MaxReferenceLength+1),
	})
	require.Error(t, err)
	assert.True(t, serviceerrs.IsValidation(err))

	page, err := e.svc.ListTransactions(ctx, userID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
}
