package slots

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"casino_wallet/internal/bonus"
	"casino_wallet/internal/clock"
	"casino_wallet/internal/commission"
	"casino_wallet/internal/ledger"
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

func setUpSlots(t *testing.T) (*Service, *ledger.Ledger) {
	t.Helper()
	svc, l, _ := setUpSlotsWith(t, func(r *bonus.Repository) bonus.WageringStore { return r })
	return svc, l
}

func setUpSlotsWith(t *testing.T, wagering func(*bonus.Repository) bonus.WageringStore) (*Service, *ledger.Ledger, *bonus.Repository) {
	t.Helper()
	db := storagetest.DB(t)
	lrepo := ledger.NewRepository(db)
	calc := ledger.NewCalculator(db, lrepo)
	l := ledger.New(db, lrepo, calc, ledger.NewBalanceCache(calc, time.Minute, nil, nil))

	brepo := bonus.NewRepository(db)
	proc := commission.NewProcessor(l, brepo, nil, nil)
	tracker := bonus.NewTracker(wagering(brepo), clock.RealClock{}, nil, nil)
	return NewService(l, tracker, proc, nil, nil, nil, nil), l, brepo
}

// failingWagering writes the progress and then fails, leaving a write the
// savepoint has to undo.
type failingWagering struct {
	*bonus.Repository
}

func (f failingWagering) UpdateWageringProgress(ctx context.Context, tx *gorm.DB, b *bonus.Bonus) error {
	if err := f.Repository.UpdateWageringProgress(ctx, tx, b); err != nil {
		return err
	}
	return errors.New("wagering store unavailable")
}

func fund(t *testing.T, l *ledger.Ledger, userID, amount string) {
	t.Helper()
	ctx := context.Background()
	_, err := l.Execute(ctx, userID, func(tx *gorm.DB) error {
		return l.Record(ctx, tx, &ledger.Transaction{
			UserID: userID, Amount: d(amount), Type: ledger.TypeDeposit,
			Status: ledger.StatusSuccess, Category: ledger.CategoryTransaction,
		})
	})
	require.NoError(t, err)
}

func TestSpin(t *testing.T) {
	svc, l := setUpSlots(t)
	ctx := context.Background()
	userID := uuid.NewString()
	fund(t, l, userID, "100")

	res, err := svc.Spin(ctx, userID, SpinRequest{BetAmount: d("10"), WinAmount: d("25.50")})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.NewBalance.Equal(d("115.50")))

	res, err = svc.Spin(ctx, userID, SpinRequest{BetAmount: d("15.50"), WinAmount: decimal.Zero})
	require.NoError(t, err)
	assert.True(t, res.NewBalance.Equal(d("100")))

	page, err := l.History(ctx, userID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total, "deposit, bet, win, bet")
	assert.True(t, page.Balance.Available.Equal(d("100")))
}

func TestSpin_InsufficientFundsRollsBackAndInvalidates(t *testing.T) {
	svc, l := setUpSlots(t)
	ctx := context.Background()
	userID := uuid.NewString()
	fund(t, l, userID, "5")

	cached, err := l.Balance(ctx, userID)
	require.NoError(t, err)
	require.True(t, cached.Equal(d("5")))

	_, err = svc.Spin(ctx, userID, SpinRequest{BetAmount: d("6"), WinAmount: d("100")})
	assert.ErrorIs(t, err, serviceerrs.ErrInsufficientFunds)

	page, err := l.History(ctx, userID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	cached, err = l.Balance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, cached.Equal(d("5")))
}

func TestSpin_Validation(t *testing.T) {
	svc, _ := setUpSlots(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  SpinRequest
	}{
		{name: "zero bet", req: SpinRequest{BetAmount: decimal.Zero}},
		{name: "negative win", req: SpinRequest{BetAmount: d("1"), WinAmount: d("-1")}},
		{name: "sub-cent win", req: SpinRequest{BetAmount: d("1"), WinAmount: d("0.001")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Spin(ctx, uuid.NewString(), tt.req)
			require.Error(t, err)
			assert.True(t, serviceerrs.IsValidation(err))
		})
	}
}

func TestSpin_WageringFailureKeepsSpin(t *testing.T) {
	svc, l, brepo := setUpSlotsWith(t, func(r *bonus.Repository) bonus.WageringStore {
		return failingWagering{Repository: r}
	})
	ctx := context.Background()
	userID := uuid.NewString()
	fund(t, l, userID, "100")

	promo := &bonus.PromoCode{Code: "SPIN" + uuid.NewString()[:8], Percentage: d("50"), IsActive: true}
	require.NoError(t, brepo.CreatePromo(ctx, l.DB(), promo))
	b := &bonus.Bonus{
		UserID: userID, PromoCodeID: promo.ID,
		BonusAmount: d("100"), RemainingAmount: d("100"), WageringRequirement: d("2"),
		Status: bonus.StatusPendingWagering,
	}
	require.NoError(t, brepo.CreateBonus(ctx, l.DB(), b))

	res, err := svc.Spin(ctx, userID, SpinRequest{BetAmount: d("10"), WinAmount: decimal.Zero})
	require.NoError(t, err)
	assert.True(t, res.NewBalance.Equal(d("90")))

	page, err := l.History(ctx, userID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total, "deposit, bet")

	stored, err := brepo.GetBonus(ctx, userID, b.ID)
	require.NoError(t, err)
	assert.True(t, stored.CompletedWagering.IsZero())
	assert.True(t, stored.TotalWagered.IsZero())
}

func TestSpin_ReferenceIDReplays(t *testing.T) {
	svc, l := setUpSlots(t)
	ctx := context.Background()
	userID := uuid.NewString()
	fund(t, l, userID, "100")

	req := SpinRequest{BetAmount: d("10"), WinAmount: d("4"), ReferenceID: "round-42"}
	first, err := svc.Spin(ctx, userID, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.True(t, first.NewBalance.Equal(d("94")))

	again, err := svc.Spin(ctx, userID, req)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.True(t, again.NewBalance.Equal(d("94")))

	page, err := l.History(ctx, userID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total, "deposit, bet, win")

	req.BetAmount = d("11")
	_, err = svc.Spin(ctx, userID, req)
	assert.ErrorIs(t, err, ledger.ErrReferenceReused)
}
