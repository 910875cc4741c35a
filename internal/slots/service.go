package slots

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"casino_wallet/internal/bonus"
	"casino_wallet/internal/clock"
	"casino_wallet/internal/commission"
	"casino_wallet/internal/ledger"
	"casino_wallet/internal/metrics"
	"casino_wallet/internal/notify"
	"casino_wallet/internal/serviceerrs"
)

type SpinRequest struct {
	BetAmount   decimal.Decimal `json:"betAmount"`
	WinAmount   decimal.Decimal `json:"winAmount"`
	ReferenceID string          `json:"referenceId"`
}

type SpinResult struct {
	Success    bool             `json:"success"`
	NewBalance *decimal.Decimal `json:"newBalance,omitempty"`
	BetAmount  decimal.Decimal  `json:"betAmount"`
	WinAmount  decimal.Decimal  `json:"winAmount"`
	Replayed   bool             `json:"replayed,omitempty"`
}

type Service struct {
	ledger      *ledger.Ledger
	tracker     *bonus.Tracker
	commissions *commission.Processor
	publisher   notify.Publisher
	clock       clock.Clock
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewService(
	l *ledger.Ledger,
	tracker *bonus.Tracker,
	commissions *commission.Processor,
	publisher notify.Publisher,
	clk clock.Clock,
	m *metrics.Metrics,
	log *zap.Logger,
) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		ledger:      l,
		tracker:     tracker,
		commissions: commissions,
		publisher:   publisher,
		clock:       clk,
		metrics:     m,
		log:         log,
	}
}

func validateWin(win decimal.Decimal) error {
	if win.IsNegative() {
		return serviceerrs.Invalid("winAmount must not be negative")
	}
	if !win.Equal(win.Round(2)) {
		return serviceerrs.Invalid("winAmount must have at most two decimal places")
	}
	return nil
}

// Spin settles one slot round: the stake is debited, the win credited and the
// stake counted towards bonus wagering, all or nothing.
func (s *Service) Spin(ctx context.Context, userID string, req SpinRequest) (*SpinResult, error) {
	if err := ledger.ValidateAmount(req.BetAmount); err != nil {
		return nil, err
	}
	if err := validateWin(req.WinAmount); err != nil {
		return nil, err
	}
	if err := ledger.ValidateReference(req.ReferenceID); err != nil {
		return nil, err
	}

	var (
		payouts []commission.Payout
		updates []bonus.WageringUpdate
	)
	commit, existing, err := s.ledger.ExecuteOnce(ctx, userID, req.ReferenceID, func(tx *gorm.DB) error {
		if err := s.ledger.EnsureFunds(ctx, tx, userID, req.BetAmount); err != nil {
			return err
		}
		var err error
		payouts, err = s.commissions.RecordWithCommissions(ctx, tx, &ledger.Transaction{
			UserID:      userID,
			Amount:      req.BetAmount,
			Type:        ledger.TypeWithdrawal,
			Status:      ledger.StatusSuccess,
			Category:    ledger.CategorySlots,
			Description: "Slots bet",
			ReferenceID: ledger.Reference(req.ReferenceID),
		})
		if err != nil {
			return err
		}
		if req.WinAmount.IsPositive() {
			err = s.ledger.Record(ctx, tx, &ledger.Transaction{
				UserID:      userID,
				Amount:      req.WinAmount,
				Type:        ledger.TypeDeposit,
				Status:      ledger.StatusSuccess,
				Category:    ledger.CategorySlots,
				Description: "Slots win",
			})
			if err != nil {
				return err
			}
		}
		updates = s.tracker.Track(ctx, tx, userID, req.BetAmount)
		return nil
	})
	s.metrics.Operation("spin", err)
	if err != nil {
		s.ledger.Cache().Invalidate(userID)
		s.log.Warn("spin failed",
			zap.String("user_id", userID),
			zap.String("bet", req.BetAmount.String()),
			zap.Error(err),
		)
		return nil, err
	}

	res := &SpinResult{
		Success:   true,
		BetAmount: req.BetAmount,
		WinAmount: req.WinAmount,
	}
	if existing != nil {
		// the reference sits on the stake row
		if !existing.Matches(ledger.TypeWithdrawal, ledger.CategorySlots, req.BetAmount) {
			return nil, ledger.ErrReferenceReused
		}
		res.Replayed = true
		if balance, err := s.ledger.Balance(ctx, userID); err == nil {
			res.NewBalance = &balance
		}
		s.log.Info("spin replayed", zap.String("user_id", userID), zap.String("transaction_id", existing.ID))
		return res, nil
	}
	balance, err := s.ledger.Committed(ctx, commit, req.WinAmount.Sub(req.BetAmount), commission.Influencers(payouts)...)
	if err != nil {
		s.log.Warn("failed to read balance after commit", zap.String("user_id", userID), zap.Error(err))
		return res, nil
	}
	res.NewBalance = &balance
	events := append([]notify.Event{notify.BalanceChanged(userID, balance, "spin", s.clock.Now())}, bonus.Events(updates)...)
	notify.Emit(ctx, s.publisher, s.log, events...)
	return res, nil
}
