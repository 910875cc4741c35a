package betting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
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
	"casino_wallet/internal/storage"
)

const listLimit = 100

var (
	ErrBetNotFound     = fmt.Errorf("bet %w", serviceerrs.ErrNotFound)
	ErrOutcomeNotFound = fmt.Errorf("outcome %w", serviceerrs.ErrNotFound)

	ErrOutcomeClosed  = serviceerrs.Invalid("outcome is closed for betting")
	ErrEventStarted   = serviceerrs.Invalid("event has already started")
	ErrOddsChanged    = serviceerrs.Invalid("odds have changed")
	ErrBetSettled     = serviceerrs.Invalid("bet is already settled")
	ErrOutcomeSettled = serviceerrs.Invalid("outcome is already settled")
	ErrInvalidResult  = serviceerrs.Invalid("result must be WON, LOST or VOID")
)

type Service struct {
	ledger      *ledger.Ledger
	repo        *Repository
	tracker     *bonus.Tracker
	commissions *commission.Processor
	publisher   notify.Publisher
	clock       clock.Clock
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewService(
	l *ledger.Ledger,
	repo *Repository,
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
		repo:        repo,
		tracker:     tracker,
		commissions: commissions,
		publisher:   publisher,
		clock:       clk,
		metrics:     m,
		log:         log,
	}
}

// isID reports whether id can name a row; every id column is a UUID.
func isID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// bettable reports why no bet may be placed on or withdrawn from o right now.
func (s *Service) bettable(o *Outcome) error {
	if o.Result != ResultPending {
		return ErrOutcomeClosed
	}
	if o.Event == nil || !o.Event.IsActive {
		return ErrOutcomeClosed
	}
	if !s.clock.Now().Before(o.Event.StartsAt) {
		return ErrEventStarted
	}
	return nil
}

// PlaceBet debits the stake and books the potential win as a pending deposit,
// all in one transaction. The outcome stake, wagering progress and referral
// commissions move with it.
func (s *Service) PlaceBet(ctx context.Context, userID string, req PlaceBetRequest) (*PlaceBetResponse, error) {
	if err := ledger.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.OutcomeID == "" {
		return nil, serviceerrs.Invalid("outcomeId is required")
	}
	if !isID(req.OutcomeID) {
		return nil, ErrOutcomeNotFound
	}
	if !req.Odds.GreaterThan(decimal.NewFromInt(1)) {
		return nil, serviceerrs.Invalid("odds must be greater than 1")
	}

	var (
		bet     Bet
		payouts []commission.Payout
		updates []bonus.WageringUpdate
	)
	commit, err := s.ledger.Execute(ctx, userID, func(tx *gorm.DB) error {
		outcome, err := s.repo.GetOutcome(ctx, tx, req.OutcomeID)
		if err != nil {
			return err
		}
		if err := s.bettable(outcome); err != nil {
			return err
		}
		if !outcome.Odds.Equal(req.Odds) {
			return ErrOddsChanged
		}
		if err := s.ledger.EnsureFunds(ctx, tx, userID, req.Amount); err != nil {
			return err
		}
		if err := s.repo.AddStake(ctx, tx, outcome.ID, req.Amount); err != nil {
			return err
		}

		updates = s.tracker.Track(ctx, tx, userID, req.Amount)

		potentialWin := req.Amount.Mul(outcome.Odds).Round(2)
		stake := &ledger.Transaction{
			UserID:      userID,
			Amount:      req.Amount,
			Type:        ledger.TypeWithdrawal,
			Status:      ledger.StatusSuccess,
			Category:    ledger.CategoryBettingStake,
			Description: fmt.Sprintf("Bet on %s @ %s", outcome.Name, outcome.Odds),
		}
		payouts, err = s.commissions.RecordWithCommissions(ctx, tx, stake)
		if err != nil {
			return err
		}
		win := &ledger.Transaction{
			UserID:      userID,
			Amount:      potentialWin,
			Type:        ledger.TypeDeposit,
			Status:      ledger.StatusPending,
			Category:    ledger.CategoryBettingWin,
			Description: fmt.Sprintf("Potential win on %s", outcome.Name),
		}
		if err := s.ledger.Record(ctx, tx, win); err != nil {
			return err
		}

		bet = Bet{
			UserID:             userID,
			OutcomeID:          outcome.ID,
			Amount:             req.Amount,
			Odds:               outcome.Odds,
			PotentialWin:       potentialWin,
			Status:             BetPending,
			StakeTransactionID: &stake.ID,
			WinTransactionID:   &win.ID,
		}
		return s.repo.CreateBet(ctx, tx, &bet)
	})
	s.metrics.Operation("place_bet", err)
	if err != nil {
		return nil, err
	}

	balance := s.committed(ctx, commit, req.Amount.Neg(), "bet", updates, commission.Influencers(payouts))
	s.log.Info("bet placed",
		zap.String("bet_id", bet.ID),
		zap.String("user_id", userID),
		zap.String("outcome_id", bet.OutcomeID),
		zap.String("amount", bet.Amount.String()),
	)
	return &PlaceBetResponse{Bet: bet, Balance: balance}, nil
}

// CancelBet undoes an open bet before its event starts. The stake and the
// pending win disappear from the ledger together with the commissions paid on
// the stake. Wagering progress already made is kept.
func (s *Service) CancelBet(ctx context.Context, userID, betID string) (*CancelBetResponse, error) {
	if !isID(betID) {
		return nil, ErrBetNotFound
	}

	var (
		refund      decimal.Decimal
		influencers []string
	)
	commit, err := s.ledger.Execute(ctx, userID, func(tx *gorm.DB) error {
		bet, err := s.repo.GetBetForUpdate(ctx, tx, userID, betID)
		if err != nil {
			return err
		}
		if bet.Status != BetPending {
			return ErrBetSettled
		}
		outcome, err := s.repo.GetOutcome(ctx, tx, bet.OutcomeID)
		if err != nil {
			return err
		}
		if outcome.Result != ResultPending {
			return ErrBetSettled
		}
		if err := s.bettable(outcome); err != nil {
			return err
		}
		if err := s.repo.AddStake(ctx, tx, outcome.ID, bet.Amount.Neg()); err != nil {
			return err
		}

		var txIDs []string
		if bet.StakeTransactionID != nil {
			influencers, err = s.commissions.Reverse(ctx, tx, *bet.StakeTransactionID)
			if err != nil {
				return err
			}
			txIDs = append(txIDs, *bet.StakeTransactionID)
		}
		if bet.WinTransactionID != nil {
			txIDs = append(txIDs, *bet.WinTransactionID)
		}
		if err := s.ledger.Repository().Delete(ctx, tx, txIDs...); err != nil {
			return err
		}
		refund = bet.Amount
		return s.repo.DeleteBet(ctx, tx, bet.ID)
	})
	s.metrics.Operation("cancel_bet", err)
	if err != nil {
		return nil, err
	}

	balance := s.committed(ctx, commit, refund, "bet_cancelled", nil, influencers)
	return &CancelBetResponse{BetID: betID, Refund: refund, Balance: balance}, nil
}

// SettleOutcome grades every open bet on an outcome. Won bets have their
// pending win confirmed, lost bets have it cancelled and void bets are
// refunded by cancelling both legs.
func (s *Service) SettleOutcome(ctx context.Context, outcomeID string, result Result) (*Settlement, error) {
	switch result {
	case ResultWon, ResultLost, ResultVoid:
	default:
		return nil, ErrInvalidResult
	}
	if !isID(outcomeID) {
		return nil, ErrOutcomeNotFound
	}

	var (
		settlement *Settlement
		users      []string
	)
	err := storage.WithTx(ctx, s.ledger.DB(), func(tx *gorm.DB) error {
		users = nil
		if err := s.repo.CloseOutcome(ctx, tx, outcomeID, result); err != nil {
			return err
		}
		bets, err := s.repo.LockPendingBets(ctx, tx, outcomeID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		seen := make(map[string]struct{})
		for _, b := range bets {
			if err := s.settleBet(ctx, tx, b, result, now); err != nil {
				return err
			}
			if _, ok := seen[b.UserID]; !ok {
				seen[b.UserID] = struct{}{}
				users = append(users, b.UserID)
			}
		}
		settlement = &Settlement{OutcomeID: outcomeID, Result: result, Settled: len(bets)}
		return nil
	})
	s.metrics.Operation("settle_outcome", err)
	if err != nil {
		return nil, err
	}

	if result != ResultLost && len(users) > 0 {
		s.ledger.Cache().Invalidate(users...)
	}
	for _, userID := range users {
		balance, err := s.ledger.Balance(ctx, userID)
		if err != nil {
			s.log.Warn("failed to load balance after settlement", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		notify.Emit(ctx, s.publisher, s.log, notify.BalanceChanged(userID, balance, "bet_settled", s.clock.Now()))
	}
	s.log.Info("outcome settled",
		zap.String("outcome_id", outcomeID),
		zap.String("result", string(result)),
		zap.Int("bets", settlement.Settled),
	)
	return settlement, nil
}

func (s *Service) settleBet(ctx context.Context, tx *gorm.DB, b Bet, result Result, at time.Time) error {
	repo := s.ledger.Repository()
	status := BetLost
	winStatus := ledger.StatusCancelled
	switch result {
	case ResultWon:
		status, winStatus = BetWon, ledger.StatusSuccess
	case ResultVoid:
		status = BetCancelled
		if b.StakeTransactionID != nil {
			if err := repo.UpdateStatus(ctx, tx, *b.StakeTransactionID, ledger.StatusCancelled); err != nil {
				return err
			}
		}
	}
	if b.WinTransactionID != nil {
		if err := repo.UpdateStatus(ctx, tx, *b.WinTransactionID, winStatus); err != nil {
			return err
		}
	}
	return s.repo.SettleBet(ctx, tx, b.ID, status, at)
}

func (s *Service) ListBets(ctx context.Context, userID string) ([]Bet, error) {
	return s.repo.ListBets(ctx, userID, listLimit)
}

func (s *Service) committed(ctx context.Context, commit ledger.Commit, delta decimal.Decimal, op string, updates []bonus.WageringUpdate, influencers []string) *decimal.Decimal {
	balance, err := s.ledger.Committed(ctx, commit, delta, influencers...)
	if err != nil {
		s.log.Warn("failed to read balance after commit", zap.String("user_id", commit.UserID), zap.Error(err))
		return nil
	}
	events := append([]notify.Event{notify.BalanceChanged(commit.UserID, balance, op, s.clock.Now())}, bonus.Events(updates)...)
	notify.Emit(ctx, s.publisher, s.log, events...)
	return &balance
}
