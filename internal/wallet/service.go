package wallet

import (
	"context"
	"fmt"

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

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Service struct {
	ledger      *ledger.Ledger
	bonuses     *bonus.Service
	tracker     *bonus.Tracker
	commissions *commission.Processor
	publisher   notify.Publisher
	clock       clock.Clock
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewService(
	l *ledger.Ledger,
	bonuses *bonus.Service,
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
		bonuses:     bonuses,
		tracker:     tracker,
		commissions: commissions,
		publisher:   publisher,
		clock:       clk,
		metrics:     m,
		log:         log,
	}
}

func (s *Service) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return s.ledger.Balance(ctx, userID)
}

func (s *Service) ListTransactions(ctx context.Context, userID string, page, pageSize int) (*ledger.Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return s.ledger.History(ctx, userID, page, pageSize)
}

// CreateTransaction records a client-initiated deposit or withdrawal. Cash
// deposits activate pending deposit bonuses; gameplay withdrawals pay
// referral commissions and count towards bonus wagering.
func (s *Service) CreateTransaction(ctx context.Context, userID string, req TransactionRequest) (*TransactionResponse, error) {
	if err := ledger.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.Type != ledger.TypeDeposit && req.Type != ledger.TypeWithdrawal {
		return nil, serviceerrs.Invalid("type must be deposit or withdrawal")
	}
	if req.Category == "" {
		req.Category = ledger.CategoryTransaction
	}
	if !userCategories[req.Category] {
		return nil, serviceerrs.Invalid(fmt.Sprintf("category %q is not allowed", req.Category))
	}
	if err := ledger.ValidateReference(req.ReferenceID); err != nil {
		return nil, err
	}
	if req.Description == "" {
		req.Description = defaultDescription(req.Type, req.Category)
	}

	var (
		recorded ledger.Transaction
		credited decimal.Decimal
		payouts  []commission.Payout
		updates  []bonus.WageringUpdate
	)
	commit, existing, err := s.ledger.ExecuteOnce(ctx, userID, req.ReferenceID, func(tx *gorm.DB) error {
		credited, payouts, updates = decimal.Zero, nil, nil
		if req.Type == ledger.TypeWithdrawal {
			if err := s.ledger.EnsureFunds(ctx, tx, userID, req.Amount); err != nil {
				return err
			}
		}

		t := &ledger.Transaction{
			UserID:      userID,
			Amount:      req.Amount,
			Type:        req.Type,
			Status:      ledger.StatusSuccess,
			Category:    req.Category,
			Description: req.Description,
			ReferenceID: ledger.Reference(req.ReferenceID),
		}
		var err error
		payouts, err = s.commissions.RecordWithCommissions(ctx, tx, t)
		if err != nil {
			return err
		}
		recorded = *t

		switch {
		case req.Type == ledger.TypeDeposit && req.Category == ledger.CategoryTransaction:
			credited = s.bonuses.ActivateDepositBonuses(ctx, tx, userID, req.Amount)
		case req.Type == ledger.TypeWithdrawal && req.Category == ledger.CategorySlots:
			updates = s.tracker.Track(ctx, tx, userID, req.Amount)
		}
		return nil
	})
	s.metrics.Operation("create_transaction", err)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.replay(ctx, userID, existing, req.Type, req.Category, req.Amount)
	}

	delta := req.Amount.Add(credited)
	if req.Type == ledger.TypeWithdrawal {
		delta = req.Amount.Neg()
	}
	balance := s.committed(ctx, commit, delta, string(req.Type), updates, commission.Influencers(payouts))
	return &TransactionResponse{Transaction: recorded, Balance: balance, BonusCredited: credited}, nil
}

func (s *Service) CreateSlotTransaction(ctx context.Context, userID string, req TransactionRequest) (*TransactionResponse, error) {
	req.Category = ledger.CategorySlots
	return s.CreateTransaction(ctx, userID, req)
}

// RequestWithdrawal records a cash-out and pays the user's referrers their
// withdrawal commission in the same transaction.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, req WithdrawalRequest) (*TransactionResponse, error) {
	if err := ledger.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.Category == "" {
		req.Category = ledger.CategoryTransaction
	}
	if !userCategories[req.Category] {
		return nil, serviceerrs.Invalid(fmt.Sprintf("category %q is not allowed", req.Category))
	}
	if err := ledger.ValidateReference(req.ReferenceID); err != nil {
		return nil, err
	}
	if req.Description == "" {
		req.Description = "Withdrawal request"
	}

	var (
		recorded ledger.Transaction
		payouts  []commission.Payout
	)
	commit, existing, err := s.ledger.ExecuteOnce(ctx, userID, req.ReferenceID, func(tx *gorm.DB) error {
		if err := s.ledger.EnsureFunds(ctx, tx, userID, req.Amount); err != nil {
			return err
		}
		w := &ledger.Transaction{
			UserID:      userID,
			Amount:      req.Amount,
			Type:        ledger.TypeWithdrawal,
			Status:      ledger.StatusSuccess,
			Category:    req.Category,
			Description: req.Description,
			ReferenceID: ledger.Reference(req.ReferenceID),
		}
		if err := s.ledger.Record(ctx, tx, w); err != nil {
			return err
		}
		var err error
		payouts, err = s.commissions.ProcessWithdrawalCommissions(ctx, tx, w)
		if err != nil {
			return err
		}
		recorded = *w
		return nil
	})
	s.metrics.Operation("withdrawal", err)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.replay(ctx, userID, existing, ledger.TypeWithdrawal, req.Category, req.Amount)
	}

	balance := s.committed(ctx, commit, req.Amount.Neg(), "withdrawal", nil, commission.Influencers(payouts))
	s.log.Info("withdrawal processed",
		zap.String("user_id", userID),
		zap.String("transaction_id", recorded.ID),
		zap.String("amount", req.Amount.String()),
		zap.Int("commissions", len(payouts)),
	)
	return &TransactionResponse{Transaction: recorded, Balance: balance}, nil
}

// replay answers a repeated request with the transaction it first recorded.
func (s *Service) replay(ctx context.Context, userID string, existing *ledger.Transaction, tp ledger.Type, category string, amount decimal.Decimal) (*TransactionResponse, error) {
	if !existing.Matches(tp, category, amount) {
		return nil, ledger.ErrReferenceReused
	}
	res := &TransactionResponse{Transaction: *existing, Replayed: true}
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		s.log.Warn("failed to read balance for replay", zap.String("user_id", userID), zap.Error(err))
		return res, nil
	}
	res.Balance = &balance
	s.log.Info("transaction replayed",
		zap.String("user_id", userID),
		zap.String("transaction_id", existing.ID),
		zap.Stringp("reference_id", existing.ReferenceID),
	)
	return res, nil
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

func defaultDescription(tp ledger.Type, category string) string {
	if category == ledger.CategorySlots {
		if tp == ledger.TypeDeposit {
			return "Slots win"
		}
		return "Slots bet"
	}
	if tp == ledger.TypeDeposit {
		return "Deposit"
	}
	return "Withdrawal"
}
