package bonus

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"casino_wallet/internal/clock"
	"casino_wallet/internal/commission"
	"casino_wallet/internal/ledger"
	"casino_wallet/internal/metrics"
	"casino_wallet/internal/notify"
	"casino_wallet/internal/serviceerrs"
)

// Service runs the promo code lifecycle: validation, redemption, deposit
// activation and withdrawals from completed bonuses.
type Service struct {
	ledger      *ledger.Ledger
	repo        *Repository
	commissions *commission.Processor
	publisher   notify.Publisher
	clock       clock.Clock
	metrics     *metrics.Metrics
	log         *zap.Logger
}

func NewService(
	l *ledger.Ledger,
	repo *Repository,
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
		commissions: commissions,
		publisher:   publisher,
		clock:       clk,
		metrics:     m,
		log:         log,
	}
}

func normalizeCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", serviceerrs.Invalid("promo code is required")
	}
	return code, nil
}

func (s *Service) checkRedeemable(ctx context.Context, tx *gorm.DB, userID string, p *PromoCode) error {
	if err := CheckUsable(*p, s.clock.Now()); err != nil {
		return err
	}
	if p.AssignedUserID != nil && *p.AssignedUserID == userID {
		return ErrOwnPromoCode
	}
	redeemed, err := s.repo.HasRedeemed(ctx, tx, userID)
	if err != nil {
		return err
	}
	if redeemed {
		return ErrPromoAlreadyRedeemed
	}
	return nil
}

func (s *Service) Validate(ctx context.Context, userID, code string) (*PromoSummary, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}
	promo, err := s.repo.GetPromoByCode(ctx, s.ledger.DB(), code, false)
	if err != nil {
		return nil, err
	}
	if err := s.checkRedeemable(ctx, s.ledger.DB(), userID, promo); err != nil {
		return nil, err
	}
	summary := summarize(*promo)
	return &summary, nil
}

// Apply redeems code for userID. A deposit-match part waits for a qualifying
// deposit; a fixed part is credited and starts wagering right away.
func (s *Service) Apply(ctx context.Context, userID, code string) (*ApplyResult, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}

	var result *ApplyResult
	credited := decimal.Zero
	commit, err := s.ledger.Execute(ctx, userID, func(tx *gorm.DB) error {
		credited = decimal.Zero
		promo, err := s.repo.GetPromoByCode(ctx, tx, code, true)
		if err != nil {
			return err
		}
		if err := s.checkRedeemable(ctx, tx, userID, promo); err != nil {
			return err
		}
		if err := s.repo.Redeem(ctx, tx, userID, promo.ID); err != nil {
			return err
		}
		if err := s.repo.IncrementUses(ctx, tx, promo.ID); err != nil {
			return err
		}

		var bonuses []Bonus
		if promo.HasDepositMatch() {
			b := Bonus{
				UserID:              userID,
				PromoCodeID:         promo.ID,
				WageringRequirement: promo.WageringRequirement,
				Status:              StatusPendingActivation,
			}
			if err := s.repo.CreateBonus(ctx, tx, &b); err != nil {
				return err
			}
			bonuses = append(bonuses, b)
		}
		if promo.HasFixedAmount() {
			b := Bonus{
				UserID:              userID,
				PromoCodeID:         promo.ID,
				BonusAmount:         promo.FixedAmount,
				RemainingAmount:     promo.FixedAmount,
				WageringRequirement: promo.WageringRequirement,
				Status:              StatusPendingWagering,
				ExpiresAt:           expiry(promo.ValidDays, s.clock.Now()),
			}
			if err := s.repo.CreateBonus(ctx, tx, &b); err != nil {
				return err
			}
			err := s.ledger.Record(ctx, tx, &ledger.Transaction{
				UserID:      userID,
				Amount:      promo.FixedAmount,
				Type:        ledger.TypeDeposit,
				Status:      ledger.StatusSuccess,
				Category:    ledger.CategoryBonus,
				Description: fmt.Sprintf("Promo code %s bonus", promo.Code),
			})
			if err != nil {
				return err
			}
			credited = promo.FixedAmount
			bonuses = append(bonuses, b)
		}

		result = &ApplyResult{Promo: summarize(*promo), Bonuses: bonuses}
		return nil
	})
	s.metrics.Operation("apply_promo", err)
	if err != nil {
		return nil, err
	}

	result.Balance = s.committed(ctx, commit, credited, "promo")
	s.log.Info("promo code redeemed",
		zap.String("user_id", userID),
		zap.String("code", result.Promo.Code),
		zap.Int("bonuses", len(result.Bonuses)),
	)
	return result, nil
}

// ActivateDepositBonuses activates the user's pending deposit-match bonuses
// that deposit qualifies for and credits them inside tx. It runs under a
// savepoint: on failure nothing is credited and the deposit itself proceeds.
func (s *Service) ActivateDepositBonuses(ctx context.Context, tx *gorm.DB, userID string, deposit decimal.Decimal) decimal.Decimal {
	credited := decimal.Zero
	err := tx.Transaction(func(sp *gorm.DB) error {
		credited = decimal.Zero
		pending, err := s.repo.LockPendingActivation(ctx, sp, userID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		for i := range pending {
			b := pending[i]
			promo, err := s.repo.GetPromo(ctx, sp, b.PromoCodeID)
			if err != nil {
				return err
			}
			amount, ok := DepositBonus(*promo, deposit)
			if !ok {
				continue
			}

			b.Amount = deposit
			b.BonusAmount = amount
			b.RemainingAmount = amount
			b.ExpiresAt = expiry(promo.ValidDays, now)
			if err := s.repo.Activate(ctx, sp, &b); err != nil {
				return err
			}
			err = s.ledger.Record(ctx, sp, &ledger.Transaction{
				UserID:      userID,
				Amount:      amount,
				Type:        ledger.TypeDeposit,
				Status:      ledger.StatusSuccess,
				Category:    ledger.CategoryBonus,
				Description: fmt.Sprintf("Deposit bonus for promo code %s", promo.Code),
			})
			if err != nil {
				return err
			}
			credited = credited.Add(amount)
			s.log.Info("deposit bonus activated",
				zap.String("bonus_id", b.ID),
				zap.String("user_id", userID),
				zap.String("bonus_amount", amount.String()),
			)
		}
		return nil
	})
	if err != nil {
		s.log.Error("failed to activate deposit bonus",
			zap.String("user_id", userID),
			zap.String("deposit", deposit.String()),
			zap.Error(err),
		)
		return decimal.Zero
	}
	return credited
}

// WithdrawBonus moves amount out of a completed bonus as a cash-out.
func (s *Service) WithdrawBonus(ctx context.Context, userID, bonusID string, amount decimal.Decimal) (*WithdrawalResult, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if bonusID == "" {
		return nil, serviceerrs.Invalid("bonusId is required")
	}
	if !isID(bonusID) {
		return nil, ErrBonusNotFound
	}

	var result *WithdrawalResult
	var payouts []commission.Payout
	commit, err := s.ledger.Execute(ctx, userID, func(tx *gorm.DB) error {
		b, err := s.repo.GetBonusForUpdate(ctx, tx, userID, bonusID)
		if err != nil {
			return err
		}
		if b.Status != StatusCompleted || !b.IsWithdrawable {
			return ErrBonusNotWithdrawable
		}
		if amount.GreaterThan(b.RemainingAmount) {
			return ErrExceedsBonusBalance
		}
		if err := s.ledger.EnsureFunds(ctx, tx, userID, amount); err != nil {
			return err
		}
		if err := s.repo.Withdraw(ctx, tx, b.ID, amount); err != nil {
			return err
		}

		w := &ledger.Transaction{
			UserID:      userID,
			Amount:      amount,
			Type:        ledger.TypeWithdrawal,
			Status:      ledger.StatusSuccess,
			Category:    ledger.CategoryTransaction,
			Description: "Bonus withdrawal",
		}
		if err := s.ledger.Record(ctx, tx, w); err != nil {
			return err
		}
		payouts, err = s.commissions.ProcessWithdrawalCommissions(ctx, tx, w)
		if err != nil {
			return err
		}

		result = &WithdrawalResult{
			TransactionID: w.ID,
			Amount:        amount,
			Remaining:     b.RemainingAmount.Sub(amount),
		}
		return nil
	})
	s.metrics.Operation("bonus_withdrawal", err)
	if err != nil {
		return nil, err
	}

	result.Balance = s.committed(ctx, commit, amount.Neg(), "bonus_withdrawal", commission.Influencers(payouts)...)
	return result, nil
}

func isID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Service) ListBonuses(ctx context.Context, userID string) ([]Bonus, error) {
	return s.repo.ListBonuses(ctx, userID)
}

func (s *Service) WageringProgress(ctx context.Context, userID, bonusID string) (*WageringProgress, error) {
	if !isID(bonusID) {
		return nil, ErrBonusNotFound
	}
	b, err := s.repo.GetBonus(ctx, userID, bonusID)
	if err != nil {
		return nil, err
	}
	progress := Progress(*b)
	return &progress, nil
}

func (s *Service) committed(ctx context.Context, commit ledger.Commit, delta decimal.Decimal, op string, others ...string) *decimal.Decimal {
	balance, err := s.ledger.Committed(ctx, commit, delta, others...)
	if err != nil {
		s.log.Warn("failed to read balance after commit", zap.String("user_id", commit.UserID), zap.Error(err))
		return nil
	}
	notify.Emit(ctx, s.publisher, s.log, notify.BalanceChanged(commit.UserID, balance, op, s.clock.Now()))
	return &balance
}
