package commission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"casino_wallet/internal/ledger"
	"casino_wallet/internal/metrics"
	"casino_wallet/internal/serviceerrs"
)

var (
	ErrNotWithdrawal   = errors.New("commissions are only paid on withdrawals")
	ErrCommissionSpent = serviceerrs.Invalid("referral commission on this stake was already spent")
)

var hundred = decimal.NewFromInt(100)

type ReferralSource interface {
	ReferralsForUser(ctx context.Context, tx *gorm.DB, userID string) ([]Referral, error)
}

// Processor credits referral commissions inside the caller's transaction.
// Any failure is returned so the whole operation rolls back.
type Processor struct {
	ledger    *ledger.Ledger
	referrals ReferralSource
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewProcessor(l *ledger.Ledger, referrals ReferralSource, m *metrics.Metrics, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{ledger: l, referrals: referrals, metrics: m, log: log}
}

// Compute returns amount*percentage/100 rounded to cents.
func Compute(amount, percentage decimal.Decimal) decimal.Decimal {
	return amount.Mul(percentage).Div(hundred).Round(2)
}

// RecordWithCommissions writes t and, for gameplay withdrawals, pays the
// user's referrers.
func (p *Processor) RecordWithCommissions(ctx context.Context, tx *gorm.DB, t *ledger.Transaction) ([]Payout, error) {
	if err := p.ledger.Record(ctx, tx, t); err != nil {
		return nil, err
	}
	if t.Type != ledger.TypeWithdrawal || t.Category == ledger.CategoryTransaction {
		return nil, nil
	}
	return p.fanOut(ctx, tx, t, EarningGameplay)
}

// ProcessWithdrawalCommissions pays referrers for an already recorded cash-out.
func (p *Processor) ProcessWithdrawalCommissions(ctx context.Context, tx *gorm.DB, withdrawal *ledger.Transaction) ([]Payout, error) {
	if withdrawal.Type != ledger.TypeWithdrawal {
		return nil, ErrNotWithdrawal
	}
	return p.fanOut(ctx, tx, withdrawal, EarningWithdrawal)
}

func (p *Processor) fanOut(ctx context.Context, tx *gorm.DB, source *ledger.Transaction, kind EarningType) ([]Payout, error) {
	refs, err := p.referrals.ReferralsForUser(ctx, tx, source.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load referrals: %w", err)
	}

	var payouts []Payout
	for _, ref := range refs {
		if ref.InfluencerID == "" || ref.InfluencerID == source.UserID {
			continue
		}
		amount := Compute(source.Amount, ref.Percentage)
		if !amount.IsPositive() {
			continue
		}

		credit := &ledger.Transaction{
			UserID:      ref.InfluencerID,
			Amount:      amount,
			Type:        ledger.TypeDeposit,
			Status:      ledger.StatusSuccess,
			Category:    ledger.CategoryCommission,
			Description: fmt.Sprintf("Commission from %s (%s)", source.UserID, kind),
		}
		if err := p.ledger.Record(ctx, tx, credit); err != nil {
			return nil, fmt.Errorf("failed to credit commission: %w", err)
		}

		earning := &InfluencerEarning{
			ID:                      uuid.New().String(),
			Amount:                  amount,
			Type:                    kind,
			InfluencerID:            ref.InfluencerID,
			SourceUserID:            source.UserID,
			WithdrawalID:            source.ID,
			PromoCodeID:             ref.PromoCodeID,
			CommissionTransactionID: credit.ID,
			CreatedAt:               time.Now(),
		}
		if err := tx.WithContext(ctx).Create(earning).Error; err != nil {
			return nil, fmt.Errorf("failed to create influencer earning: %w", err)
		}

		payouts = append(payouts, Payout{
			InfluencerID:  ref.InfluencerID,
			Amount:        amount,
			EarningID:     earning.ID,
			TransactionID: credit.ID,
		})
		p.metrics.CommissionPaid(string(kind))
		p.log.Info("commission credited",
			zap.String("influencer_id", ref.InfluencerID),
			zap.String("source_user_id", source.UserID),
			zap.String("source_transaction_id", source.ID),
			zap.String("amount", amount.String()),
			zap.String("type", string(kind)),
		)
	}
	return payouts, nil
}

// Reverse removes the earnings and credits tied to sourceTxID and returns the
// influencers whose balance changed. It fails with ErrCommissionSpent when an
// influencer's available balance no longer covers the credits.
func (p *Processor) Reverse(ctx context.Context, tx *gorm.DB, sourceTxID string) ([]string, error) {
	var earnings []InfluencerEarning
	err := tx.WithContext(ctx).
		Where("withdrawal_id = ?", sourceTxID).
		Find(&earnings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load influencer earnings: %w", err)
	}
	if len(earnings) == 0 {
		return nil, nil
	}

	txIDs := make([]string, 0, len(earnings))
	owed := make(map[string]decimal.Decimal, len(earnings))
	for _, e := range earnings {
		txIDs = append(txIDs, e.CommissionTransactionID)
		owed[e.InfluencerID] = owed[e.InfluencerID].Add(e.Amount)
	}
	influencers := make([]string, 0, len(owed))
	for id := range owed {
		influencers = append(influencers, id)
	}
	sort.Strings(influencers)

	// influencer heads are locked in id order
	for _, id := range influencers {
		if _, err := p.ledger.Repository().LockAccount(ctx, tx, id); err != nil {
			return nil, err
		}
		err := p.ledger.EnsureFunds(ctx, tx, id, owed[id])
		if errors.Is(err, serviceerrs.ErrInsufficientFunds) {
			p.log.Warn("commission already spent",
				zap.String("influencer_id", id),
				zap.String("source_transaction_id", sourceTxID),
				zap.String("amount", owed[id].String()),
			)
			return nil, ErrCommissionSpent
		}
		if err != nil {
			return nil, err
		}
	}

	err = tx.WithContext(ctx).
		Where("withdrawal_id = ?", sourceTxID).
		Delete(&InfluencerEarning{}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to delete influencer earnings: %w", err)
	}
	if err := p.ledger.Repository().Delete(ctx, tx, txIDs...); err != nil {
		return nil, err
	}
	for _, id := range influencers {
		if err := p.ledger.Repository().Touch(ctx, tx, id); err != nil {
			return nil, err
		}
	}
	return influencers, nil
}

// Influencers lists the distinct influencer ids of payouts.
func Influencers(payouts []Payout) []string {
	var ids []string
	seen := make(map[string]struct{}, len(payouts))
	for _, p := range payouts {
		if _, ok := seen[p.InfluencerID]; ok {
			continue
		}
		seen[p.InfluencerID] = struct{}{}
		ids = append(ids, p.InfluencerID)
	}
	return ids
}
