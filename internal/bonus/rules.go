package bonus

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"casino_wallet/internal/serviceerrs"
)

var (
	ErrBonusNotFound        = fmt.Errorf("bonus %w", serviceerrs.ErrNotFound)
	ErrPromoNotFound        = fmt.Errorf("promo code %w", serviceerrs.ErrNotFound)
	ErrPromoAlreadyRedeemed = fmt.Errorf("%w: a promo code was already redeemed on this account", serviceerrs.ErrConflict)

	ErrPromoInactive        = serviceerrs.Invalid("promo code is not active")
	ErrPromoExpired         = serviceerrs.Invalid("promo code has expired")
	ErrPromoExhausted       = serviceerrs.Invalid("promo code has reached its usage limit")
	ErrPromoEmpty           = serviceerrs.Invalid("promo code grants no bonus")
	ErrOwnPromoCode         = serviceerrs.Invalid("cannot redeem your own promo code")
	ErrBonusNotWithdrawable = serviceerrs.Invalid("bonus is not withdrawable yet")
	ErrExceedsBonusBalance  = serviceerrs.Invalid("amount exceeds the bonus remaining amount")
)

var hundred = decimal.NewFromInt(100)

// CheckUsable reports why p cannot be redeemed at now, if at all.
func CheckUsable(p PromoCode, now time.Time) error {
	if !p.IsActive {
		return ErrPromoInactive
	}
	if p.ExpiresAt != nil && !now.Before(*p.ExpiresAt) {
		return ErrPromoExpired
	}
	if p.MaxUses > 0 && p.CurrentUses >= p.MaxUses {
		return ErrPromoExhausted
	}
	if !p.HasDepositMatch() && !p.HasFixedAmount() {
		return ErrPromoEmpty
	}
	return nil
}

// DepositBonus returns the match a deposit earns under p. ok is false when the
// deposit is below the minimum or the code has no deposit-match part.
func DepositBonus(p PromoCode, deposit decimal.Decimal) (amount decimal.Decimal, ok bool) {
	if !p.HasDepositMatch() || deposit.LessThan(p.MinDeposit) {
		return decimal.Zero, false
	}
	amount = deposit.Mul(p.Percentage).Div(hundred).Round(2)
	if p.MaxBonus.IsPositive() && amount.GreaterThan(p.MaxBonus) {
		amount = p.MaxBonus
	}
	return amount, amount.IsPositive()
}

// Advance applies one stake to b. CompletedWagering moves by at most the
// outstanding requirement while TotalWagered always takes the full stake.
// The status flips to COMPLETED in the same step the requirement is met.
func Advance(b Bonus, stake decimal.Decimal) Bonus {
	required := b.RequiredWagering()
	b.TotalWagered = b.TotalWagered.Add(stake)
	if b.CompletedWagering.LessThan(required) {
		b.CompletedWagering = decimal.Min(b.CompletedWagering.Add(stake), required)
	}
	if b.CompletedWagering.GreaterThanOrEqual(required) {
		b.Status = StatusCompleted
		b.IsWithdrawable = true
	}
	return b
}

func Progress(b Bonus) WageringProgress {
	required := b.RequiredWagering()
	pct := float64(100)
	if required.IsPositive() {
		pct = b.CompletedWagering.Div(required).Mul(hundred).InexactFloat64()
	}
	return WageringProgress{
		BonusID:            b.ID,
		RequiredWagering:   required,
		CompletedWagering:  b.CompletedWagering,
		TotalWagered:       b.TotalWagered,
		PercentageComplete: pct,
		Completed:          b.Status == StatusCompleted,
	}
}

func expiry(validDays int, now time.Time) *time.Time {
	if validDays <= 0 {
		return nil
	}
	t := now.AddDate(0, 0, validDays)
	return &t
}

func summarize(p PromoCode) PromoSummary {
	return PromoSummary{
		Code:                p.Code,
		Percentage:          p.Percentage,
		MaxBonus:            p.MaxBonus,
		MinDeposit:          p.MinDeposit,
		FixedAmount:         p.FixedAmount,
		WageringRequirement: p.WageringRequirement,
		ValidDays:           p.ValidDays,
		ExpiresAt:           p.ExpiresAt,
	}
}
