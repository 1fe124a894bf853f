package sale

import (
	"github.com/shopspring/decimal"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/types"
)

// DiscountMeta carries the audit trail for a lump-sum discount.
type DiscountMeta struct {
	Reason        string
	Authorizer    string
	Role          string
	FromPromotion bool
}

// Distribute spreads a lump-sum discount across cart lines proportionally
// to their current subtotals. Shares are rounded to cents; the last line
// absorbs the rounding remainder so the line discount amounts sum to the
// lump exactly.
//
// The distribution is all-or-nothing: every per-line result is validated
// before any line is mutated, so a failure leaves the lines untouched.
func Distribute(lines []*CartLine, lump types.Money, meta DiscountMeta) error {
	if len(lines) == 0 {
		return apperror.NewEmptyCart()
	}
	if !lump.IsPositive() {
		return apperror.NewInvalidDiscount("discount amount must be positive").
			WithDetail("amount", lump.String())
	}

	base := types.Zero()
	for _, l := range lines {
		base = base.Add(l.Subtotal())
	}
	if lump.GreaterThan(base) {
		return apperror.NewInvalidDiscount("discount exceeds cart subtotal").
			WithDetail("amount", lump.String()).
			WithDetail("subtotal", base.String())
	}

	shares := make([]types.Money, len(lines))
	distributed := types.Zero()
	for n, l := range lines {
		if n == len(lines)-1 {
			shares[n] = lump.Sub(distributed)
			break
		}
		share := lump.Mul(l.Subtotal()).Div(base).Round(2)
		shares[n] = share
		distributed = distributed.Add(share)
	}

	// Validate every line against its share before mutating anything.
	// The exact share lands on DiscountAmount; the derived per-unit
	// fields never feed back into totals, so no residue is lost.
	amounts := make([]types.Money, len(lines))
	for n, l := range lines {
		if shares[n].IsNegative() {
			return apperror.NewInvalidDiscount("rounding produced a negative share").
				WithDetail("line_id", l.LineID.String())
		}
		amount := l.DiscountAmount.Add(shares[n])
		if amount.GreaterThan(l.OriginalPrice.Mul(l.Quantity.Decimal())) {
			return apperror.NewInvalidDiscount("discount would drive line price below zero").
				WithDetail("line_id", l.LineID.String()).
				WithDetail("item", l.ItemName)
		}
		amounts[n] = amount
	}

	for n, l := range lines {
		l.setDiscountAmount(amounts[n])
		l.DiscountReason = meta.Reason
		l.DiscountAuthorizer = meta.Authorizer
		l.AuthorizerRole = meta.Role
		if meta.FromPromotion {
			l.PromoApplied = true
		}
	}
	return nil
}

// ApplyManualDiscount distributes a supervisor-authorized lump-sum
// discount over the live cart. Requires a non-empty reason and authorizer;
// failure leaves the cart unchanged.
func ApplyManualDiscount(cart *Cart, amount types.Money, meta DiscountMeta) error {
	if meta.Reason == "" {
		return apperror.NewInvalidDiscount("discount reason is required")
	}
	if meta.Authorizer == "" {
		return apperror.NewInvalidDiscount("discount authorizer is required")
	}
	meta.FromPromotion = false
	cart.mu.Lock()
	defer cart.mu.Unlock()
	return Distribute(cart.lines, amount, meta)
}

// DiscountPercent returns the effective discount percentage of the given
// total discount against the pre-discount base, rounded to two places.
func DiscountPercent(totalDiscount, preDiscountBase types.Money) types.Money {
	if preDiscountBase.IsZero() {
		return types.Zero()
	}
	return totalDiscount.Mul(decimal.NewFromInt(100)).DivRound(preDiscountBase, 2)
}
