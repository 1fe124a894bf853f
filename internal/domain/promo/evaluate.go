package promo

import (
	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluate computes the discount one promotion yields against the cart.
// Pure function: no state, no cart mutation. A zero result means the
// promotion does not apply.
func Evaluate(d *Definition, cart Cart) (types.Money, error) {
	switch d.Type {
	case TypePercentage:
		return evaluatePercentage(d, cart), nil
	case TypeFixedAmount:
		return evaluateFixedAmount(d, cart), nil
	case TypeQuantityBreak:
		return evaluateQuantityBreak(d, cart)
	case TypeBuyXGetY:
		return evaluateBuyXGetY(d, cart)
	}
	return types.Zero(), apperror.NewPromotionMisconfigured(d.ID.String(), "unknown promotion type")
}

// applicableSubtotal sums subtotals of lines the promotion covers.
func applicableSubtotal(d *Definition, cart Cart) types.Money {
	total := types.Zero()
	for _, l := range cart.Lines {
		if d.AppliesTo(l.ItemID) {
			total = total.Add(l.UnitPrice.Mul(l.Quantity.Decimal()))
		}
	}
	return total
}

func evaluatePercentage(d *Definition, cart Cart) types.Money {
	base := applicableSubtotal(d, cart)
	if base.LessThan(d.MinimumAmount) {
		return types.Zero()
	}

	discount := base.Mul(d.Value).Div(hundred)
	if d.MaximumDiscount != nil && discount.GreaterThan(*d.MaximumDiscount) {
		discount = *d.MaximumDiscount
	}
	// A misconfigured percentage above 100 must still never exceed the base.
	if discount.GreaterThan(base) {
		discount = base
	}
	return discount
}

func evaluateFixedAmount(d *Definition, cart Cart) types.Money {
	base := applicableSubtotal(d, cart)
	if base.LessThan(d.MinimumAmount) {
		return types.Zero()
	}

	discount := d.Value
	if discount.GreaterThan(base) {
		discount = base
	}
	if d.MaximumDiscount != nil && discount.GreaterThan(*d.MaximumDiscount) {
		discount = *d.MaximumDiscount
	}
	return discount
}

// itemTotals aggregates per-item quantity and keeps the price of the first
// line carrying the item, preserving cart order.
type itemTotal struct {
	itemID    id.ID
	quantity  types.Quantity
	unitPrice types.Money
}

func itemTotals(d *Definition, cart Cart) []itemTotal {
	index := make(map[id.ID]int)
	totals := make([]itemTotal, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		if !d.AppliesTo(l.ItemID) {
			continue
		}
		if n, ok := index[l.ItemID]; ok {
			totals[n].quantity += l.Quantity
			continue
		}
		index[l.ItemID] = len(totals)
		totals = append(totals, itemTotal{
			itemID:    l.ItemID,
			quantity:  l.Quantity,
			unitPrice: l.UnitPrice,
		})
	}
	return totals
}

// evaluateQuantityBreak implements "buy N at a bundled price": complete
// bundles are repriced; quantity below the threshold earns no partial credit.
func evaluateQuantityBreak(d *Definition, cart Cart) (types.Money, error) {
	if len(d.ItemIDs) == 0 {
		return types.Zero(), apperror.NewPromotionMisconfigured(
			d.ID.String(), "quantity break promotion has no applicable items")
	}
	if !d.MinimumQuantity.IsPositive() {
		return types.Zero(), apperror.NewPromotionMisconfigured(
			d.ID.String(), "quantity break promotion has no bundle size")
	}

	discount := types.Zero()
	for _, t := range itemTotals(d, cart) {
		bundles := t.quantity.Int64Scaled() / d.MinimumQuantity.Int64Scaled()
		if bundles <= 0 {
			continue
		}

		bundlesDec := decimal.NewFromInt(bundles)
		regular := bundlesDec.Mul(d.MinimumQuantity.Decimal()).Mul(t.unitPrice)
		promotional := bundlesDec.Mul(d.Value)

		if itemDiscount := regular.Sub(promotional); itemDiscount.IsPositive() {
			discount = discount.Add(itemDiscount)
		}
	}

	if d.MaximumDiscount != nil && discount.GreaterThan(*d.MaximumDiscount) {
		discount = *d.MaximumDiscount
	}
	return discount, nil
}

// evaluateBuyXGetY grants free units: the customer pays MinimumQuantity
// units and receives Value units per complete bundle.
func evaluateBuyXGetY(d *Definition, cart Cart) (types.Money, error) {
	paid := d.MinimumQuantity.Int64Scaled()
	received := types.NewQuantityFromDecimal(d.Value).Int64Scaled()
	free := received - paid
	if free <= 0 {
		return types.Zero(), apperror.NewPromotionMisconfigured(
			d.ID.String(), "buy-x-get-y promotion grants no free units")
	}

	freeQty := types.NewQuantityFromInt64Scaled(free)
	receivedQty := types.NewQuantityFromInt64Scaled(received)

	discount := types.Zero()
	for _, t := range itemTotals(d, cart) {
		bundles := t.quantity.Int64Scaled() / receivedQty.Int64Scaled()
		if bundles <= 0 {
			continue
		}

		freeUnits := decimal.NewFromInt(bundles).Mul(freeQty.Decimal())
		discount = discount.Add(freeUnits.Mul(t.unitPrice))
	}

	if d.MaximumDiscount != nil && discount.GreaterThan(*d.MaximumDiscount) {
		discount = *d.MaximumDiscount
	}
	return discount, nil
}
