// Package promo provides promotion definitions and the stateless discount
// evaluation over a cart. Promotions never mutate the cart; they only
// produce an amount consumed by the checkout orchestrator.
package promo

import (
	"context"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/entity"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

// PromotionType defines the discount calculation algorithm.
type PromotionType string

const (
	// TypePercentage discounts a percentage of the applicable subtotal.
	TypePercentage PromotionType = "percentage"
	// TypeFixedAmount discounts a fixed amount once the threshold is met.
	TypeFixedAmount PromotionType = "fixed_amount"
	// TypeQuantityBreak sells N units of an item at a bundled price.
	TypeQuantityBreak PromotionType = "quantity_break"
	// TypeBuyXGetY grants free units: pay MinimumQuantity, receive Value.
	TypeBuyXGetY PromotionType = "buy_x_get_y"
)

// Definition is an immutable promotion rule. It is read-only input to
// evaluation; edits create a new version.
type Definition struct {
	entity.Catalog

	// Type selects the calculation algorithm
	Type PromotionType `db:"type" json:"type"`

	// Value: percent for percentage, amount for fixed_amount, bundle price
	// for quantity_break, total units received for buy_x_get_y
	Value types.Money `db:"value" json:"value"`

	// MinimumAmount is the subtotal threshold (percentage, fixed_amount)
	MinimumAmount types.Money `db:"minimum_amount" json:"minimumAmount"`

	// MinimumQuantity is the unit threshold (quantity_break: bundle size,
	// buy_x_get_y: paid units)
	MinimumQuantity types.Quantity `db:"minimum_quantity" json:"minimumQuantity"`

	// MaximumDiscount caps the computed discount when set
	MaximumDiscount *types.Money `db:"maximum_discount" json:"maximumDiscount,omitempty"`

	// ItemIDs restricts the promotion to specific items; empty means all
	ItemIDs []id.ID `db:"-" json:"itemIds,omitempty"`

	// Combinable promotions stack; a non-combinable one, once it yields a
	// non-zero discount, stops evaluation of subsequent promotions
	Combinable bool `db:"combinable" json:"combinable"`

	// Priority orders evaluation (ascending)
	Priority int `db:"priority" json:"priority"`

	// Active date range
	ValidFrom time.Time `db:"valid_from" json:"validFrom"`
	ValidTo   time.Time `db:"valid_to" json:"validTo"`

	// Condition is an optional CEL expression over cart facts
	// (subtotal, total_quantity, line_count) gating eligibility.
	Condition string `db:"condition" json:"condition,omitempty"`
}

// IsActiveAt reports whether the promotion is within its date range.
func (d *Definition) IsActiveAt(t time.Time) bool {
	if d.DeletionMark {
		return false
	}
	if !d.ValidFrom.IsZero() && t.Before(d.ValidFrom) {
		return false
	}
	if !d.ValidTo.IsZero() && t.After(d.ValidTo) {
		return false
	}
	return true
}

// AppliesTo reports whether the promotion covers the given item.
func (d *Definition) AppliesTo(itemID id.ID) bool {
	if len(d.ItemIDs) == 0 {
		return true
	}
	for _, candidate := range d.ItemIDs {
		if candidate == itemID {
			return true
		}
	}
	return false
}

// Validate implements entity.Validatable.
func (d *Definition) Validate(ctx context.Context) error {
	if err := d.Catalog.Validate(ctx); err != nil {
		return err
	}

	switch d.Type {
	case TypePercentage, TypeFixedAmount:
		if d.Value.IsNegative() {
			return apperror.NewValidation("promotion value cannot be negative").
				WithDetail("field", "value")
		}
	case TypeQuantityBreak:
		if !d.MinimumQuantity.IsPositive() {
			return apperror.NewValidation("bundle size must be positive").
				WithDetail("field", "minimumQuantity")
		}
		if d.Value.IsNegative() {
			return apperror.NewValidation("bundle price cannot be negative").
				WithDetail("field", "value")
		}
		if len(d.ItemIDs) == 0 {
			return apperror.NewValidation("quantity break requires applicable items").
				WithDetail("field", "itemIds")
		}
	case TypeBuyXGetY:
		if !d.MinimumQuantity.IsPositive() {
			return apperror.NewValidation("paid units must be positive").
				WithDetail("field", "minimumQuantity")
		}
		// Received units must exceed paid units or the promotion grants
		// nothing and every evaluation at the till errors out.
		received := types.NewQuantityFromDecimal(d.Value)
		if received.Int64Scaled() <= d.MinimumQuantity.Int64Scaled() {
			return apperror.NewValidation("received units must exceed paid units").
				WithDetail("field", "value").
				WithDetail("paid", d.MinimumQuantity.String()).
				WithDetail("received", received.String())
		}
	default:
		return apperror.NewValidation("invalid promotion type").
			WithDetail("field", "type").
			WithDetail("value", string(d.Type))
	}

	if d.MaximumDiscount != nil && d.MaximumDiscount.IsNegative() {
		return apperror.NewValidation("maximum discount cannot be negative").
			WithDetail("field", "maximumDiscount")
	}

	return nil
}

// CartLine is the read-only view of one cart line used for evaluation.
type CartLine struct {
	ItemID    id.ID
	Quantity  types.Quantity
	UnitPrice types.Money
}

// Cart is the read-only cart view promotions evaluate against.
type Cart struct {
	Lines []CartLine
}

// Subtotal sums line subtotals at current unit prices.
func (c Cart) Subtotal() types.Money {
	total := types.Zero()
	for _, l := range c.Lines {
		total = total.Add(l.UnitPrice.Mul(l.Quantity.Decimal()))
	}
	return total
}

// TotalQuantity sums line quantities.
func (c Cart) TotalQuantity() types.Quantity {
	var total types.Quantity
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

// Repository defines persistence for promotion definitions.
type Repository interface {
	Create(ctx context.Context, def *Definition) error
	Update(ctx context.Context, def *Definition) error
	GetByID(ctx context.Context, defID id.ID) (*Definition, error)

	// ListActive returns definitions active at the given time,
	// ordered by ascending priority.
	ListActive(ctx context.Context, at time.Time) ([]*Definition, error)
}
