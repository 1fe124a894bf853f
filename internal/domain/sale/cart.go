// Package sale provides the sale-in-progress cart, discount distribution,
// and the atomic checkout orchestrator.
package sale

import (
	"fmt"
	"sync"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/catalogs/item"
	"tillpoint/internal/domain/promo"
)

// CartLine is one priced, quantified reference to a good or service.
// DiscountAmount is the authoritative line discount; UnitDiscount and
// UnitPrice are per-unit views derived from it for display. Invariant:
// UnitPrice == OriginalPrice - UnitDiscount at all times.
type CartLine struct {
	LineID id.ID `json:"lineId"`

	ItemID   id.ID  `json:"itemId"`
	ItemName string `json:"itemName"`

	// Service marks lines that consume material requirements instead of
	// their own stock.
	Service bool `json:"service"`

	Quantity types.Quantity `json:"quantity"`

	// UnitPrice reflects any applied discount, derived from DiscountAmount
	UnitPrice types.Money `json:"unitPrice"`

	// UnitCost at time of add (for margin reporting)
	UnitCost types.Money `json:"unitCost"`

	// OriginalPrice is the pre-discount unit price, set at add time and
	// never overwritten
	OriginalPrice types.Money `json:"originalPrice"`

	// UnitDiscount is the per-unit discount rounded for display. Summing
	// UnitDiscount times Quantity can fall short of the real discount on
	// fractional splits; DiscountAmount carries the exact value.
	UnitDiscount types.Money `json:"unitDiscount"`

	// DiscountAmount is the exact total discount applied to this line.
	DiscountAmount types.Money `json:"discountAmount"`

	// Discount audit metadata
	DiscountReason     string `json:"discountReason,omitempty"`
	DiscountAuthorizer string `json:"discountAuthorizer,omitempty"`
	AuthorizerRole     string `json:"authorizerRole,omitempty"`

	// PromoApplied marks lines whose discount came from a promotion
	PromoApplied bool `json:"promoApplied"`
}

// Subtotal returns the exact line amount after discount.
func (l *CartLine) Subtotal() types.Money {
	return l.OriginalPrice.Mul(l.Quantity.Decimal()).Sub(l.DiscountAmount)
}

// setDiscountAmount assigns the exact line discount and refreshes the
// derived per-unit fields. RoundDown keeps the derived UnitDiscount from
// overshooting OriginalPrice on fractional splits.
func (l *CartLine) setDiscountAmount(amount types.Money) {
	l.DiscountAmount = amount
	l.UnitDiscount = amount.Div(l.Quantity.Decimal()).RoundDown(4)
	l.UnitPrice = l.OriginalPrice.Sub(l.UnitDiscount)
}

// rescaleDiscount adjusts the line discount after a quantity change so
// the per-unit concession follows the line.
func (l *CartLine) rescaleDiscount(previous types.Quantity) {
	if !l.DiscountAmount.IsPositive() {
		return
	}
	scaled := l.DiscountAmount.
		Mul(l.Quantity.Decimal()).
		DivRound(previous.Decimal(), 2)
	l.setDiscountAmount(scaled)
}

// checkConsistent verifies the line's price/discount identity.
func (l *CartLine) checkConsistent() error {
	if l.DiscountAmount.IsNegative() {
		return apperror.NewInvalidDiscount("line discount is negative").
			WithDetail("line_id", l.LineID.String())
	}
	if l.DiscountAmount.GreaterThan(l.OriginalPrice.Mul(l.Quantity.Decimal())) {
		return apperror.NewInvalidDiscount("discount exceeds line amount").
			WithDetail("line_id", l.LineID.String())
	}
	if l.UnitPrice.IsNegative() {
		return apperror.NewInvalidDiscount("unit price is negative").
			WithDetail("line_id", l.LineID.String())
	}
	if !l.UnitPrice.Equal(l.OriginalPrice.Sub(l.UnitDiscount)) {
		return apperror.NewInvalidDiscount("unit price does not reconcile with discount").
			WithDetail("line_id", l.LineID.String())
	}
	return nil
}

// Cart is the mutable, uncommitted sale-in-progress. No stock or ledger
// is touched by cart operations. A cart is shared between the requests
// of one till session, so every read and mutation takes the lock.
type Cart struct {
	mu    sync.Mutex
	lines []*CartLine
}

// NewCart creates an empty cart.
func NewCart() *Cart {
	return &Cart{lines: make([]*CartLine, 0, 8)}
}

// AddLine adds an item to the cart. Adding the same item again merges into
// the existing line, summing quantities. Stock is re-checked here as a
// soft guard only; the orchestrator re-validates authoritatively at commit.
func (c *Cart) AddLine(it *item.StockItem, quantity types.Quantity) (*CartLine, error) {
	if it == nil {
		return nil, apperror.NewValidation("item is required")
	}
	if !quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", quantity.String())
	}
	if !it.ForSale || it.DeletionMark {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule,
			fmt.Sprintf("item %q is not for sale", it.Name)).
			WithDetail("item_id", it.ID.String())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing := c.findByItem(it.ID); existing != nil {
		combined := existing.Quantity + quantity
		if err := softStockCheck(it, combined); err != nil {
			return nil, err
		}
		previous := existing.Quantity
		existing.Quantity = combined
		existing.rescaleDiscount(previous)
		return existing, nil
	}

	if err := softStockCheck(it, quantity); err != nil {
		return nil, err
	}

	line := &CartLine{
		LineID:         id.New(),
		ItemID:         it.ID,
		ItemName:       it.Name,
		Service:        it.IsService(),
		Quantity:       quantity,
		UnitPrice:      it.SalePrice,
		UnitCost:       it.UnitCost,
		OriginalPrice:  it.SalePrice,
		UnitDiscount:   types.Zero(),
		DiscountAmount: types.Zero(),
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// softStockCheck guards goods at add time. Service stock is a soft
// capacity counter, not physical inventory, so services pass.
func softStockCheck(it *item.StockItem, required types.Quantity) error {
	if it.IsService() {
		return nil
	}
	if it.Quantity < required {
		return apperror.NewInsufficientStock(apperror.Shortfall{
			ItemID:    it.ID.String(),
			Name:      it.Name,
			Requested: required.Float64(),
			Available: it.Quantity.Float64(),
		})
	}
	return nil
}

// RemoveLine removes a line by its ID.
func (c *Cart) RemoveLine(lineID id.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for n, l := range c.lines {
		if l.LineID == lineID {
			c.lines = append(c.lines[:n], c.lines[n+1:]...)
			return nil
		}
	}
	return apperror.NewNotFound("cart line", lineID.String())
}

// UpdateQuantity changes a line's quantity.
func (c *Cart) UpdateQuantity(lineID id.ID, quantity types.Quantity) error {
	if !quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", quantity.String())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range c.lines {
		if l.LineID == lineID {
			previous := l.Quantity
			l.Quantity = quantity
			l.rescaleDiscount(previous)
			return nil
		}
	}
	return apperror.NewNotFound("cart line", lineID.String())
}

// Clear removes all lines (after commit or cancellation).
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = c.lines[:0]
}

// Lines returns the cart lines in add order. The slice is a copy but
// the lines are live; callers that serialize line state should use
// CloneLines instead.
func (c *Cart) Lines() []*CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// Subtotal sums exact line amounts after discount.
func (c *Cart) Subtotal() types.Money {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := types.Zero()
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// TotalDiscount sums the exact per-line discount amounts.
func (c *Cart) TotalDiscount() types.Money {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := types.Zero()
	for _, l := range c.lines {
		total = total.Add(l.DiscountAmount)
	}
	return total
}

// CloneLines deep-copies the cart lines. The orchestrator prices a clone
// so the caller's cart is left unchanged when a checkout fails.
func (c *Cart) CloneLines() []*CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	clones := make([]*CartLine, len(c.lines))
	for n, l := range c.lines {
		copied := *l
		clones[n] = &copied
	}
	return clones
}

// PromoView converts cart lines to the read-only promotion view.
func PromoView(lines []*CartLine) promo.Cart {
	view := promo.Cart{Lines: make([]promo.CartLine, len(lines))}
	for n, l := range lines {
		view.Lines[n] = promo.CartLine{
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	return view
}

// findByItem is called with c.mu held.
func (c *Cart) findByItem(itemID id.ID) *CartLine {
	for _, l := range c.lines {
		if l.ItemID == itemID {
			return l
		}
	}
	return nil
}
