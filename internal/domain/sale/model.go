package sale

import (
	"context"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/entity"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

// State is the lifecycle phase of a checkout attempt.
type State string

const (
	StateBuilding   State = "building"
	StateValidating State = "validating"
	StatePricing    State = "pricing"
	StateCommitting State = "committing"
	StateCompleted  State = "completed"
	StateAborted    State = "aborted"
)

// Sale is the committed, immutable record of a completed checkout.
type Sale struct {
	entity.BaseDocument

	Ticket string    `json:"ticket" db:"ticket"`
	Date   time.Time `json:"date" db:"date"`

	TerminalID string `json:"terminalId" db:"terminal_id"`

	CustomerID   *id.ID `json:"customerId,omitempty" db:"customer_id"`
	CustomerName string `json:"customerName,omitempty" db:"customer_name"`

	Lines []SaleLine `json:"lines" db:"-"`

	Payment PaymentBreakdown `json:"payment" db:"-"`

	// Subtotal is the post-discount, tax-inclusive sum of line subtotals.
	Subtotal      types.Money `json:"subtotal" db:"subtotal"`
	TotalDiscount types.Money `json:"totalDiscount" db:"total_discount"`
	Total         types.Money `json:"total" db:"total"`
	GrossMargin   types.Money `json:"grossMargin" db:"gross_margin"`

	// CardCommission is the acquirer fee on the card share of the payment.
	// Informational; the customer total is unaffected.
	CardCommission types.Money `json:"cardCommission" db:"card_commission"`

	DiscountAudit *DiscountAudit `json:"discountAudit,omitempty" db:"-"`
}

// SaleLine is the immutable snapshot of a cart line at commit time.
type SaleLine struct {
	LineID id.ID `json:"lineId" db:"line_id"`
	SaleID id.ID `json:"saleId" db:"sale_id"`
	LineNo int   `json:"lineNo" db:"line_no"`

	ItemID   id.ID  `json:"itemId" db:"item_id"`
	ItemName string `json:"itemName" db:"item_name"`
	Service  bool   `json:"service" db:"service"`

	Quantity      types.Quantity `json:"quantity" db:"quantity"`
	UnitPrice     types.Money    `json:"unitPrice" db:"unit_price"`
	UnitCost      types.Money    `json:"unitCost" db:"unit_cost"`
	OriginalPrice types.Money    `json:"originalPrice" db:"original_price"`
	UnitDiscount  types.Money    `json:"unitDiscount" db:"unit_discount"`

	// DiscountAmount is the exact discount on the whole line; UnitDiscount
	// is its rounded per-unit view.
	DiscountAmount types.Money `json:"discountAmount" db:"discount_amount"`

	DiscountReason     string `json:"discountReason,omitempty" db:"discount_reason"`
	DiscountAuthorizer string `json:"discountAuthorizer,omitempty" db:"discount_authorizer"`
	AuthorizerRole     string `json:"authorizerRole,omitempty" db:"authorizer_role"`
	PromoApplied       bool   `json:"promoApplied" db:"promo_applied"`

	Subtotal types.Money `json:"subtotal" db:"subtotal"`
}

// PaymentBreakdown splits the amount tendered across payment methods.
type PaymentBreakdown struct {
	Cash     types.Money `json:"cash" db:"payment_cash"`
	Card     types.Money `json:"card" db:"payment_card"`
	Transfer types.Money `json:"transfer" db:"payment_transfer"`
}

// Total sums all payment methods.
func (p PaymentBreakdown) Total() types.Money {
	return p.Cash.Add(p.Card).Add(p.Transfer)
}

// Validate checks the breakdown covers the given sale total exactly.
// Cash change is settled at the terminal before the breakdown is built.
func (p PaymentBreakdown) Validate(total types.Money) error {
	for _, amount := range []types.Money{p.Cash, p.Card, p.Transfer} {
		if amount.IsNegative() {
			return apperror.NewValidation("payment amount cannot be negative")
		}
	}
	if !p.Total().Equal(total) {
		return apperror.NewValidation("payment breakdown does not match sale total").
			WithDetail("tendered", p.Total().String()).
			WithDetail("total", total.String())
	}
	return nil
}

// DiscountAudit is the header-level aggregate of the per-line discount
// trail, kept for end-of-day reporting.
type DiscountAudit struct {
	Authorizer string      `json:"authorizer" db:"authorizer"`
	Role       string      `json:"role" db:"role"`
	Reason     string      `json:"reason" db:"reason"`
	Total      types.Money `json:"total" db:"total"`
	Percent    types.Money `json:"percent" db:"percent"`
	LineCount  int         `json:"lineCount" db:"line_count"`
	AppliedAt  time.Time   `json:"appliedAt" db:"applied_at"`
}

// Validate checks the committed document's internal consistency.
func (s *Sale) Validate(ctx context.Context) error {
	if s.Ticket == "" {
		return apperror.NewValidation("ticket number is required")
	}
	if len(s.Lines) == 0 {
		return apperror.NewEmptyCart()
	}
	sum := types.Zero()
	for _, l := range s.Lines {
		if !l.Quantity.IsPositive() {
			return apperror.NewValidation("line quantity must be positive").
				WithDetail("line_no", l.LineNo)
		}
		sum = sum.Add(l.Subtotal)
	}
	if !sum.Equal(s.Total) {
		return apperror.NewValidation("sale total does not match line subtotals").
			WithDetail("total", s.Total.String()).
			WithDetail("lines", sum.String())
	}
	return s.Payment.Validate(s.Total)
}
