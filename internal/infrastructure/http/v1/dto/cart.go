package dto

import (
	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/sale"
)

// --- Request DTOs ---

// AddLineRequest adds an item to the open cart, by ID or scanned barcode.
type AddLineRequest struct {
	ItemID   string         `json:"itemId"`
	Barcode  string         `json:"barcode"`
	Quantity types.Quantity `json:"quantity"`
}

// UpdateLineRequest changes a cart line's quantity.
type UpdateLineRequest struct {
	Quantity types.Quantity `json:"quantity" binding:"required"`
}

// ManualDiscountRequest applies a supervisor-authorized lump-sum discount.
// The authorizer confirms by PIN at the terminal.
type ManualDiscountRequest struct {
	Amount         types.Money `json:"amount" binding:"required"`
	Reason         string      `json:"reason" binding:"required"`
	AuthorizerCode string      `json:"authorizerCode" binding:"required"`
	AuthorizerPIN  string      `json:"authorizerPin" binding:"required"`
}

// PaymentRequest splits the tendered amount across payment methods.
type PaymentRequest struct {
	Cash     types.Money `json:"cash"`
	Card     types.Money `json:"card"`
	Transfer types.Money `json:"transfer"`
}

// ToBreakdown converts to the domain payment breakdown.
func (p PaymentRequest) ToBreakdown() sale.PaymentBreakdown {
	return sale.PaymentBreakdown{
		Cash:     p.Cash,
		Card:     p.Card,
		Transfer: p.Transfer,
	}
}

// CheckoutRequest commits the open cart as a sale.
type CheckoutRequest struct {
	Payment      PaymentRequest `json:"payment" binding:"required"`
	CustomerID   *string        `json:"customerId"`
	CustomerName string         `json:"customerName"`
}

// ToCheckout converts to the domain checkout request.
func (r *CheckoutRequest) ToCheckout(terminalID string) (sale.CheckoutRequest, error) {
	req := sale.CheckoutRequest{
		Payment:      r.Payment.ToBreakdown(),
		CustomerName: r.CustomerName,
		TerminalID:   terminalID,
	}
	if r.CustomerID != nil && *r.CustomerID != "" {
		customerID, err := id.Parse(*r.CustomerID)
		if err != nil {
			return sale.CheckoutRequest{}, apperror.NewValidation("invalid customerId format")
		}
		req.CustomerID = &customerID
	}
	return req, nil
}

// --- Response DTOs ---

// CartResponse is the open cart with running totals.
type CartResponse struct {
	TerminalID    string           `json:"terminalId"`
	Lines         []*sale.CartLine `json:"lines"`
	Subtotal      types.Money      `json:"subtotal"`
	TotalDiscount types.Money      `json:"totalDiscount"`
	PromoPreview  *types.Money     `json:"promoPreview,omitempty"`
}

// FromCart builds the cart view. Lines are cloned so serialization
// does not read concurrently mutated line state.
func FromCart(terminalID string, cart *sale.Cart) *CartResponse {
	return &CartResponse{
		TerminalID:    terminalID,
		Lines:         cart.CloneLines(),
		Subtotal:      cart.Subtotal(),
		TotalDiscount: cart.TotalDiscount(),
	}
}
