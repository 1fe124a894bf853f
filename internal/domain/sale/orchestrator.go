package sale

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tillpoint/internal/core/apperror"
	pcontext "tillpoint/internal/core/context"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/tx"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/catalogs/item"
	"tillpoint/internal/domain/ledger"
	"tillpoint/internal/domain/promo"
	"tillpoint/pkg/logger"
)

// ItemStore is the slice of the item repository the orchestrator needs.
type ItemStore interface {
	// GetForUpdate loads the item with a row lock inside the current
	// transaction; availability read from it is authoritative.
	GetForUpdate(ctx context.Context, itemID id.ID) (*item.StockItem, error)
}

// Pricer computes the stacked promotion discount for a cart view.
type Pricer interface {
	PreviewDiscount(ctx context.Context, cart promo.Cart) (types.Money, error)
}

// TicketSource issues sequential ticket numbers.
type TicketSource interface {
	Next(ctx context.Context, period time.Time) (string, error)
}

// AuditLogger records a compressed snapshot of the committed sale.
// Best effort: a snapshot failure never fails the sale.
type AuditLogger interface {
	LogSale(ctx context.Context, s *Sale) error
}

// Checkout input beyond the cart itself.
type CheckoutRequest struct {
	Payment      PaymentBreakdown
	CustomerID   *id.ID
	CustomerName string
	TerminalID   string
}

// Orchestrator drives a cart through validation, pricing, and atomic
// commit. The cart passed to Checkout is never mutated; on failure the
// caller keeps it to fix and retry.
type Orchestrator struct {
	items     ItemStore
	stock     *ledger.Service
	sales     Repository
	pricer    Pricer
	tickets   TicketSource
	txManager tx.Manager

	// cardCommissionRate is the acquirer fee percent applied to the card
	// share of each payment. Zero disables the computation.
	cardCommissionRate types.Money

	events Events
	audit  AuditLogger
}

// NewOrchestrator creates a checkout orchestrator.
func NewOrchestrator(
	items ItemStore,
	stock *ledger.Service,
	sales Repository,
	pricer Pricer,
	tickets TicketSource,
	txManager tx.Manager,
) *Orchestrator {
	return &Orchestrator{
		items:     items,
		stock:     stock,
		sales:     sales,
		pricer:    pricer,
		tickets:   tickets,
		txManager: txManager,
		events:    NopEvents{},
	}
}

// SetEvents subscribes a post-commit listener.
func (o *Orchestrator) SetEvents(events Events) {
	if events != nil {
		o.events = events
	}
}

// SetCardCommissionRate configures the acquirer fee percent recorded on
// sales paid by card.
func (o *Orchestrator) SetCardCommissionRate(percent types.Money) {
	o.cardCommissionRate = percent
}

// SetAudit attaches a best-effort sale snapshot sink.
func (o *Orchestrator) SetAudit(audit AuditLogger) {
	o.audit = audit
}

// requirement is the aggregated stock demand for one physical item across
// all cart lines, including material demand from service lines.
type requirement struct {
	item  *item.StockItem
	total types.Quantity
}

// Checkout validates, prices, and commits the cart as one atomic unit.
// All stock shortfalls are collected before reporting, not just the first.
func (o *Orchestrator) Checkout(ctx context.Context, cart *Cart, req CheckoutRequest) (*Sale, error) {
	if cart == nil || cart.IsEmpty() {
		return nil, apperror.NewEmptyCart()
	}

	// Ticket numbering runs outside the business transaction; a gap from
	// a later abort is acceptable, a duplicate is not.
	now := time.Now().UTC()
	ticket, err := o.tickets.Next(ctx, now)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	// Price a clone so a failed checkout leaves the cart untouched.
	lines := cart.CloneLines()

	var committed *Sale
	var movements []ledger.StockMovement

	err = o.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		state := StateValidating
		logger.Debug(ctx, "checkout started", "ticket", ticket, "state", state)

		required, err := o.collectRequirements(ctx, lines)
		if err != nil {
			return o.abort(ctx, ticket, state, err)
		}
		if err := o.checkAvailability(required); err != nil {
			return o.abort(ctx, ticket, state, err)
		}

		state = StatePricing
		promoTotal, err := o.pricer.PreviewDiscount(ctx, PromoView(lines))
		if err != nil {
			return o.abort(ctx, ticket, state, err)
		}
		if promoTotal.IsPositive() {
			meta := DiscountMeta{
				Reason:        "promotion",
				Authorizer:    actorName(ctx),
				Role:          actorRole(ctx),
				FromPromotion: true,
			}
			if err := Distribute(lines, promoTotal, meta); err != nil {
				return o.abort(ctx, ticket, state, err)
			}
		}
		for _, l := range lines {
			if err := l.checkConsistent(); err != nil {
				return o.abort(ctx, ticket, state, err)
			}
		}

		sale := o.buildSale(ctx, ticket, now, lines, req)
		if err := sale.Validate(ctx); err != nil {
			return o.abort(ctx, ticket, state, err)
		}

		state = StateCommitting
		if err := o.sales.Create(ctx, sale); err != nil {
			return o.abort(ctx, ticket, state, err)
		}

		for _, need := range required {
			movement, err := o.stock.Apply(ctx, ledger.Apply{
				ItemID:        need.item.ID,
				Kind:          ledger.KindSaleOutbound,
				Delta:         need.total.Neg(),
				ReferenceID:   sale.ID,
				ReferenceType: "sale",
				Reference:     ticket,
				Actor:         actorName(ctx),
				Period:        now,
			})
			if err != nil {
				return o.abort(ctx, ticket, state, err)
			}
			movements = append(movements, movement)
		}

		committed = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale committed",
		"ticket", committed.Ticket,
		"total", committed.Total,
		"lines", len(committed.Lines),
		"movements", len(movements),
	)

	o.events.OnSaleCommitted(ctx, committed)
	for _, m := range movements {
		o.events.OnStockChanged(ctx, m)
	}
	if o.audit != nil {
		if err := o.audit.LogSale(ctx, committed); err != nil {
			logger.Warn(ctx, "sale audit snapshot failed", "ticket", committed.Ticket, "error", err)
		}
	}

	return committed, nil
}

// abort logs the failed transition and normalizes the error: domain
// errors pass through, infrastructure errors during commit surface as a
// commit failure so the terminal can tell them apart from rule breaks.
func (o *Orchestrator) abort(ctx context.Context, ticket string, state State, err error) error {
	logger.Warn(ctx, "checkout aborted",
		"ticket", ticket,
		"state", state,
		"error", err,
	)
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if state == StateCommitting {
		return apperror.NewCommitFailure(err)
	}
	return apperror.NewInternal(err)
}

// collectRequirements aggregates physical stock demand per item. Goods
// consume their own stock; service lines consume their declared material
// requirements and leave the service's own counter alone. Items are
// loaded with row locks so availability cannot shift under the check.
func (o *Orchestrator) collectRequirements(ctx context.Context, lines []*CartLine) ([]*requirement, error) {
	ordered := make([]*requirement, 0, len(lines))
	index := make(map[id.ID]*requirement, len(lines))

	need := func(ctx context.Context, itemID id.ID, qty types.Quantity) error {
		if existing, ok := index[itemID]; ok {
			existing.total += qty
			return nil
		}
		it, err := o.items.GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		r := &requirement{item: it, total: qty}
		index[itemID] = r
		ordered = append(ordered, r)
		return nil
	}

	for _, l := range lines {
		if !l.Service {
			if err := need(ctx, l.ItemID, l.Quantity); err != nil {
				return nil, err
			}
			continue
		}
		svc, err := o.items.GetForUpdate(ctx, l.ItemID)
		if err != nil {
			return nil, err
		}
		for _, mat := range svc.Materials {
			if err := need(ctx, mat.MaterialID, mat.PerUnit.Mul(l.Quantity)); err != nil {
				return nil, err
			}
		}
	}
	return ordered, nil
}

// checkAvailability compares aggregated demand against locked stock and
// reports every shortfall at once.
func (o *Orchestrator) checkAvailability(required []*requirement) error {
	var shortfalls []apperror.Shortfall
	for _, need := range required {
		if need.item.Quantity < need.total {
			shortfalls = append(shortfalls, apperror.Shortfall{
				ItemID:    need.item.ID.String(),
				Name:      need.item.Name,
				Requested: need.total.Float64(),
				Available: need.item.Quantity.Float64(),
			})
		}
	}
	if len(shortfalls) > 0 {
		return apperror.NewInsufficientStock(shortfalls...)
	}
	return nil
}

func (o *Orchestrator) buildSale(ctx context.Context, ticket string, now time.Time, lines []*CartLine, req CheckoutRequest) *Sale {
	sale := &Sale{
		Ticket:       ticket,
		Date:         now,
		TerminalID:   req.TerminalID,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Payment:      req.Payment,
	}
	sale.ID = id.New()
	sale.CreatedAt = now
	sale.UpdatedAt = now
	sale.CreatedBy = actorName(ctx)
	sale.UpdatedBy = sale.CreatedBy

	subtotal := types.Zero()
	totalDiscount := types.Zero()
	margin := types.Zero()
	preDiscount := types.Zero()
	discountedLines := 0
	var firstDiscounted *CartLine

	sale.Lines = make([]SaleLine, len(lines))
	for n, l := range lines {
		lineSubtotal := l.Subtotal()

		subtotal = subtotal.Add(lineSubtotal)
		totalDiscount = totalDiscount.Add(l.DiscountAmount)
		margin = margin.Add(lineSubtotal.Sub(l.UnitCost.Mul(l.Quantity.Decimal())))
		preDiscount = preDiscount.Add(l.OriginalPrice.Mul(l.Quantity.Decimal()))
		if l.DiscountAmount.IsPositive() {
			discountedLines++
			if firstDiscounted == nil {
				firstDiscounted = l
			}
		}

		sale.Lines[n] = SaleLine{
			LineID:             l.LineID,
			SaleID:             sale.ID,
			LineNo:             n + 1,
			ItemID:             l.ItemID,
			ItemName:           l.ItemName,
			Service:            l.Service,
			Quantity:           l.Quantity,
			UnitPrice:          l.UnitPrice,
			UnitCost:           l.UnitCost,
			OriginalPrice:      l.OriginalPrice,
			UnitDiscount:       l.UnitDiscount,
			DiscountAmount:     l.DiscountAmount,
			DiscountReason:     l.DiscountReason,
			DiscountAuthorizer: l.DiscountAuthorizer,
			AuthorizerRole:     l.AuthorizerRole,
			PromoApplied:       l.PromoApplied,
			Subtotal:           lineSubtotal,
		}
	}

	sale.Subtotal = subtotal
	sale.Total = subtotal
	sale.TotalDiscount = totalDiscount
	sale.GrossMargin = margin

	if o.cardCommissionRate.IsPositive() && req.Payment.Card.IsPositive() {
		sale.CardCommission = req.Payment.Card.
			Mul(o.cardCommissionRate).
			Div(decimal.NewFromInt(100)).
			Round(2)
	}

	if firstDiscounted != nil {
		sale.DiscountAudit = &DiscountAudit{
			Authorizer: firstDiscounted.DiscountAuthorizer,
			Role:       firstDiscounted.AuthorizerRole,
			Reason:     firstDiscounted.DiscountReason,
			Total:      totalDiscount,
			Percent:    DiscountPercent(totalDiscount, preDiscount),
			LineCount:  discountedLines,
			AppliedAt:  now,
		}
	}
	return sale
}

func actorName(ctx context.Context) string {
	if op := pcontext.GetOperator(ctx); op != nil {
		return op.Name
	}
	return "system"
}

func actorRole(ctx context.Context) string {
	return pcontext.GetOperatorRole(ctx)
}
