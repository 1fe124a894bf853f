package ledger

import (
	"context"
	"fmt"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/pkg/logger"
)

// StockObserver is notified after a stock change has been committed.
// The presentation layer subscribes here; the engine never reaches into
// screens or callers.
type StockObserver interface {
	OnStockChanged(ctx context.Context, movement StockMovement)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) OnStockChanged(context.Context, StockMovement) {}

// Apply describes one stock change to record.
type Apply struct {
	ItemID id.ID
	Kind   MovementKind

	// Delta is the signed quantity change (negative for outbound kinds).
	Delta types.Quantity

	ReferenceID   id.ID
	ReferenceType string
	Reference     string
	Actor         string
	Period        time.Time
}

// Service is the stock-mutation primitive. Every change to an item's
// quantity goes through Apply, which pairs the conditional quantity change
// with exactly one movement whose before/after bracket the change.
//
// Transactions are managed by the caller (checkout or batch executor):
// Apply must run inside the caller's atomic unit.
type Service struct {
	repo  Repository
	items ItemMutator
}

// NewService creates a new stock ledger service.
func NewService(repo Repository, items ItemMutator) *Service {
	return &Service{
		repo:  repo,
		items: items,
	}
}

// Apply changes the item's stock and appends the matching ledger entry.
// No code path may change quantity without writing the movement, and no
// movement is written without the quantity actually changing.
func (s *Service) Apply(ctx context.Context, req Apply) (StockMovement, error) {
	if !IsValidKind(req.Kind) {
		return StockMovement{}, apperror.NewValidation(fmt.Sprintf("unknown movement kind %q", req.Kind))
	}
	if req.Delta.IsZero() {
		return StockMovement{}, apperror.NewValidation("movement delta must be non-zero")
	}
	if direction := kindDirection(req.Kind); direction != 0 {
		if (direction < 0) != req.Delta.IsNegative() {
			return StockMovement{}, apperror.NewValidation(
				fmt.Sprintf("movement kind %q does not match delta sign", req.Kind))
		}
	}

	before, after, err := s.items.AdjustQuantity(ctx, req.ItemID, req.Delta)
	if err != nil {
		return StockMovement{}, err
	}

	period := req.Period
	if period.IsZero() {
		period = time.Now().UTC()
	}

	movement := StockMovement{
		LineID:        id.New(),
		ItemID:        req.ItemID,
		Kind:          req.Kind,
		Quantity:      req.Delta,
		StockBefore:   before,
		StockAfter:    after,
		ReferenceID:   req.ReferenceID,
		ReferenceType: req.ReferenceType,
		Reference:     req.Reference,
		Actor:         req.Actor,
		Period:        period,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repo.CreateMovements(ctx, []StockMovement{movement}); err != nil {
		return StockMovement{}, fmt.Errorf("create movement: %w", err)
	}

	logger.Debug(ctx, "stock movement recorded",
		"item_id", req.ItemID,
		"kind", req.Kind,
		"delta", req.Delta,
		"stock_after", after,
	)

	return movement, nil
}

// kindDirection returns -1 for outbound-only kinds, +1 for inbound-only
// kinds, 0 when either direction is allowed.
func kindDirection(k MovementKind) int {
	switch k {
	case KindSaleOutbound, KindManufacturingOutbound, KindLogicalDeletion:
		return -1
	case KindManufacturingInbound:
		return 1
	}
	return 0
}

// GetMovementsByReference returns all movements written for a document.
func (s *Service) GetMovementsByReference(ctx context.Context, referenceID id.ID) ([]StockMovement, error) {
	return s.repo.GetMovementsByReference(ctx, referenceID)
}

// GetMovementHistory returns movement history for an item.
func (s *Service) GetMovementHistory(ctx context.Context, itemID id.ID, filter MovementFilter) ([]StockMovement, error) {
	return s.repo.GetMovementHistory(ctx, itemID, filter)
}

// GetTurnover calculates inbound/outbound totals for the period.
func (s *Service) GetTurnover(ctx context.Context, filter TurnoverFilter) (Turnover, error) {
	return s.repo.GetTurnover(ctx, filter)
}
