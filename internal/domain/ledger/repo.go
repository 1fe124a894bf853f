package ledger

import (
	"context"
	"time"

	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

// Repository defines persistence for the stock ledger.
// The ledger is append-only: there is no update or delete operation.
type Repository interface {
	// CreateMovements batch inserts movements (used inside atomic commits)
	CreateMovements(ctx context.Context, movements []StockMovement) error

	// GetMovementsByReference retrieves all movements for a document
	GetMovementsByReference(ctx context.Context, referenceID id.ID) ([]StockMovement, error)

	// GetMovementHistory returns movement history for an item
	GetMovementHistory(ctx context.Context, itemID id.ID, filter MovementFilter) ([]StockMovement, error)

	// GetTurnover calculates inbound and outbound totals for a period
	GetTurnover(ctx context.Context, filter TurnoverFilter) (Turnover, error)
}

// ItemMutator applies the conditional stock change paired with every
// movement. AdjustQuantity must be a "change if resulting stock >= 0"
// operation, never a blind add, so two concurrent sales racing on the same
// item cannot drive stock negative.
type ItemMutator interface {
	// AdjustQuantity applies delta to the item's stock and returns the
	// quantity before and after the change. Returns an insufficient-stock
	// error when the result would be negative.
	AdjustQuantity(ctx context.Context, itemID id.ID, delta types.Quantity) (before, after types.Quantity, err error)
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	Kind     *MovementKind
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}

// TurnoverFilter for turnover reports.
type TurnoverFilter struct {
	ItemID   *id.ID
	FromDate time.Time
	ToDate   time.Time
}

// Turnover represents inbound/outbound totals for a period.
type Turnover struct {
	ItemID         id.ID          `json:"itemId,omitempty"`
	OpeningBalance types.Quantity `json:"openingBalance"`
	Inbound        types.Quantity `json:"inbound"`
	Outbound       types.Quantity `json:"outbound"`
	ClosingBalance types.Quantity `json:"closingBalance"`
}
