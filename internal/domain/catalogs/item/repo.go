package item

import (
	"context"

	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

// Repository defines persistence for the StockItem catalog.
type Repository interface {
	Create(ctx context.Context, item *StockItem) error
	Update(ctx context.Context, item *StockItem) error

	// GetByID loads an item; for services the material requirements are
	// loaded as well.
	GetByID(ctx context.Context, itemID id.ID) (*StockItem, error)

	// GetForUpdate loads an item with a row lock. Used inside atomic
	// commits so that the stock re-read is authoritative, never cached.
	GetForUpdate(ctx context.Context, itemID id.ID) (*StockItem, error)

	// GetByBarcode resolves a scanned barcode to an item.
	GetByBarcode(ctx context.Context, barcode string) (*StockItem, error)

	// List returns items matching the filter.
	List(ctx context.Context, filter ListFilter) ([]*StockItem, error)

	// AdjustQuantity conditionally changes stock: the update applies only
	// when the resulting quantity stays >= 0, and returns the bracketing
	// values. Implements ledger.ItemMutator.
	AdjustQuantity(ctx context.Context, itemID id.ID, delta types.Quantity) (before, after types.Quantity, err error)

	// SetUnitCost stores a recomputed weighted-average unit cost.
	SetUnitCost(ctx context.Context, itemID id.ID, cost types.Money) error

	// SaveMaterials replaces the material requirement list of a service.
	SaveMaterials(ctx context.Context, serviceID id.ID, materials []MaterialRequirement) error
}

// ListFilter for item queries.
type ListFilter struct {
	Type        *ItemType
	ForSaleOnly bool
	Search      string
	Limit       int
	Offset      int
}
