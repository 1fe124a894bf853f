// Package ledger provides the append-only stock movement log and the
// stock-mutation primitive shared by sales and manufacturing.
package ledger

import (
	"time"

	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

// MovementKind classifies why stock changed.
type MovementKind string

const (
	// KindSaleOutbound decreases stock for a committed sale line.
	KindSaleOutbound MovementKind = "sale_outbound"
	// KindManufacturingOutbound decreases stock for consumed ingredients.
	KindManufacturingOutbound MovementKind = "manufacturing_outbound"
	// KindManufacturingInbound increases stock for a produced finished good.
	KindManufacturingInbound MovementKind = "manufacturing_inbound"
	// KindAdjustment records a manual stock correction (either direction).
	KindAdjustment MovementKind = "adjustment"
	// KindLogicalDeletion zeroes remaining stock when an item is soft-deleted.
	KindLogicalDeletion MovementKind = "logical_deletion"
)

// IsValidKind reports whether k is a known movement kind.
func IsValidKind(k MovementKind) bool {
	switch k {
	case KindSaleOutbound, KindManufacturingOutbound, KindManufacturingInbound,
		KindAdjustment, KindLogicalDeletion:
		return true
	}
	return false
}

// StockMovement is one entry in the stock ledger.
// Movements are immutable: they are never updated or deleted, and they are
// the sole source of truth for reconstructing stock history.
type StockMovement struct {
	// LineID is unique identifier for this movement line (UUIDv7)
	LineID id.ID `db:"line_id" json:"lineId"`

	// ItemID is the stock item whose quantity changed
	ItemID id.ID `db:"item_id" json:"itemId"`

	// Kind classifies the movement
	Kind MovementKind `db:"kind" json:"kind"`

	// Quantity is the signed change applied to the item.
	// Invariant: StockAfter = StockBefore + Quantity.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// StockBefore / StockAfter bracket the change within the same
	// atomic operation that performed it.
	StockBefore types.Quantity `db:"stock_before" json:"stockBefore"`
	StockAfter  types.Quantity `db:"stock_after" json:"stockAfter"`

	// ReferenceID is the document (sale, batch) that caused the movement
	ReferenceID id.ID `db:"reference_id" json:"referenceId"`

	// ReferenceType is the document type ("Sale", "ManufacturingBatch", ...)
	ReferenceType string `db:"reference_type" json:"referenceType"`

	// Reference is the human-readable document number (ticket, batch number)
	Reference string `db:"reference" json:"reference,omitempty"`

	// Actor is the operator who drove the operation
	Actor string `db:"actor" json:"actor,omitempty"`

	// Period is the business date of the movement
	Period time.Time `db:"period" json:"period"`

	// CreatedAt is when the movement was recorded
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Reconciles reports whether the before/after bracket matches the quantity.
func (m *StockMovement) Reconciles() bool {
	return m.StockAfter == m.StockBefore+m.Quantity
}
