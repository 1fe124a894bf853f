// Package item provides the StockItem catalog: goods and services sold at
// the register, including the material requirements of services.
package item

import (
	"context"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/entity"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

// ItemType defines whether an item is a good or a service.
type ItemType string

const (
	// TypeGoods decrement their own stock on sale.
	TypeGoods ItemType = "goods"
	// TypeService decrements the stock of its material requirements instead;
	// the service's own quantity is a soft capacity counter.
	TypeService ItemType = "service"
)

// StockItem represents a good or service available for sale.
type StockItem struct {
	entity.Catalog

	// Type defines item category
	Type ItemType `db:"type" json:"type"`

	// Barcode is the item barcode (EAN-13, etc.)
	Barcode *string `db:"barcode" json:"barcode,omitempty"`

	// Unit is the unit of measure ("pc", "kg", "h")
	Unit string `db:"unit" json:"unit"`

	// Quantity is the current stock level. Invariant: never negative.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// UnitCost is the current unit cost (weighted average)
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	// SalePrice is the current unit sale price
	SalePrice types.Money `db:"sale_price" json:"salePrice"`

	// ForSale indicates the item can be added to a cart
	ForSale bool `db:"for_sale" json:"forSale"`

	// Materials lists the stock consumed per unit of a service.
	// Empty for goods. Loaded alongside the item for services.
	Materials []MaterialRequirement `db:"-" json:"materials,omitempty"`
}

// MaterialRequirement links a service to one consumed material.
// Read-only during checkout: (serviceId, materialId, quantityPerUnit).
type MaterialRequirement struct {
	ServiceID  id.ID          `db:"service_id" json:"serviceId"`
	MaterialID id.ID          `db:"material_id" json:"materialId"`
	PerUnit    types.Quantity `db:"per_unit" json:"perUnit"`
}

// NewStockItem creates a new StockItem with required fields.
func NewStockItem(code, name string, itemType ItemType) *StockItem {
	return &StockItem{
		Catalog:   entity.NewCatalog(code, name),
		Type:      itemType,
		Unit:      "pc",
		UnitCost:  types.Zero(),
		SalePrice: types.Zero(),
		ForSale:   true,
	}
}

// IsService reports whether the item consumes materials instead of its own stock.
func (i *StockItem) IsService() bool {
	return i.Type == TypeService
}

// Validate implements entity.Validatable.
func (i *StockItem) Validate(ctx context.Context) error {
	if err := i.Catalog.Validate(ctx); err != nil {
		return err
	}

	if i.Type != TypeGoods && i.Type != TypeService {
		return apperror.NewValidation("invalid item type").
			WithDetail("field", "type").
			WithDetail("value", string(i.Type))
	}

	if i.Quantity.IsNegative() {
		return apperror.NewValidation("stock quantity cannot be negative").
			WithDetail("field", "quantity")
	}

	if i.SalePrice.IsNegative() {
		return apperror.NewValidation("sale price cannot be negative").
			WithDetail("field", "salePrice")
	}

	if i.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost cannot be negative").
			WithDetail("field", "unitCost")
	}

	for n, m := range i.Materials {
		if i.Type != TypeService {
			return apperror.NewValidation("only services declare material requirements").
				WithDetail("field", "materials")
		}
		if id.IsNil(m.MaterialID) {
			return apperror.NewValidation("material is required").
				WithDetail("field", "materials").
				WithDetail("lineNo", n+1)
		}
		if !m.PerUnit.IsPositive() {
			return apperror.NewValidation("material quantity per unit must be positive").
				WithDetail("field", "materials").
				WithDetail("lineNo", n+1)
		}
	}

	return nil
}
