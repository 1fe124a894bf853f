package dto

import (
	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/catalogs/item"
)

// --- Request DTOs ---

// MaterialRequirementRequest declares one consumed material of a service.
type MaterialRequirementRequest struct {
	MaterialID string         `json:"materialId" binding:"required,uuid"`
	PerUnit    types.Quantity `json:"perUnit" binding:"required"`
}

// CreateItemRequest for creating stock items.
type CreateItemRequest struct {
	Code      string                       `json:"code"`
	Name      string                       `json:"name" binding:"required"`
	Type      string                       `json:"type" binding:"required"`
	Barcode   *string                      `json:"barcode"`
	Unit      string                       `json:"unit"`
	SalePrice types.Money                  `json:"salePrice"`
	UnitCost  types.Money                  `json:"unitCost"`
	ForSale   *bool                        `json:"forSale"`
	Materials []MaterialRequirementRequest `json:"materials"`
}

// ToItem converts the request to a new domain item.
func (r *CreateItemRequest) ToItem() (*item.StockItem, error) {
	it := item.NewStockItem(r.Code, r.Name, item.ItemType(r.Type))
	it.Barcode = r.Barcode
	if r.Unit != "" {
		it.Unit = r.Unit
	}
	it.SalePrice = r.SalePrice
	it.UnitCost = r.UnitCost
	if r.ForSale != nil {
		it.ForSale = *r.ForSale
	}

	materials, err := toMaterials(it.ID, r.Materials)
	if err != nil {
		return nil, err
	}
	it.Materials = materials
	return it, nil
}

// UpdateItemRequest for updating stock items. Quantity is absent on
// purpose: stock changes only through the ledger.
type UpdateItemRequest struct {
	Name      *string                      `json:"name"`
	Barcode   *string                      `json:"barcode"`
	Unit      *string                      `json:"unit"`
	SalePrice *types.Money                 `json:"salePrice"`
	ForSale   *bool                        `json:"forSale"`
	Materials []MaterialRequirementRequest `json:"materials"`
	Version   int                          `json:"version" binding:"required,min=1"`
}

// Apply merges the request into the loaded item.
func (r *UpdateItemRequest) Apply(it *item.StockItem) error {
	if r.Name != nil {
		it.Name = *r.Name
	}
	if r.Barcode != nil {
		it.Barcode = r.Barcode
	}
	if r.Unit != nil {
		it.Unit = *r.Unit
	}
	if r.SalePrice != nil {
		it.SalePrice = *r.SalePrice
	}
	if r.ForSale != nil {
		it.ForSale = *r.ForSale
	}
	if r.Materials != nil {
		materials, err := toMaterials(it.ID, r.Materials)
		if err != nil {
			return err
		}
		it.Materials = materials
	}
	it.Version = r.Version
	return nil
}

func toMaterials(serviceID id.ID, reqs []MaterialRequirementRequest) ([]item.MaterialRequirement, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	materials := make([]item.MaterialRequirement, len(reqs))
	for n, m := range reqs {
		materialID, err := id.Parse(m.MaterialID)
		if err != nil {
			return nil, apperror.NewValidation("invalid materialId format").
				WithDetail("lineNo", n+1)
		}
		materials[n] = item.MaterialRequirement{
			ServiceID:  serviceID,
			MaterialID: materialID,
			PerUnit:    m.PerUnit,
		}
	}
	return materials, nil
}

// AdjustStockRequest records a manual stock correction.
type AdjustStockRequest struct {
	Delta  types.Quantity `json:"delta" binding:"required"`
	Reason string         `json:"reason" binding:"required"`
}
