package dto

import (
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/entity"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/promo"
)

// --- Request DTOs ---

// CreatePromotionRequest for creating promotion definitions.
type CreatePromotionRequest struct {
	Code            string         `json:"code"`
	Name            string         `json:"name" binding:"required"`
	Type            string         `json:"type" binding:"required"`
	Value           types.Money    `json:"value"`
	MinimumAmount   types.Money    `json:"minimumAmount"`
	MinimumQuantity types.Quantity `json:"minimumQuantity"`
	MaximumDiscount *types.Money   `json:"maximumDiscount"`
	ItemIDs         []string       `json:"itemIds"`
	Combinable      bool           `json:"combinable"`
	Priority        int            `json:"priority"`
	ValidFrom       *time.Time     `json:"validFrom"`
	ValidTo         *time.Time     `json:"validTo"`
	Condition       string         `json:"condition"`
}

// ToDefinition converts the request to a new domain definition.
func (r *CreatePromotionRequest) ToDefinition() (*promo.Definition, error) {
	def := &promo.Definition{
		Catalog:         entity.NewCatalog(r.Code, r.Name),
		Type:            promo.PromotionType(r.Type),
		Value:           r.Value,
		MinimumAmount:   r.MinimumAmount,
		MinimumQuantity: r.MinimumQuantity,
		MaximumDiscount: r.MaximumDiscount,
		Combinable:      r.Combinable,
		Priority:        r.Priority,
		Condition:       r.Condition,
	}
	if r.ValidFrom != nil {
		def.ValidFrom = *r.ValidFrom
	}
	if r.ValidTo != nil {
		def.ValidTo = *r.ValidTo
	}

	itemIDs, err := parseIDList(r.ItemIDs)
	if err != nil {
		return nil, err
	}
	def.ItemIDs = itemIDs
	return def, nil
}

// UpdatePromotionRequest for updating promotion definitions.
type UpdatePromotionRequest struct {
	Name            *string         `json:"name"`
	Value           *types.Money    `json:"value"`
	MinimumAmount   *types.Money    `json:"minimumAmount"`
	MinimumQuantity *types.Quantity `json:"minimumQuantity"`
	MaximumDiscount *types.Money    `json:"maximumDiscount"`
	ItemIDs         []string        `json:"itemIds"`
	Combinable      *bool           `json:"combinable"`
	Priority        *int            `json:"priority"`
	ValidFrom       *time.Time      `json:"validFrom"`
	ValidTo         *time.Time      `json:"validTo"`
	Condition       *string         `json:"condition"`
	Version         int             `json:"version" binding:"required,min=1"`
}

// Apply merges the request into the loaded definition.
func (r *UpdatePromotionRequest) Apply(def *promo.Definition) error {
	if r.Name != nil {
		def.Name = *r.Name
	}
	if r.Value != nil {
		def.Value = *r.Value
	}
	if r.MinimumAmount != nil {
		def.MinimumAmount = *r.MinimumAmount
	}
	if r.MinimumQuantity != nil {
		def.MinimumQuantity = *r.MinimumQuantity
	}
	if r.MaximumDiscount != nil {
		def.MaximumDiscount = r.MaximumDiscount
	}
	if r.ItemIDs != nil {
		itemIDs, err := parseIDList(r.ItemIDs)
		if err != nil {
			return err
		}
		def.ItemIDs = itemIDs
	}
	if r.Combinable != nil {
		def.Combinable = *r.Combinable
	}
	if r.Priority != nil {
		def.Priority = *r.Priority
	}
	if r.ValidFrom != nil {
		def.ValidFrom = *r.ValidFrom
	}
	if r.ValidTo != nil {
		def.ValidTo = *r.ValidTo
	}
	if r.Condition != nil {
		def.Condition = *r.Condition
	}
	def.Version = r.Version
	return nil
}

func parseIDList(raw []string) ([]id.ID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]id.ID, len(raw))
	for n, s := range raw {
		parsed, err := id.Parse(s)
		if err != nil {
			return nil, apperror.NewValidation("invalid item id format").
				WithDetail("value", s)
		}
		ids[n] = parsed
	}
	return ids, nil
}

// --- Response DTOs ---

// DiscountPreviewResponse is the stacked promotion discount for the cart.
type DiscountPreviewResponse struct {
	Discount types.Money `json:"discount"`
	Subtotal types.Money `json:"subtotal"`
	Total    types.Money `json:"total"`
}
