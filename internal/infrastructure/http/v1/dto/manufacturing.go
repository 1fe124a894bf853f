package dto

import (
	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/entity"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/manufacturing"
)

// --- Request DTOs ---

// IngredientRequest declares one consumed input of a process.
type IngredientRequest struct {
	ItemID  string         `json:"itemId" binding:"required,uuid"`
	PerUnit types.Quantity `json:"perUnit" binding:"required"`
}

// CreateProcessRequest for creating process recipes.
type CreateProcessRequest struct {
	Code           string              `json:"code"`
	Name           string              `json:"name" binding:"required"`
	OutputItemID   string              `json:"outputItemId" binding:"required,uuid"`
	WastagePercent types.Money         `json:"wastagePercent"`
	Ingredients    []IngredientRequest `json:"ingredients" binding:"required"`
}

// ToProcess converts the request to a new domain process.
func (r *CreateProcessRequest) ToProcess() (*manufacturing.Process, error) {
	outputID, err := id.Parse(r.OutputItemID)
	if err != nil {
		return nil, apperror.NewValidation("invalid outputItemId format")
	}
	p := &manufacturing.Process{
		Catalog:        entity.NewCatalog(r.Code, r.Name),
		OutputItemID:   outputID,
		WastagePercent: r.WastagePercent,
	}
	ingredients, err := toIngredients(p.ID, r.Ingredients)
	if err != nil {
		return nil, err
	}
	p.Ingredients = ingredients
	return p, nil
}

// UpdateProcessRequest for updating process recipes.
type UpdateProcessRequest struct {
	Name           *string             `json:"name"`
	OutputItemID   *string             `json:"outputItemId"`
	WastagePercent *types.Money        `json:"wastagePercent"`
	Ingredients    []IngredientRequest `json:"ingredients"`
	Version        int                 `json:"version" binding:"required,min=1"`
}

// Apply merges the request into the loaded process.
func (r *UpdateProcessRequest) Apply(p *manufacturing.Process) error {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.OutputItemID != nil {
		outputID, err := id.Parse(*r.OutputItemID)
		if err != nil {
			return apperror.NewValidation("invalid outputItemId format")
		}
		p.OutputItemID = outputID
	}
	if r.WastagePercent != nil {
		p.WastagePercent = *r.WastagePercent
	}
	if r.Ingredients != nil {
		ingredients, err := toIngredients(p.ID, r.Ingredients)
		if err != nil {
			return err
		}
		p.Ingredients = ingredients
	}
	p.Version = r.Version
	return nil
}

func toIngredients(processID id.ID, reqs []IngredientRequest) ([]manufacturing.Ingredient, error) {
	ingredients := make([]manufacturing.Ingredient, len(reqs))
	for n, ing := range reqs {
		itemID, err := id.Parse(ing.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid ingredient itemId format").
				WithDetail("lineNo", n+1)
		}
		ingredients[n] = manufacturing.Ingredient{
			ProcessID: processID,
			ItemID:    itemID,
			PerUnit:   ing.PerUnit,
		}
	}
	return ingredients, nil
}

// PlanBatchRequest plans a manufacturing run.
type PlanBatchRequest struct {
	ProcessID string         `json:"processId" binding:"required,uuid"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
}

// --- Response DTOs ---

// MaxYieldResponse is the advisory output limit of current stock.
type MaxYieldResponse struct {
	ProcessID string         `json:"processId"`
	MaxYield  types.Quantity `json:"maxYield"`
}
