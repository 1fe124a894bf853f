// Package manufacturing converts ingredient stock into produced goods
// through recorded batches: consumption and production commit atomically
// and the produced item's cost is recalculated as a weighted average.
package manufacturing

import (
	"context"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/entity"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

// Process is the recipe catalog: which item a batch produces and what it
// consumes per unit of output.
type Process struct {
	entity.Catalog

	// OutputItemID is the goods item the process produces
	OutputItemID id.ID `db:"output_item_id" json:"outputItemId"`

	// WastagePercent shrinks requested quantity to produced quantity,
	// 0..100 as a percentage
	WastagePercent types.Money `db:"wastage_percent" json:"wastagePercent"`

	// Ingredients consumed per unit of output. Loaded with the process.
	Ingredients []Ingredient `db:"-" json:"ingredients"`
}

// Ingredient is one consumed input of a process.
type Ingredient struct {
	ProcessID id.ID          `db:"process_id" json:"processId"`
	ItemID    id.ID          `db:"item_id" json:"itemId"`
	ItemName  string         `db:"item_name" json:"itemName,omitempty"`
	PerUnit   types.Quantity `db:"per_unit" json:"perUnit"`
}

// Validate implements entity.Validatable.
func (p *Process) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(p.OutputItemID) {
		return apperror.NewValidation("output item is required").
			WithDetail("field", "outputItemId")
	}
	if p.WastagePercent.IsNegative() || p.WastagePercent.GreaterThan(types.MustMoney("100")) {
		return apperror.NewValidation("wastage percent must be within 0..100").
			WithDetail("field", "wastagePercent").
			WithDetail("value", p.WastagePercent.String())
	}
	if len(p.Ingredients) == 0 {
		return apperror.NewValidation("process requires at least one ingredient").
			WithDetail("field", "ingredients")
	}
	for n, ing := range p.Ingredients {
		if id.IsNil(ing.ItemID) {
			return apperror.NewValidation("ingredient item is required").
				WithDetail("field", "ingredients").
				WithDetail("lineNo", n+1)
		}
		if !ing.PerUnit.IsPositive() {
			return apperror.NewValidation("ingredient quantity per unit must be positive").
				WithDetail("field", "ingredients").
				WithDetail("lineNo", n+1)
		}
	}
	return nil
}

// BatchStatus is the batch lifecycle state.
type BatchStatus string

const (
	StatusPlanned   BatchStatus = "planned"
	StatusInProcess BatchStatus = "in_process"
	StatusCompleted BatchStatus = "completed"
	StatusCancelled BatchStatus = "cancelled"
)

// Batch is one manufacturing run of a process.
type Batch struct {
	entity.BaseDocument

	Number    string      `db:"number" json:"number"`
	ProcessID id.ID       `db:"process_id" json:"processId"`
	Status    BatchStatus `db:"status" json:"status"`

	// RequestedQuantity is the planned output before wastage
	RequestedQuantity types.Quantity `db:"requested_quantity" json:"requestedQuantity"`

	// ProducedQuantity is the actual output after wastage, set on completion
	ProducedQuantity types.Quantity `db:"produced_quantity" json:"producedQuantity"`

	// IngredientCost is the total cost of consumed stock at consumption-time
	// unit costs
	IngredientCost types.Money `db:"ingredient_cost" json:"ingredientCost"`

	// UnitCost is IngredientCost spread over ProducedQuantity
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	StartedAt   *time.Time `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

// CanExecute reports whether the batch may start.
func (b *Batch) CanExecute() bool {
	return b.Status == StatusPlanned
}

// CanCancel reports whether the batch may be cancelled.
func (b *Batch) CanCancel() bool {
	return b.Status == StatusPlanned
}

// ProcessRepository persists process recipes.
type ProcessRepository interface {
	Create(ctx context.Context, p *Process) error
	Update(ctx context.Context, p *Process) error
	GetByID(ctx context.Context, processID id.ID) (*Process, error)
	List(ctx context.Context, includeDeleted bool) ([]Process, error)
}

// BatchRepository persists manufacturing batches.
type BatchRepository interface {
	Create(ctx context.Context, b *Batch) error
	Update(ctx context.Context, b *Batch) error
	GetByID(ctx context.Context, batchID id.ID) (*Batch, error)
	List(ctx context.Context, filter BatchFilter) ([]Batch, error)
}

// BatchFilter narrows batch listings.
type BatchFilter struct {
	ProcessID *id.ID
	Status    *BatchStatus
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
