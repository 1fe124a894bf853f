package manufacturing

import (
	"context"
	"errors"
	"time"

	"tillpoint/internal/core/apperror"
	appctx "tillpoint/internal/core/context"
	"tillpoint/internal/core/entity"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/tx"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/catalogs/item"
	"tillpoint/internal/domain/ledger"
	"tillpoint/pkg/logger"
)

// ItemStore is the slice of the item repository the executor needs.
type ItemStore interface {
	GetForUpdate(ctx context.Context, itemID id.ID) (*item.StockItem, error)
	SetUnitCost(ctx context.Context, itemID id.ID, cost types.Money) error
}

// NumberSource issues sequential batch numbers.
type NumberSource interface {
	Next(ctx context.Context, period time.Time) (string, error)
}

// Executor plans and runs manufacturing batches.
type Executor struct {
	processes ProcessRepository
	batches   BatchRepository
	items     ItemStore
	stock     *ledger.Service
	numbers   NumberSource
	txManager tx.Manager
}

// NewExecutor creates a batch executor.
func NewExecutor(
	processes ProcessRepository,
	batches BatchRepository,
	items ItemStore,
	stock *ledger.Service,
	numbers NumberSource,
	txManager tx.Manager,
) *Executor {
	return &Executor{
		processes: processes,
		batches:   batches,
		items:     items,
		stock:     stock,
		numbers:   numbers,
		txManager: txManager,
	}
}

// ComputeMaxYield returns the largest output quantity current ingredient
// stock supports: the minimum over ingredients of available / perUnit.
// Advisory for planning screens; execution re-checks under row locks.
func (e *Executor) ComputeMaxYield(ctx context.Context, processID id.ID) (types.Quantity, error) {
	process, err := e.processes.GetByID(ctx, processID)
	if err != nil {
		return 0, err
	}
	return e.maxYield(ctx, process)
}

func (e *Executor) maxYield(ctx context.Context, process *Process) (types.Quantity, error) {
	if len(process.Ingredients) == 0 {
		return 0, apperror.NewValidation("process has no ingredients").
			WithDetail("process_id", process.ID.String())
	}

	min := types.Quantity(0)
	first := true
	for _, ing := range process.Ingredients {
		if !ing.PerUnit.IsPositive() {
			return 0, apperror.NewValidation("ingredient quantity per unit must be positive").
				WithDetail("process_id", process.ID.String())
		}
		it, err := e.items.GetForUpdate(ctx, ing.ItemID)
		if err != nil {
			return 0, err
		}
		// Integer floor at quantity resolution: both operands are 1e-4
		// fixed point, so available*scale/perUnit is the yield in the
		// same fixed point.
		yield := types.Quantity(it.Quantity.Int64Scaled() * types.QuantityScale / ing.PerUnit.Int64Scaled())
		if first || yield < min {
			min = yield
			first = false
		}
	}
	return min, nil
}

// PlanBatch records a planned batch for the process. Stock is untouched
// until execution.
func (e *Executor) PlanBatch(ctx context.Context, processID id.ID, requested types.Quantity) (*Batch, error) {
	if !requested.IsPositive() {
		return nil, apperror.NewValidation("requested quantity must be positive").
			WithDetail("quantity", requested.String())
	}
	process, err := e.processes.GetByID(ctx, processID)
	if err != nil {
		return nil, err
	}
	if process.DeletionMark {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "process is marked for deletion").
			WithDetail("process_id", processID.String())
	}

	number, err := e.numbers.Next(ctx, time.Now().UTC())
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	batch := &Batch{
		BaseDocument:      newDocument(ctx),
		Number:            number,
		ProcessID:         processID,
		Status:            StatusPlanned,
		RequestedQuantity: requested,
		IngredientCost:    types.Zero(),
		UnitCost:          types.Zero(),
	}
	if err := e.batches.Create(ctx, batch); err != nil {
		return nil, err
	}

	logger.Info(ctx, "batch planned",
		"number", batch.Number,
		"process_id", processID,
		"requested", requested,
	)
	return batch, nil
}

// ExecuteBatch consumes ingredients and produces output atomically.
// The produced quantity is the requested quantity shrunk by the process
// wastage percentage; the output item's unit cost becomes the weighted
// average of existing stock and this batch.
func (e *Executor) ExecuteBatch(ctx context.Context, batchID id.ID) (*Batch, error) {
	var executed *Batch
	var movements []ledger.StockMovement

	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		batch, err := e.batches.GetByID(ctx, batchID)
		if err != nil {
			return err
		}
		if !batch.CanExecute() {
			return apperror.NewBusinessRule(apperror.CodeBatchState,
				"batch cannot be executed from its current status").
				WithDetail("batch", batch.Number).
				WithDetail("status", string(batch.Status))
		}
		process, err := e.processes.GetByID(ctx, batch.ProcessID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		batch.Status = StatusInProcess
		batch.StartedAt = &now
		batch.Touch()
		if err := e.batches.Update(ctx, batch); err != nil {
			return err
		}

		// Lock every ingredient, then re-check yield against locked stock
		// and report every deficit at once.
		locked := make(map[id.ID]*item.StockItem, len(process.Ingredients))
		var shortfalls []apperror.Shortfall
		for _, ing := range process.Ingredients {
			it, err := e.items.GetForUpdate(ctx, ing.ItemID)
			if err != nil {
				return err
			}
			locked[ing.ItemID] = it
			needed := ing.PerUnit.Mul(batch.RequestedQuantity)
			if it.Quantity < needed {
				shortfalls = append(shortfalls, apperror.Shortfall{
					ItemID:    ing.ItemID.String(),
					Name:      it.Name,
					Requested: needed.Float64(),
					Available: it.Quantity.Float64(),
				})
			}
		}
		if len(shortfalls) > 0 {
			return apperror.NewInsufficientStock(shortfalls...)
		}

		ingredientCost := types.Zero()
		for _, ing := range process.Ingredients {
			it := locked[ing.ItemID]
			consumed := ing.PerUnit.Mul(batch.RequestedQuantity)
			movement, err := e.stock.Apply(ctx, ledger.Apply{
				ItemID:        ing.ItemID,
				Kind:          ledger.KindManufacturingOutbound,
				Delta:         consumed.Neg(),
				ReferenceID:   batch.ID,
				ReferenceType: "manufacturing_batch",
				Reference:     batch.Number,
				Actor:         actor(ctx),
				Period:        now,
			})
			if err != nil {
				return err
			}
			movements = append(movements, movement)
			ingredientCost = ingredientCost.Add(it.UnitCost.Mul(consumed.Decimal()))
		}

		produced := producedQuantity(batch.RequestedQuantity, process.WastagePercent)
		if !produced.IsPositive() {
			return apperror.NewBusinessRule(apperror.CodeBatchState,
				"wastage leaves nothing to produce").
				WithDetail("batch", batch.Number)
		}

		output, err := e.items.GetForUpdate(ctx, process.OutputItemID)
		if err != nil {
			return err
		}
		newCost := weightedAverageCost(output.Quantity, output.UnitCost, produced, ingredientCost)
		if err := e.items.SetUnitCost(ctx, process.OutputItemID, newCost); err != nil {
			return err
		}

		movement, err := e.stock.Apply(ctx, ledger.Apply{
			ItemID:        process.OutputItemID,
			Kind:          ledger.KindManufacturingInbound,
			Delta:         produced,
			ReferenceID:   batch.ID,
			ReferenceType: "manufacturing_batch",
			Reference:     batch.Number,
			Actor:         actor(ctx),
			Period:        now,
		})
		if err != nil {
			return err
		}
		movements = append(movements, movement)

		batch.Status = StatusCompleted
		batch.ProducedQuantity = produced
		batch.IngredientCost = ingredientCost
		batch.UnitCost = ingredientCost.DivRound(produced.Decimal(), 4)
		batch.CompletedAt = &now
		batch.Touch()
		if err := e.batches.Update(ctx, batch); err != nil {
			return err
		}

		executed = batch
		return nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewCommitFailure(err)
	}

	logger.Info(ctx, "batch executed",
		"number", executed.Number,
		"produced", executed.ProducedQuantity,
		"ingredient_cost", executed.IngredientCost,
		"movements", len(movements),
	)
	return executed, nil
}

// CancelBatch cancels a planned batch. Executed batches are immutable.
func (e *Executor) CancelBatch(ctx context.Context, batchID id.ID) (*Batch, error) {
	var cancelled *Batch
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		batch, err := e.batches.GetByID(ctx, batchID)
		if err != nil {
			return err
		}
		if !batch.CanCancel() {
			return apperror.NewBusinessRule(apperror.CodeBatchState,
				"only planned batches can be cancelled").
				WithDetail("batch", batch.Number).
				WithDetail("status", string(batch.Status))
		}
		batch.Status = StatusCancelled
		batch.Touch()
		if err := e.batches.Update(ctx, batch); err != nil {
			return err
		}
		cancelled = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// producedQuantity shrinks requested output by the wastage percentage,
// floored at quantity resolution.
func producedQuantity(requested types.Quantity, wastagePercent types.Money) types.Quantity {
	factor := types.MustMoney("1").Sub(wastagePercent.Div(types.MustMoney("100")))
	return types.NewQuantityFromDecimal(requested.Decimal().Mul(factor))
}

// weightedAverageCost merges existing stock valued at the old cost with
// the batch valued at its ingredient cost.
func weightedAverageCost(oldQty types.Quantity, oldCost types.Money, produced types.Quantity, batchCost types.Money) types.Money {
	totalQty := oldQty.Decimal().Add(produced.Decimal())
	if !totalQty.IsPositive() {
		return oldCost
	}
	oldValue := oldCost.Mul(oldQty.Decimal())
	return oldValue.Add(batchCost).DivRound(totalQty, 4)
}

func newDocument(ctx context.Context) entity.BaseDocument {
	doc := entity.NewBaseDocument()
	doc.CreatedBy = actor(ctx)
	doc.UpdatedBy = doc.CreatedBy
	return doc
}

func actor(ctx context.Context) string {
	if op := appctx.GetOperator(ctx); op != nil {
		return op.Name
	}
	return "system"
}
