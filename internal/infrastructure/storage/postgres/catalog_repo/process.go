package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/manufacturing"
	"tillpoint/internal/infrastructure/storage/postgres"
)

const (
	processesTable   = "cat_processes"
	ingredientsTable = "cat_process_ingredients"
)

// ProcessRepo implements manufacturing.ProcessRepository.
type ProcessRepo struct {
	*BaseCatalogRepo[*manufacturing.Process]
	txManager *postgres.TxManager
}

// NewProcessRepo creates a new process repository.
func NewProcessRepo(txManager *postgres.TxManager) *ProcessRepo {
	return &ProcessRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			processesTable,
			postgres.ExtractDBColumns[manufacturing.Process](),
			func() *manufacturing.Process { return &manufacturing.Process{} },
		),
		txManager: txManager,
	}
}

// Create inserts the recipe header and its ingredient list.
func (r *ProcessRepo) Create(ctx context.Context, p *manufacturing.Process) error {
	if err := r.BaseCatalogRepo.Create(ctx, p); err != nil {
		return err
	}
	return r.saveIngredients(ctx, p.ID, p.Ingredients)
}

// Update modifies the recipe and replaces its ingredient list.
func (r *ProcessRepo) Update(ctx context.Context, p *manufacturing.Process) error {
	if err := r.BaseCatalogRepo.Update(ctx, p); err != nil {
		return err
	}
	return r.saveIngredients(ctx, p.ID, p.Ingredients)
}

// GetByID loads a recipe with its ingredients.
func (r *ProcessRepo) GetByID(ctx context.Context, processID id.ID) (*manufacturing.Process, error) {
	p, err := r.BaseCatalogRepo.GetByID(ctx, processID)
	if err != nil {
		return nil, err
	}
	if err := r.loadIngredients(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns recipes ordered by name.
func (r *ProcessRepo) List(ctx context.Context, includeDeleted bool) ([]manufacturing.Process, error) {
	q := r.Builder().
		Select(postgres.ExtractDBColumns[manufacturing.Process]()...).
		From(processesTable)

	if !includeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}

	q = q.OrderBy("name ASC")

	ptrs, err := r.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}

	processes := make([]manufacturing.Process, 0, len(ptrs))
	for _, p := range ptrs {
		if err := r.loadIngredients(ctx, p); err != nil {
			return nil, err
		}
		processes = append(processes, *p)
	}
	return processes, nil
}

func (r *ProcessRepo) saveIngredients(ctx context.Context, processID id.ID, ingredients []manufacturing.Ingredient) error {
	queries := []postgres.BatchQuery{{
		SQL:  `DELETE FROM cat_process_ingredients WHERE process_id = $1`,
		Args: []any{processID},
	}}

	for _, ing := range ingredients {
		queries = append(queries, postgres.BatchQuery{
			SQL: `INSERT INTO cat_process_ingredients (process_id, item_id, per_unit)
				  VALUES ($1, $2, $3)`,
			Args: []any{processID, ing.ItemID, ing.PerUnit.Int64Scaled()},
		})
	}

	if r.txManager.GetTx(ctx) != nil {
		return postgres.NewBatchExecutor(r.txManager).ExecuteBatch(ctx, queries)
	}

	for _, q := range queries {
		if _, err := r.Querier(ctx).Exec(ctx, q.SQL, q.Args...); err != nil {
			return fmt.Errorf("save ingredients: %w", err)
		}
	}
	return nil
}

// loadIngredients joins the item name so callers can report shortfalls
// without another lookup.
func (r *ProcessRepo) loadIngredients(ctx context.Context, p *manufacturing.Process) error {
	q := r.Builder().
		Select("i.process_id", "i.item_id", "it.name AS item_name", "i.per_unit").
		From(ingredientsTable + " i").
		Join(itemsTable + " it ON it.id = i.item_id").
		Where(squirrel.Eq{"i.process_id": p.ID}).
		OrderBy("i.item_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var ingredients []manufacturing.Ingredient
	if err := pgxscan.Select(ctx, r.Querier(ctx), &ingredients, sql, args...); err != nil {
		return fmt.Errorf("load ingredients: %w", err)
	}

	p.Ingredients = ingredients
	return nil
}

// Ensure interface compliance.
var _ manufacturing.ProcessRepository = (*ProcessRepo)(nil)
