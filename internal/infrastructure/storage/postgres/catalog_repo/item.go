package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/catalogs/item"
	"tillpoint/internal/domain/ledger"
	"tillpoint/internal/infrastructure/storage/postgres"
)

const (
	itemsTable     = "cat_items"
	materialsTable = "cat_item_materials"
)

// ItemRepo implements item.Repository. The AdjustQuantity primitive is
// the single place stock levels change: a conditional UPDATE that fails
// instead of driving stock negative.
type ItemRepo struct {
	*BaseCatalogRepo[*item.StockItem]
	txManager *postgres.TxManager
}

// NewItemRepo creates a new stock item repository.
func NewItemRepo(txManager *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			itemsTable,
			postgres.ExtractDBColumns[item.StockItem](),
			func() *item.StockItem { return &item.StockItem{} },
		),
		txManager: txManager,
	}
}

// GetByID loads an item; services get their material requirements too.
func (r *ItemRepo) GetByID(ctx context.Context, itemID id.ID) (*item.StockItem, error) {
	it, err := r.BaseCatalogRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := r.loadMaterials(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// GetForUpdate loads an item with a row lock. The stock value read here
// is authoritative for the duration of the enclosing transaction.
func (r *ItemRepo) GetForUpdate(ctx context.Context, itemID id.ID) (*item.StockItem, error) {
	it, err := r.BaseCatalogRepo.GetForUpdate(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := r.loadMaterials(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// GetByBarcode resolves a scanned barcode to an item.
func (r *ItemRepo) GetByBarcode(ctx context.Context, barcode string) (*item.StockItem, error) {
	it := &item.StockItem{}

	q := r.Builder().
		Select(postgres.ExtractDBColumns[item.StockItem]()...).
		From(itemsTable).
		Where(squirrel.Eq{"barcode": barcode}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.Querier(ctx), it, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(itemsTable, barcode)
		}
		return nil, fmt.Errorf("get by barcode: %w", err)
	}

	if err := r.loadMaterials(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// List returns items matching the filter, ordered by name.
func (r *ItemRepo) List(ctx context.Context, filter item.ListFilter) ([]*item.StockItem, error) {
	q := r.Builder().
		Select(postgres.ExtractDBColumns[item.StockItem]()...).
		From(itemsTable).
		Where(squirrel.Eq{"deletion_mark": false})

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}

	if filter.ForSaleOnly {
		q = q.Where(squirrel.Eq{"for_sale": true})
	}

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
			squirrel.Eq{"barcode": filter.Search},
		})
	}

	q = q.OrderBy("name ASC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return r.FindMany(ctx, q)
}

// AdjustQuantity applies delta to the item's stock. The WHERE clause
// rejects any change that would leave the quantity negative, so two
// concurrent checkouts racing on the last unit cannot both win.
func (r *ItemRepo) AdjustQuantity(ctx context.Context, itemID id.ID, delta types.Quantity) (types.Quantity, types.Quantity, error) {
	sql := `
		UPDATE cat_items
		SET quantity = quantity + $2
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING quantity
	`

	var afterScaled int64
	err := r.Querier(ctx).QueryRow(ctx, sql, itemID, delta.Int64Scaled()).Scan(&afterScaled)
	if err == nil {
		after := types.NewQuantityFromInt64Scaled(afterScaled)
		return after - delta, after, nil
	}
	if err != pgx.ErrNoRows {
		return 0, 0, fmt.Errorf("adjust quantity: %w", err)
	}

	// Update matched nothing: distinguish a missing item from a shortfall.
	var name string
	var availableScaled int64
	err = r.Querier(ctx).QueryRow(ctx,
		`SELECT name, quantity FROM cat_items WHERE id = $1`, itemID,
	).Scan(&name, &availableScaled)
	if err == pgx.ErrNoRows {
		return 0, 0, apperror.NewNotFound(itemsTable, itemID.String())
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read quantity: %w", err)
	}

	return 0, 0, apperror.NewInsufficientStock(apperror.Shortfall{
		ItemID:    itemID.String(),
		Name:      name,
		Requested: delta.Neg().Float64(),
		Available: types.NewQuantityFromInt64Scaled(availableScaled).Float64(),
	})
}

// SetUnitCost stores a recomputed weighted-average unit cost.
func (r *ItemRepo) SetUnitCost(ctx context.Context, itemID id.ID, cost types.Money) error {
	q := r.Builder().
		Update(itemsTable).
		Set("unit_cost", cost).
		Where(squirrel.Eq{"id": itemID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set unit cost: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(itemsTable, itemID.String())
	}

	return nil
}

// SaveMaterials replaces the material requirement list of a service.
// Inside a transaction the delete and inserts go out in one round-trip.
func (r *ItemRepo) SaveMaterials(ctx context.Context, serviceID id.ID, materials []item.MaterialRequirement) error {
	queries := []postgres.BatchQuery{{
		SQL:  `DELETE FROM cat_item_materials WHERE service_id = $1`,
		Args: []any{serviceID},
	}}

	for _, m := range materials {
		queries = append(queries, postgres.BatchQuery{
			SQL: `INSERT INTO cat_item_materials (service_id, material_id, per_unit)
				  VALUES ($1, $2, $3)`,
			Args: []any{serviceID, m.MaterialID, m.PerUnit.Int64Scaled()},
		})
	}

	if r.txManager.GetTx(ctx) != nil {
		return postgres.NewBatchExecutor(r.txManager).ExecuteBatch(ctx, queries)
	}

	for _, q := range queries {
		if _, err := r.Querier(ctx).Exec(ctx, q.SQL, q.Args...); err != nil {
			return fmt.Errorf("save materials: %w", err)
		}
	}
	return nil
}

// loadMaterials populates the Materials slice for service items.
func (r *ItemRepo) loadMaterials(ctx context.Context, it *item.StockItem) error {
	if !it.IsService() {
		return nil
	}

	q := r.Builder().
		Select("service_id", "material_id", "per_unit").
		From(materialsTable).
		Where(squirrel.Eq{"service_id": it.ID}).
		OrderBy("material_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var materials []item.MaterialRequirement
	if err := pgxscan.Select(ctx, r.Querier(ctx), &materials, sql, args...); err != nil {
		return fmt.Errorf("load materials: %w", err)
	}

	it.Materials = materials
	return nil
}

// Ensure interface compliance.
var (
	_ item.Repository    = (*ItemRepo)(nil)
	_ ledger.ItemMutator = (*ItemRepo)(nil)
)
