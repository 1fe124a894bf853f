package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/promo"
	"tillpoint/internal/infrastructure/storage/postgres"
)

const (
	promotionsTable     = "cat_promotions"
	promotionItemsTable = "cat_promotion_items"
)

// PromotionRepo implements promo.Repository.
type PromotionRepo struct {
	*BaseCatalogRepo[*promo.Definition]
	txManager *postgres.TxManager
}

// NewPromotionRepo creates a new promotion repository.
func NewPromotionRepo(txManager *postgres.TxManager) *PromotionRepo {
	return &PromotionRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			promotionsTable,
			postgres.ExtractDBColumns[promo.Definition](),
			func() *promo.Definition { return &promo.Definition{} },
		),
		txManager: txManager,
	}
}

// Create inserts the definition and its item scope.
func (r *PromotionRepo) Create(ctx context.Context, def *promo.Definition) error {
	if err := r.BaseCatalogRepo.Create(ctx, def); err != nil {
		return err
	}
	return r.saveItemScope(ctx, def.ID, def.ItemIDs)
}

// Update modifies the definition and replaces its item scope.
func (r *PromotionRepo) Update(ctx context.Context, def *promo.Definition) error {
	if err := r.BaseCatalogRepo.Update(ctx, def); err != nil {
		return err
	}
	return r.saveItemScope(ctx, def.ID, def.ItemIDs)
}

// GetByID loads a definition with its item scope.
func (r *PromotionRepo) GetByID(ctx context.Context, defID id.ID) (*promo.Definition, error) {
	def, err := r.BaseCatalogRepo.GetByID(ctx, defID)
	if err != nil {
		return nil, err
	}
	if err := r.loadItemScopes(ctx, []*promo.Definition{def}); err != nil {
		return nil, err
	}
	return def, nil
}

// ListActive returns definitions active at the given time, ordered by
// ascending priority. A zero valid_from/valid_to means unbounded.
func (r *PromotionRepo) ListActive(ctx context.Context, at time.Time) ([]*promo.Definition, error) {
	var zero time.Time

	q := r.Builder().
		Select(postgres.ExtractDBColumns[promo.Definition]()...).
		From(promotionsTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.Or{
			squirrel.LtOrEq{"valid_from": at},
			squirrel.Eq{"valid_from": zero},
		}).
		Where(squirrel.Or{
			squirrel.GtOrEq{"valid_to": at},
			squirrel.Eq{"valid_to": zero},
		}).
		OrderBy("priority ASC", "code ASC")

	defs, err := r.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := r.loadItemScopes(ctx, defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// saveItemScope replaces the promotion's item list.
func (r *PromotionRepo) saveItemScope(ctx context.Context, defID id.ID, itemIDs []id.ID) error {
	queries := []postgres.BatchQuery{{
		SQL:  `DELETE FROM cat_promotion_items WHERE promotion_id = $1`,
		Args: []any{defID},
	}}

	for _, itemID := range itemIDs {
		queries = append(queries, postgres.BatchQuery{
			SQL:  `INSERT INTO cat_promotion_items (promotion_id, item_id) VALUES ($1, $2)`,
			Args: []any{defID, itemID},
		})
	}

	if r.txManager.GetTx(ctx) != nil {
		return postgres.NewBatchExecutor(r.txManager).ExecuteBatch(ctx, queries)
	}

	for _, q := range queries {
		if _, err := r.Querier(ctx).Exec(ctx, q.SQL, q.Args...); err != nil {
			return fmt.Errorf("save item scope: %w", err)
		}
	}
	return nil
}

// loadItemScopes populates ItemIDs for all given definitions in one query.
func (r *PromotionRepo) loadItemScopes(ctx context.Context, defs []*promo.Definition) error {
	if len(defs) == 0 {
		return nil
	}

	byID := make(map[id.ID]*promo.Definition, len(defs))
	ids := make([]id.ID, 0, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
		ids = append(ids, def.ID)
	}

	q := r.Builder().
		Select("promotion_id", "item_id").
		From(promotionItemsTable).
		Where(squirrel.Eq{"promotion_id": ids}).
		OrderBy("promotion_id", "item_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var rows []struct {
		PromotionID id.ID `db:"promotion_id"`
		ItemID      id.ID `db:"item_id"`
	}
	if err := pgxscan.Select(ctx, r.Querier(ctx), &rows, sql, args...); err != nil {
		return fmt.Errorf("load item scopes: %w", err)
	}

	for _, row := range rows {
		if def, ok := byID[row.PromotionID]; ok {
			def.ItemIDs = append(def.ItemIDs, row.ItemID)
		}
	}
	return nil
}

// Ensure interface compliance.
var _ promo.Repository = (*PromotionRepo)(nil)
