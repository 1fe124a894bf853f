// Package register_repo provides the PostgreSQL implementation of the
// append-only stock movement ledger.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/ledger"
	"tillpoint/internal/infrastructure/storage/postgres"
)

const movementsTable = "reg_stock_movements"

var movementColumns = []string{
	"line_id", "item_id", "kind",
	"quantity", "stock_before", "stock_after",
	"reference_id", "reference_type", "reference",
	"actor", "period", "created_at",
}

// LedgerRepo implements ledger.Repository. Movements are inserted and
// read, never updated or deleted.
type LedgerRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new stock ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateMovements batch inserts movements.
func (r *LedgerRepo) CreateMovements(ctx context.Context, movements []ledger.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, movementValues(m))
		}
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	// Fallback: multi-row insert. Prefer calling CreateMovements within tx.
	q := r.builder.Insert(movementsTable).Columns(movementColumns...)
	for _, m := range movements {
		q = q.Values(movementValues(m)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}

	return nil
}

func movementValues(m ledger.StockMovement) []any {
	return []any{
		m.LineID, m.ItemID, m.Kind,
		m.Quantity.Int64Scaled(), m.StockBefore.Int64Scaled(), m.StockAfter.Int64Scaled(),
		m.ReferenceID, m.ReferenceType, m.Reference,
		m.Actor, m.Period, m.CreatedAt,
	}
}

// GetMovementsByReference retrieves all movements for a document.
func (r *LedgerRepo) GetMovementsByReference(ctx context.Context, referenceID id.ID) ([]ledger.StockMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"reference_id": referenceID}).
		OrderBy("created_at")

	return r.selectMovements(ctx, q)
}

// GetMovementHistory returns movement history for an item, newest first.
func (r *LedgerRepo) GetMovementHistory(ctx context.Context, itemID id.ID, filter ledger.MovementFilter) ([]ledger.StockMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"item_id": itemID})

	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"period": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"period": *filter.ToDate})
	}

	q = q.OrderBy("period DESC", "created_at DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return r.selectMovements(ctx, q)
}

// GetTurnover calculates inbound and outbound totals for a period.
// Movements are signed deltas, so direction is just the sign.
func (r *LedgerRepo) GetTurnover(ctx context.Context, filter ledger.TurnoverFilter) (ledger.Turnover, error) {
	var result ledger.Turnover

	args := []any{filter.FromDate, filter.ToDate}
	conditions := "period >= $1 AND period < $2"

	if filter.ItemID != nil {
		conditions += " AND item_id = $3"
		args = append(args, *filter.ItemID)
		result.ItemID = *filter.ItemID
	}

	sql := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(CASE WHEN quantity > 0 THEN quantity ELSE 0 END), 0) AS inbound,
			COALESCE(SUM(CASE WHEN quantity < 0 THEN -quantity ELSE 0 END), 0) AS outbound
		FROM reg_stock_movements
		WHERE %s
	`, conditions)

	querier := r.txManager.GetQuerier(ctx)
	var inboundScaled, outboundScaled int64
	err := querier.QueryRow(ctx, sql, args...).Scan(&inboundScaled, &outboundScaled)
	if err != nil && err != pgx.ErrNoRows {
		return result, fmt.Errorf("calculate turnover: %w", err)
	}
	result.Inbound = types.NewQuantityFromInt64Scaled(inboundScaled)
	result.Outbound = types.NewQuantityFromInt64Scaled(outboundScaled)

	openingArgs := []any{filter.FromDate}
	openingConditions := "period < $1"
	if filter.ItemID != nil {
		openingConditions += " AND item_id = $2"
		openingArgs = append(openingArgs, *filter.ItemID)
	}

	openingSQL := fmt.Sprintf(`
		SELECT COALESCE(SUM(quantity), 0)
		FROM reg_stock_movements
		WHERE %s
	`, openingConditions)

	var openingScaled int64
	err = querier.QueryRow(ctx, openingSQL, openingArgs...).Scan(&openingScaled)
	if err != nil && err != pgx.ErrNoRows {
		return result, fmt.Errorf("calculate opening balance: %w", err)
	}
	result.OpeningBalance = types.NewQuantityFromInt64Scaled(openingScaled)

	result.ClosingBalance = result.OpeningBalance + result.Inbound - result.Outbound

	return result, nil
}

func (r *LedgerRepo) selectMovements(ctx context.Context, q squirrel.SelectBuilder) ([]ledger.StockMovement, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []ledger.StockMovement
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}

	return movements, nil
}

// Ensure interface compliance.
var _ ledger.Repository = (*LedgerRepo)(nil)
