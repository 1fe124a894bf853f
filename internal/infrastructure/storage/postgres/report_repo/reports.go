// Package report_repo provides PostgreSQL implementations for sales reports.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/reports"
	"tillpoint/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetSalesSummary aggregates committed sales per day and terminal.
func (r *ReportRepo) GetSalesSummary(ctx context.Context, filter reports.SalesSummaryFilter) (*reports.SalesSummary, error) {
	query := `
		SELECT
			date_trunc('day', s.date) AS day,
			s.terminal_id,
			COUNT(*) AS sale_count,
			COALESCE(SUM(s.total), 0) AS gross,
			COALESCE(SUM(s.total_discount), 0) AS total_discount,
			COALESCE(SUM(s.gross_margin), 0) AS gross_margin,
			COALESCE(SUM(s.payment_cash), 0) AS cash_total,
			COALESCE(SUM(s.payment_card), 0) AS card_total,
			COALESCE(SUM(s.payment_transfer), 0) AS transfer_total
		FROM doc_sales s
		WHERE s.date >= $1 AND s.date < $2
	`
	args := []any{filter.From, filter.To}

	if filter.TerminalID != "" {
		query += " AND s.terminal_id = $3"
		args = append(args, filter.TerminalID)
	}

	query += `
		GROUP BY date_trunc('day', s.date), s.terminal_id
		ORDER BY day, s.terminal_id
	`

	var rows []reports.SalesSummaryRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("sales summary report: %w", err)
	}

	gross := types.Zero()
	for _, row := range rows {
		gross = gross.Add(row.Gross)
	}

	return &reports.SalesSummary{
		From:  filter.From,
		To:    filter.To,
		Rows:  rows,
		Gross: gross,
	}, nil
}

// GetTopItems returns the best sellers by revenue for the period.
func (r *ReportRepo) GetTopItems(ctx context.Context, from, to time.Time, limit int) ([]reports.TopItemRow, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT
			l.item_id,
			l.item_name,
			COALESCE(SUM(l.quantity), 0) AS quantity_sold,
			COALESCE(SUM(l.subtotal), 0) AS revenue
		FROM doc_sale_lines l
		JOIN doc_sales s ON s.id = l.sale_id
		WHERE s.date >= $1 AND s.date < $2
		GROUP BY l.item_id, l.item_name
		ORDER BY revenue DESC
		LIMIT $3
	`

	var rows []reports.TopItemRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, query, from, to, limit); err != nil {
		return nil, fmt.Errorf("top items report: %w", err)
	}

	return rows, nil
}

// GetDiscountAudits lists manually discounted sales for end-of-day review.
func (r *ReportRepo) GetDiscountAudits(ctx context.Context, from, to time.Time) ([]reports.DiscountAuditRow, error) {
	query := `
		SELECT
			d.sale_id,
			s.ticket,
			s.date,
			s.terminal_id,
			d.authorizer,
			d.role,
			d.reason,
			d.total,
			d.percent
		FROM doc_sale_discounts d
		JOIN doc_sales s ON s.id = d.sale_id
		WHERE s.date >= $1 AND s.date < $2
		ORDER BY s.date DESC
	`

	var rows []reports.DiscountAuditRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("discount audit report: %w", err)
	}

	return rows, nil
}

// Ensure interface compliance.
var _ reports.Repository = (*ReportRepo)(nil)
