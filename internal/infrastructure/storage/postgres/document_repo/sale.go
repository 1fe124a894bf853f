package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/sale"
	"tillpoint/internal/infrastructure/storage/postgres"
)

const (
	salesTable         = "doc_sales"
	saleLinesTable     = "doc_sale_lines"
	saleDiscountsTable = "doc_sale_discounts"
)

// saleRow is the flat scan target for the sales table: the document
// fields plus the payment breakdown stored on the header row.
type saleRow struct {
	sale.Sale
	PaymentCash     types.Money `db:"payment_cash"`
	PaymentCard     types.Money `db:"payment_card"`
	PaymentTransfer types.Money `db:"payment_transfer"`
}

// SaleRepo implements sale.Repository. Sales are immutable once
// committed: there is no update path.
type SaleRepo struct {
	*BaseDocumentRepo[*saleRow]
	txManager *postgres.TxManager
}

// NewSaleRepo creates a new sale repository.
func NewSaleRepo(txManager *postgres.TxManager) *SaleRepo {
	return &SaleRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			salesTable,
			postgres.ExtractDBColumns[saleRow](),
			func() *saleRow { return &saleRow{} },
		),
		txManager: txManager,
	}
}

// Create inserts the sale header, lines, payment breakdown, and discount
// audit. Must run in the checkout transaction so the sale and its stock
// movements commit together.
func (r *SaleRepo) Create(ctx context.Context, s *sale.Sale) error {
	row := &saleRow{
		Sale:            *s,
		PaymentCash:     s.Payment.Cash,
		PaymentCard:     s.Payment.Card,
		PaymentTransfer: s.Payment.Transfer,
	}
	if err := r.BaseDocumentRepo.Create(ctx, row); err != nil {
		return err
	}

	if err := r.insertLines(ctx, s); err != nil {
		return err
	}

	if s.DiscountAudit != nil {
		if err := r.insertDiscountAudit(ctx, s.ID, s.DiscountAudit); err != nil {
			return err
		}
	}

	return nil
}

// GetByID retrieves a sale with its lines.
func (r *SaleRepo) GetByID(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	row, err := r.BaseDocumentRepo.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, row)
}

// GetByTicket retrieves a sale by its ticket number.
func (r *SaleRepo) GetByTicket(ctx context.Context, ticket string) (*sale.Sale, error) {
	row, err := r.GetByNumber(ctx, "ticket", ticket)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, row)
}

// List returns sale headers matching the filter, newest first.
// Lines are not loaded; use GetByID for the full document.
func (r *SaleRepo) List(ctx context.Context, filter sale.ListFilter) ([]sale.Sale, error) {
	q := r.Builder().
		Select(postgres.ExtractDBColumns[saleRow]()...).
		From(salesTable)

	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"date": *filter.To})
	}
	if filter.TerminalID != "" {
		q = q.Where(squirrel.Eq{"terminal_id": filter.TerminalID})
	}
	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}

	q = q.OrderBy("date DESC", "ticket DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	rows, err := r.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}

	sales := make([]sale.Sale, 0, len(rows))
	for _, row := range rows {
		s := row.Sale
		s.Payment = sale.PaymentBreakdown{
			Cash:     row.PaymentCash,
			Card:     row.PaymentCard,
			Transfer: row.PaymentTransfer,
		}
		sales = append(sales, s)
	}
	return sales, nil
}

// insertLines bulk inserts line snapshots via COPY.
func (r *SaleRepo) insertLines(ctx context.Context, s *sale.Sale) error {
	if len(s.Lines) == 0 {
		return apperror.NewEmptyCart()
	}

	columns := []string{
		"line_id", "sale_id", "line_no",
		"item_id", "item_name", "service",
		"quantity", "unit_price", "unit_cost", "original_price", "unit_discount",
		"discount_amount",
		"discount_reason", "discount_authorizer", "authorizer_role", "promo_applied",
		"subtotal",
	}

	rows := make([][]any, 0, len(s.Lines))
	for _, l := range s.Lines {
		rows = append(rows, []any{
			l.LineID, l.SaleID, l.LineNo,
			l.ItemID, l.ItemName, l.Service,
			l.Quantity.Int64Scaled(), l.UnitPrice, l.UnitCost, l.OriginalPrice, l.UnitDiscount,
			l.DiscountAmount,
			l.DiscountReason, l.DiscountAuthorizer, l.AuthorizerRole, l.PromoApplied,
			l.Subtotal,
		})
	}

	inserter := postgres.NewBatchInserter(r.txManager)
	if _, err := inserter.CopyFromSlice(ctx, saleLinesTable, columns, rows); err != nil {
		return fmt.Errorf("copy sale lines: %w", err)
	}
	return nil
}

func (r *SaleRepo) insertDiscountAudit(ctx context.Context, saleID id.ID, audit *sale.DiscountAudit) error {
	q := r.Builder().
		Insert(saleDiscountsTable).
		Columns("sale_id", "authorizer", "role", "reason", "total", "percent", "line_count", "applied_at").
		Values(saleID, audit.Authorizer, audit.Role, audit.Reason, audit.Total, audit.Percent, audit.LineCount, audit.AppliedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert discount audit: %w", err)
	}
	return nil
}

// hydrate loads lines, payment, and discount audit onto the header.
func (r *SaleRepo) hydrate(ctx context.Context, row *saleRow) (*sale.Sale, error) {
	s := row.Sale
	s.Payment = sale.PaymentBreakdown{
		Cash:     row.PaymentCash,
		Card:     row.PaymentCard,
		Transfer: row.PaymentTransfer,
	}

	q := r.Builder().
		Select(postgres.ExtractDBColumns[sale.SaleLine]()...).
		From(saleLinesTable).
		Where(squirrel.Eq{"sale_id": s.ID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, r.Querier(ctx), &s.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("load sale lines: %w", err)
	}

	audit, err := r.loadDiscountAudit(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.DiscountAudit = audit

	return &s, nil
}

func (r *SaleRepo) loadDiscountAudit(ctx context.Context, saleID id.ID) (*sale.DiscountAudit, error) {
	q := r.Builder().
		Select("authorizer", "role", "reason", "total", "percent", "line_count", "applied_at").
		From(saleDiscountsTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var audit sale.DiscountAudit
	if err := pgxscan.Get(ctx, r.Querier(ctx), &audit, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load discount audit: %w", err)
	}
	return &audit, nil
}

// Ensure interface compliance.
var _ sale.Repository = (*SaleRepo)(nil)
