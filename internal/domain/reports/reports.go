// Package reports defines read-only analytics over committed sales.
// No report query ever mutates state.
package reports

import (
	"context"
	"time"

	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

// SalesSummaryFilter narrows the sales summary report.
type SalesSummaryFilter struct {
	From       time.Time
	To         time.Time
	TerminalID string
}

// SalesSummaryRow is the per-day, per-terminal aggregate.
type SalesSummaryRow struct {
	Day           time.Time   `db:"day" json:"day"`
	TerminalID    string      `db:"terminal_id" json:"terminalId"`
	SaleCount     int         `db:"sale_count" json:"saleCount"`
	Gross         types.Money `db:"gross" json:"gross"`
	TotalDiscount types.Money `db:"total_discount" json:"totalDiscount"`
	GrossMargin   types.Money `db:"gross_margin" json:"grossMargin"`
	CashTotal     types.Money `db:"cash_total" json:"cashTotal"`
	CardTotal     types.Money `db:"card_total" json:"cardTotal"`
	TransferTotal types.Money `db:"transfer_total" json:"transferTotal"`
}

// SalesSummary is the end-of-day totals report.
type SalesSummary struct {
	From  time.Time         `json:"from"`
	To    time.Time         `json:"to"`
	Rows  []SalesSummaryRow `json:"rows"`
	Gross types.Money       `json:"gross"`
}

// TopItemRow is one line of the top sellers report.
type TopItemRow struct {
	ItemID       id.ID          `db:"item_id" json:"itemId"`
	ItemName     string         `db:"item_name" json:"itemName"`
	QuantitySold types.Quantity `db:"quantity_sold" json:"quantitySold"`
	Revenue      types.Money    `db:"revenue" json:"revenue"`
}

// DiscountAuditRow lists one manually discounted sale for review.
type DiscountAuditRow struct {
	SaleID     id.ID       `db:"sale_id" json:"saleId"`
	Ticket     string      `db:"ticket" json:"ticket"`
	Date       time.Time   `db:"date" json:"date"`
	TerminalID string      `db:"terminal_id" json:"terminalId"`
	Authorizer string      `db:"authorizer" json:"authorizer"`
	Role       string      `db:"role" json:"role"`
	Reason     string      `db:"reason" json:"reason"`
	Total      types.Money `db:"total" json:"total"`
	Percent    types.Money `db:"percent" json:"percent"`
}

// Repository defines the report queries.
type Repository interface {
	GetSalesSummary(ctx context.Context, filter SalesSummaryFilter) (*SalesSummary, error)
	GetTopItems(ctx context.Context, from, to time.Time, limit int) ([]TopItemRow, error)
	GetDiscountAudits(ctx context.Context, from, to time.Time) ([]DiscountAuditRow, error)
}
