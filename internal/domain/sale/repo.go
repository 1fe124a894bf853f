package sale

import (
	"context"
	"time"

	"tillpoint/internal/core/id"
)

// Repository persists committed sales.
type Repository interface {
	// Create inserts the sale header, lines, payment breakdown, and
	// discount audit in the caller's transaction.
	Create(ctx context.Context, s *Sale) error

	GetByID(ctx context.Context, saleID id.ID) (*Sale, error)
	GetByTicket(ctx context.Context, ticket string) (*Sale, error)
	List(ctx context.Context, filter ListFilter) ([]Sale, error)
}

// ListFilter narrows sale listings.
type ListFilter struct {
	From       *time.Time
	To         *time.Time
	TerminalID string
	CustomerID *id.ID
	Limit      int
	Offset     int
}
