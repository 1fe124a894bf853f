package sale

import (
	"context"

	"tillpoint/internal/domain/ledger"
)

// Events receives notifications after a sale has committed. Handlers run
// outside the transaction; failures are logged, never propagated.
type Events interface {
	ledger.StockObserver

	OnSaleCommitted(ctx context.Context, s *Sale)
}

// NopEvents ignores all notifications.
type NopEvents struct {
	ledger.NopObserver
}

func (NopEvents) OnSaleCommitted(context.Context, *Sale) {}
