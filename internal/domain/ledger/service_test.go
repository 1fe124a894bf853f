package ledger

import (
	"context"
	"testing"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

type memRepo struct {
	movements []StockMovement
	failNext  error
}

func (r *memRepo) CreateMovements(_ context.Context, movements []StockMovement) error {
	if r.failNext != nil {
		return r.failNext
	}
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *memRepo) GetMovementsByReference(_ context.Context, referenceID id.ID) ([]StockMovement, error) {
	var out []StockMovement
	for _, m := range r.movements {
		if m.ReferenceID == referenceID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) GetMovementHistory(_ context.Context, itemID id.ID, _ MovementFilter) ([]StockMovement, error) {
	var out []StockMovement
	for _, m := range r.movements {
		if m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) GetTurnover(context.Context, TurnoverFilter) (Turnover, error) {
	return Turnover{}, nil
}

// memMutator guards against negative stock the way the SQL conditional
// update does.
type memMutator struct {
	stock map[id.ID]types.Quantity
}

func (m *memMutator) AdjustQuantity(_ context.Context, itemID id.ID, delta types.Quantity) (types.Quantity, types.Quantity, error) {
	before := m.stock[itemID]
	after := before + delta
	if after.IsNegative() {
		return 0, 0, apperror.NewInsufficientStock(apperror.Shortfall{
			ItemID:    itemID.String(),
			Requested: delta.Abs().Float64(),
			Available: before.Float64(),
		})
	}
	m.stock[itemID] = after
	return before, after, nil
}

func TestApply_MovementBracketsChange(t *testing.T) {
	itemID := id.New()
	repo := &memRepo{}
	mutator := &memMutator{stock: map[id.ID]types.Quantity{itemID: types.NewQuantityFromFloat64(10)}}
	svc := NewService(repo, mutator)

	movement, err := svc.Apply(context.Background(), Apply{
		ItemID:      itemID,
		Kind:        KindSaleOutbound,
		Delta:       types.NewQuantityFromFloat64(-4),
		ReferenceID: id.New(),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := movement.StockBefore.Float64(); got != 10 {
		t.Errorf("stock before = %v, want 10", got)
	}
	if got := movement.StockAfter.Float64(); got != 6 {
		t.Errorf("stock after = %v, want 6", got)
	}
	if !movement.Reconciles() {
		t.Error("movement must reconcile")
	}
	if id.IsNil(movement.LineID) {
		t.Error("movement must carry a line ID")
	}
	if len(repo.movements) != 1 {
		t.Fatalf("movements persisted = %d, want 1", len(repo.movements))
	}
}

func TestApply_RejectsMismatchedDirection(t *testing.T) {
	itemID := id.New()
	svc := NewService(&memRepo{}, &memMutator{stock: map[id.ID]types.Quantity{itemID: 100000}})

	tests := []struct {
		name  string
		kind  MovementKind
		delta float64
	}{
		{"sale outbound with positive delta", KindSaleOutbound, 1},
		{"manufacturing inbound with negative delta", KindManufacturingInbound, -1},
		{"manufacturing outbound with positive delta", KindManufacturingOutbound, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Apply(context.Background(), Apply{
				ItemID: itemID,
				Kind:   tt.kind,
				Delta:  types.NewQuantityFromFloat64(tt.delta),
			})
			if err == nil {
				t.Error("expected direction mismatch error")
			}
		})
	}
}

func TestApply_AdjustmentAllowsBothDirections(t *testing.T) {
	itemID := id.New()
	svc := NewService(&memRepo{}, &memMutator{stock: map[id.ID]types.Quantity{itemID: types.NewQuantityFromFloat64(5)}})

	for _, delta := range []float64{3, -2} {
		if _, err := svc.Apply(context.Background(), Apply{
			ItemID: itemID,
			Kind:   KindAdjustment,
			Delta:  types.NewQuantityFromFloat64(delta),
		}); err != nil {
			t.Fatalf("adjustment delta %v: %v", delta, err)
		}
	}
}

func TestApply_NoMovementWithoutStockChange(t *testing.T) {
	itemID := id.New()
	repo := &memRepo{}
	mutator := &memMutator{stock: map[id.ID]types.Quantity{itemID: types.NewQuantityFromFloat64(1)}}
	svc := NewService(repo, mutator)

	_, err := svc.Apply(context.Background(), Apply{
		ItemID: itemID,
		Kind:   KindSaleOutbound,
		Delta:  types.NewQuantityFromFloat64(-5),
	})
	if !apperror.IsInsufficientStock(err) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if len(repo.movements) != 0 {
		t.Error("failed adjustment must write no movement")
	}
	if got := mutator.stock[itemID].Float64(); got != 1 {
		t.Errorf("stock must be unchanged, got %v", got)
	}
}

func TestApply_RejectsZeroDeltaAndUnknownKind(t *testing.T) {
	itemID := id.New()
	svc := NewService(&memRepo{}, &memMutator{stock: map[id.ID]types.Quantity{}})

	if _, err := svc.Apply(context.Background(), Apply{ItemID: itemID, Kind: KindAdjustment, Delta: 0}); err == nil {
		t.Error("zero delta must be rejected")
	}
	if _, err := svc.Apply(context.Background(), Apply{ItemID: itemID, Kind: "teleport", Delta: types.NewQuantityFromFloat64(1)}); err == nil {
		t.Error("unknown kind must be rejected")
	}
}
